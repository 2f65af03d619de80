// Package repo implements the relational persistence layer for the chat
// subsystem. This file provides small aggregate queries used for conditional
// responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-jobportal-chat/internal/domain"
)

// InboxStats summarizes everything the conversation sidebar of viewerID
// depends on: the directory (size and latest change) and the viewer's
// messages (unread total and latest change, sent or received).
type InboxStats struct {
	Users        int64
	UsersUpdated *time.Time
	Unread       int64
	LastActivity *time.Time
}

// LoadInboxStats computes InboxStats with four lightweight queries.
func LoadInboxStats(ctx context.Context, db *gorm.DB, viewerID string) (InboxStats, error) {
	var st InboxStats
	var err error

	users := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.User{}).Where("id <> ?", viewerID)
	}
	if err = users().Count(&st.Users).Error; err != nil {
		return InboxStats{}, err
	}
	if st.Users > 0 {
		if st.UsersUpdated, err = latestUpdatedAt(users()); err != nil {
			return InboxStats{}, err
		}
	}

	if st.Unread, err = CountUnread(ctx, db, viewerID); err != nil {
		return InboxStats{}, err
	}

	msgs := db.WithContext(ctx).Model(&domain.Message{}).Where("receiver_id = ? OR sender_id = ?", viewerID, viewerID)
	if st.LastActivity, err = latestUpdatedAt(msgs); err != nil {
		return InboxStats{}, err
	}
	return st, nil
}

// latestUpdatedAt returns the greatest updated_at of q, or nil when q is empty.
// Ordering instead of MAX() keeps the column typed as a time in SQLite.
func latestUpdatedAt(q *gorm.DB) (*time.Time, error) {
	var rows []struct {
		UpdatedAt time.Time
	}
	if err := q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0].UpdatedAt, nil
}
