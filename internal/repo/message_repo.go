// Package repo implements the relational persistence layer for the chat
// subsystem. This file provides repository functions for direct messages:
// creation, per-viewer history, unread accounting, the conditional bulk
// mark-as-read update and per-viewer hiding.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-jobportal-chat/internal/domain"
)

// pairClause matches every message exchanged between two users, both directions.
const pairClause = "((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))"

// hiddenForClause excludes messages the viewer has hidden from their own view.
const hiddenForClause = "NOT EXISTS (SELECT 1 FROM message_hides h WHERE h.message_id = messages.id AND h.user_id = ?)"

// CreateMessage inserts a new unread message.
func CreateMessage(ctx context.Context, db *gorm.DB, senderID, receiverID, text string) (*domain.Message, error) {
	now := time.Now().UTC()
	m := &domain.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkConversationRead flips every unread message peerID sent to viewerID to
// read in one UPDATE ... WHERE statement and returns how many rows changed.
// Messages inserted concurrently either match the WHERE clause of this
// statement or stay unread; none is read and then counted again.
func MarkConversationRead(ctx context.Context, db *gorm.DB, viewerID, peerID string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", viewerID, peerID, false).
		Updates(map[string]any{
			"is_read":    true,
			"read_at":    now,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// ListConversation returns the messages between viewerID and peerID that are
// visible to viewerID, ordered (CreatedAt ASC, ID ASC). With limit > 0 only
// the most recent limit messages are returned, still in ascending order.
func ListConversation(ctx context.Context, db *gorm.DB, viewerID, peerID string, limit int) ([]domain.Message, error) {
	q := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where(pairClause, viewerID, peerID, peerID, viewerID).
		Where(hiddenForClause, viewerID)

	var out []domain.Message
	if limit <= 0 {
		err := q.Order("created_at ASC, id ASC").Find(&out).Error
		return out, err
	}

	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountUnread returns how many messages addressed to viewerID are unread,
// across all senders. Hidden messages still count: hiding is a view concern.
func CountUnread(ctx context.Context, db *gorm.DB, viewerID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("receiver_id = ? AND is_read = ?", viewerID, false).
		Count(&n).Error
	return n, err
}

// CountUnreadByPeer returns unread counts for viewerID grouped by sender.
// Senders with nothing unread are absent from the map.
func CountUnreadByPeer(ctx context.Context, db *gorm.DB, viewerID string) (map[string]int64, error) {
	var rows []struct {
		SenderID string
		N        int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Select("sender_id, COUNT(*) AS n").
		Where("receiver_id = ? AND is_read = ?", viewerID, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.SenderID] = r.N
	}
	return out, nil
}

// HideConversation marks every message between viewerID and peerID, both
// directions, as hidden for viewerID. It is idempotent: already hidden
// messages are skipped by the conflict clause. Read flags are not touched.
// It returns the number of newly hidden messages.
func HideConversation(ctx context.Context, db *gorm.DB, viewerID, peerID string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		"INSERT INTO message_hides (message_id, user_id, created_at) "+
			"SELECT id, ?, ? FROM messages WHERE "+pairClause+
			" ON CONFLICT (message_id, user_id) DO NOTHING",
		viewerID, now, viewerID, peerID, peerID, viewerID,
	)
	return res.RowsAffected, res.Error
}
