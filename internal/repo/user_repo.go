// Package repo implements the relational persistence layer for the chat
// subsystem. This file provides read access to the user directory.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-jobportal-chat/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound so callers can use either with errors.Is.
var ErrNotFound = gorm.ErrRecordNotFound

// GetUser fetches a directory user by id.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	var u domain.User
	err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUsers returns the users among ids keyed by id. Unknown ids are absent.
func GetUsers(ctx context.Context, db *gorm.DB, ids []string) (map[string]domain.User, error) {
	out := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.User
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, u := range rows {
		out[u.ID] = u
	}
	return out, nil
}

// ListUsersExcept returns every directory user other than id, ordered by
// display name then id.
func ListUsersExcept(ctx context.Context, db *gorm.DB, id string) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Where("id <> ?", id).
		Order("fullname ASC, id ASC").
		Find(&out).Error
	return out, err
}
