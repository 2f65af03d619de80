// Package repo implements the relational persistence layer for the chat
// subsystem. This file provides repository helpers for the Idempotency model
// used to implement safe-retry semantics for POST endpoints.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-jobportal-chat/internal/domain"
)

// ErrDuplicate indicates that an idempotency record already exists for the
// given (user_id, scope, key) tuple.
var ErrDuplicate = errors.New("duplicate")

// GetIdempotency returns a non-expired record or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(scope) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("user_id = ? AND scope = ? AND key = ? AND expires_at > ?", userID, scope, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency inserts a record and returns ErrDuplicate on unique violation.
func CreateIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, messageID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		UserID:    userID,
		Scope:     scope,
		Key:       key,
		MessageID: messageID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredIdempotency deletes records that expired before now.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}

// isUniqueViolation recognizes unique-constraint failures. glebarez/sqlite
// often reports them as plain text rather than gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// IdempotencyLedger binds the idempotency helpers to one database and TTL.
type IdempotencyLedger struct {
	DB  *gorm.DB
	TTL time.Duration
}

// Exists reports whether a live record is stored for (userID, scope, key).
func (l *IdempotencyLedger) Exists(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
	_, err := GetIdempotency(ctx, l.DB, userID, scope, key, now)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Lookup returns the live record for (userID, scope, key) or ErrNotFound.
func (l *IdempotencyLedger) Lookup(ctx context.Context, userID, scope, key string) (*domain.Idempotency, error) {
	return GetIdempotency(ctx, l.DB, userID, scope, key, time.Now().UTC())
}

// Remember stores the outcome of a completed request. A concurrent duplicate
// is not an error; the first writer wins.
func (l *IdempotencyLedger) Remember(ctx context.Context, userID, scope, key, messageID string, status int) error {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, err := CreateIdempotency(ctx, l.DB, userID, scope, key, messageID, status, ttl)
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}

// Purge removes expired records.
func (l *IdempotencyLedger) Purge(ctx context.Context, now time.Time) (int64, error) {
	return PurgeExpiredIdempotency(ctx, l.DB, now)
}
