package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-jobportal-chat/internal/domain"
)

// SQLStore binds the package's free functions to one *gorm.DB so the service
// layer can depend on method sets instead of a database handle.
type SQLStore struct {
	DB *gorm.DB
}

// NewSQLStore returns a store over db.
func NewSQLStore(db *gorm.DB) *SQLStore { return &SQLStore{DB: db} }

func (s *SQLStore) CreateMessage(ctx context.Context, senderID, receiverID, text string) (*domain.Message, error) {
	return CreateMessage(ctx, s.DB, senderID, receiverID, text)
}

func (s *SQLStore) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	return GetMessage(ctx, s.DB, id)
}

func (s *SQLStore) MarkConversationRead(ctx context.Context, viewerID, peerID string, now time.Time) (int64, error) {
	return MarkConversationRead(ctx, s.DB, viewerID, peerID, now)
}

func (s *SQLStore) ListConversation(ctx context.Context, viewerID, peerID string, limit int) ([]domain.Message, error) {
	return ListConversation(ctx, s.DB, viewerID, peerID, limit)
}

func (s *SQLStore) CountUnread(ctx context.Context, viewerID string) (int64, error) {
	return CountUnread(ctx, s.DB, viewerID)
}

func (s *SQLStore) CountUnreadByPeer(ctx context.Context, viewerID string) (map[string]int64, error) {
	return CountUnreadByPeer(ctx, s.DB, viewerID)
}

func (s *SQLStore) HideConversation(ctx context.Context, viewerID, peerID string, now time.Time) (int64, error) {
	return HideConversation(ctx, s.DB, viewerID, peerID, now)
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return GetUser(ctx, s.DB, id)
}

func (s *SQLStore) GetUsers(ctx context.Context, ids []string) (map[string]domain.User, error) {
	return GetUsers(ctx, s.DB, ids)
}

func (s *SQLStore) ListUsersExcept(ctx context.Context, id string) ([]domain.User, error) {
	return ListUsersExcept(ctx, s.DB, id)
}

// InboxStats exposes LoadInboxStats for conditional GET handling.
func (s *SQLStore) InboxStats(ctx context.Context, viewerID string) (InboxStats, error) {
	return LoadInboxStats(ctx, s.DB, viewerID)
}
