package services

import (
	"context"
	"time"

	"github.com/tbourn/go-jobportal-chat/internal/domain"
)

// MessageStore is the persistence contract of the chat subsystem. Both the
// relational repository and the document store implement it.
//
// MarkConversationRead must be a single conditional bulk update; callers rely
// on it never reading rows before flipping them.
type MessageStore interface {
	// CreateMessage inserts an unread message.
	CreateMessage(ctx context.Context, senderID, receiverID, text string) (*domain.Message, error)
	// GetMessage fetches one message by id.
	GetMessage(ctx context.Context, id string) (*domain.Message, error)
	// MarkConversationRead flips peerID's unread messages to viewerID and
	// returns the number flipped.
	MarkConversationRead(ctx context.Context, viewerID, peerID string, now time.Time) (int64, error)
	// ListConversation returns the pair's history visible to viewerID, ascending.
	ListConversation(ctx context.Context, viewerID, peerID string, limit int) ([]domain.Message, error)
	// CountUnread totals unread messages addressed to viewerID.
	CountUnread(ctx context.Context, viewerID string) (int64, error)
	// CountUnreadByPeer groups viewerID's unread messages by sender.
	CountUnreadByPeer(ctx context.Context, viewerID string) (map[string]int64, error)
	// HideConversation hides the pair's messages for viewerID only.
	HideConversation(ctx context.Context, viewerID, peerID string, now time.Time) (int64, error)
}

// Directory is the read-only user directory.
type Directory interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUsers(ctx context.Context, ids []string) (map[string]domain.User, error)
	ListUsersExcept(ctx context.Context, id string) ([]domain.User, error)
}

// Notifier receives chat events after they were durably stored. Calls must
// not block on delivery; a failed or skipped delivery is never reported back.
type Notifier interface {
	// MessageCreated announces a new message to its receiver.
	MessageCreated(ctx context.Context, msg domain.Message)
	// MessagesSeen tells peerID that viewerID has read their messages.
	MessagesSeen(ctx context.Context, viewerID, peerID string)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

// MessageCreated implements Notifier.
func (NopNotifier) MessageCreated(context.Context, domain.Message) {}

// MessagesSeen implements Notifier.
func (NopNotifier) MessagesSeen(context.Context, string, string) {}
