// Package handlers provides the REST endpoints of the chat subsystem:
//
//   - POST   /messages                 (send; Idempotency-Key supported)
//   - GET    /messages/unread-total    (badge count)
//   - GET    /messages/:id             (one message the caller is party to)
//   - GET    /conversations            (peer list with unread counts, ETag)
//   - GET    /conversations/:peerId    (open: mark read, then history)
//   - DELETE /conversations/:peerId    (hide for the caller only)
//
// Handlers are transport-thin: they resolve the caller, validate input,
// delegate to the conversation service and translate results and sentinel
// errors into the standard envelopes.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-jobportal-chat/internal/domain"
	"github.com/tbourn/go-jobportal-chat/internal/http/middleware"
	"github.com/tbourn/go-jobportal-chat/internal/repo"
	"github.com/tbourn/go-jobportal-chat/internal/services"
)

// ConversationService is the chat use-case surface consumed by the handlers.
// *services.ConversationService implements it.
type ConversationService interface {
	Send(ctx context.Context, senderID, receiverID, text string) (*domain.Message, error)
	GetMessage(ctx context.Context, viewerID, id string) (*domain.Message, error)
	OpenConversation(ctx context.Context, viewerID, peerID string, limit int) (*services.Conversation, error)
	UnreadTotal(ctx context.Context, viewerID string) (int64, error)
	SoftDeleteConversation(ctx context.Context, viewerID, peerID string) (int64, error)
	ListPeers(ctx context.Context, viewerID string) ([]domain.Peer, error)
}

// IdempotencyStore records completed sends so retries can be replayed.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID, scope, key string) (*domain.Idempotency, error)
	Remember(ctx context.Context, userID, scope, key, messageID string, status int) error
}

// InboxStatsSource feeds the peer-list ETag. Stores without it get no ETag.
type InboxStatsSource interface {
	InboxStats(ctx context.Context, viewerID string) (repo.InboxStats, error)
}

// Handlers groups the chat endpoints.
type Handlers struct {
	svc   ConversationService
	idem  IdempotencyStore
	stats InboxStatsSource
}

// New binds the handlers to svc. idem and stats are optional.
func New(svc ConversationService, idem IdempotencyStore, stats InboxStatsSource) *Handlers {
	return &Handlers{svc: svc, idem: idem, stats: stats}
}

// caller returns the authenticated user id or answers 401.
func caller(c *gin.Context) (string, bool) {
	uid := middleware.UserIDFrom(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return "", false
	}
	return uid, true
}
