package realtime

import (
	"context"

	"github.com/tbourn/go-jobportal-chat/internal/domain"
	"github.com/tbourn/go-jobportal-chat/internal/events"
)

// Bridge turns stored chat events into live notifications. The service layer
// calls it only after a successful write; every call returns immediately.
type Bridge struct {
	router    *Router
	publisher events.Publisher

	refresh []byte
}

// NewBridge returns a bridge delivering through r and publishing to pub.
// pub may be nil.
func NewBridge(r *Router, pub events.Publisher) *Bridge {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Bridge{
		router:    r,
		publisher: pub,
		refresh:   mustFrame(EventRefreshUsers, nil),
	}
}

// MessageCreated pushes the message and a refresh signal to its receiver.
func (b *Bridge) MessageCreated(ctx context.Context, msg domain.Message) {
	frame, err := EncodeFrame(EventReceiveMessage, msg)
	if err == nil {
		b.router.Notify(msg.ReceiverID, frame, b.refresh)
	}
	b.publisher.MessageCreated(ctx, msg)
}

// MessagesSeen tells peerID that viewerID read their messages, then asks
// peerID to refresh its unread totals.
func (b *Bridge) MessagesSeen(ctx context.Context, viewerID, peerID string) {
	b.router.Notify(peerID, mustFrame(EventMessagesSeen, SeenPayload{From: viewerID}), b.refresh)
	b.publisher.ConversationSeen(ctx, viewerID, peerID)
}
