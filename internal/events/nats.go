// Package events publishes chat activity to an external message bus so other
// portal services (notifications, analytics) can observe it. Publishing is
// fire-and-forget: the chat never waits for, or depends on, a subscriber.
package events

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-jobportal-chat/internal/domain"
)

// Subject suffixes appended to the configured prefix.
const (
	SubjectMessageCreated   = "message.created"
	SubjectConversationSeen = "conversation.seen"
	SubjectPresenceChanged  = "presence.changed"
)

// Publisher receives stored chat events. Implementations must not block the
// caller on network I/O failures; errors are logged, never returned.
type Publisher interface {
	MessageCreated(ctx context.Context, msg domain.Message)
	ConversationSeen(ctx context.Context, viewerID, peerID string)
	PresenceChanged(online []string)
}

// NopPublisher drops everything.
type NopPublisher struct{}

func (NopPublisher) MessageCreated(context.Context, domain.Message)   {}
func (NopPublisher) ConversationSeen(context.Context, string, string) {}
func (NopPublisher) PresenceChanged([]string)                        {}

// MessageCreatedEvent is the body of <prefix>.message.created.
type MessageCreatedEvent struct {
	Message    domain.Message `json:"message"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ConversationSeenEvent is the body of <prefix>.conversation.seen.
type ConversationSeenEvent struct {
	ViewerID   string    `json:"viewer_id"`
	PeerID     string    `json:"peer_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PresenceChangedEvent is the body of <prefix>.presence.changed.
type PresenceChangedEvent struct {
	Online     []string  `json:"online"`
	OccurredAt time.Time `json:"occurred_at"`
}

// conn is the subset of *nats.Conn used for publishing.
type conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes JSON events with core NATS (no persistence).
type NATSPublisher struct {
	nc     conn
	prefix string
	now    func() time.Time
	log    zerolog.Logger
}

// NewNATSPublisher publishes on nc under prefix (e.g. "jobportal.chat").
func NewNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	return newNATSPublisher(nc, prefix)
}

func newNATSPublisher(nc conn, prefix string) *NATSPublisher {
	return &NATSPublisher{
		nc:     nc,
		prefix: strings.Trim(prefix, "."),
		now:    func() time.Time { return time.Now().UTC() },
		log:    log.With().Str("component", "events.nats").Logger(),
	}
}

// Subject returns the full subject for suffix.
func (p *NATSPublisher) Subject(suffix string) string {
	if p.prefix == "" {
		return suffix
	}
	return p.prefix + "." + suffix
}

// MessageCreated publishes a MessageCreatedEvent. It never blocks on the server.
func (p *NATSPublisher) MessageCreated(_ context.Context, msg domain.Message) {
	p.publish(SubjectMessageCreated, MessageCreatedEvent{Message: msg, OccurredAt: p.now()})
}

// ConversationSeen implements Publisher.
func (p *NATSPublisher) ConversationSeen(_ context.Context, viewerID, peerID string) {
	p.publish(SubjectConversationSeen, ConversationSeenEvent{ViewerID: viewerID, PeerID: peerID, OccurredAt: p.now()})
}

// PresenceChanged mirrors the online set, satisfying realtime.PresenceMirror.
func (p *NATSPublisher) PresenceChanged(online []string) {
	p.publish(SubjectPresenceChanged, PresenceChangedEvent{Online: online, OccurredAt: p.now()})
}

func (p *NATSPublisher) publish(suffix string, v any) {
	subject := p.Subject(suffix)
	data, err := json.Marshal(v)
	if err != nil {
		p.log.Error().Err(err).Str("subject", subject).Msg("encode event")
		return
	}
	// Core publish only buffers locally; it does not wait for the server.
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("publish event")
	}
}

// Connect dials NATS with reconnects enabled forever.
func Connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(3*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
}
