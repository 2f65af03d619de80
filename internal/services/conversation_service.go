// Package services – ConversationService
//
// This file implements ConversationService, the application component that
// owns direct messages between portal users. It validates and normalizes
// message text, persists through the configured MessageStore and, only after
// a successful write, hands the event to the Notifier for live delivery.
//
// Opening a conversation is the read-state synchronization point: unread
// messages from the peer are flipped to read with one conditional bulk update
// before the history is fetched, then the peer is told its messages were seen.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// carry the viewer and peer identifiers.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/go-jobportal-chat/internal/domain"
	"github.com/tbourn/go-jobportal-chat/internal/repo"
)

const (
	defaultMaxTextRunes = 2000
	maxHistoryLimit     = 500
)

// Conversation is the result of opening a conversation.
type Conversation struct {
	// Peer is the other party's display card, nil when not in the directory.
	Peer *domain.UserCard
	// Messages is the history visible to the viewer, oldest first.
	Messages []domain.Message
	// MarkedRead is how many messages this call flipped from unread to read.
	MarkedRead int64
}

// ConversationService coordinates message persistence, read state and
// notifications. It is safe for concurrent use.
type ConversationService struct {
	Store     MessageStore
	Directory Directory
	Notifier  Notifier

	// MaxTextRunes caps message length after normalization.
	MaxTextRunes int

	// Now is the clock; tests may replace it.
	Now func() time.Time
}

// NewConversationService wires a service with defaults. A nil notifier
// disables live delivery.
func NewConversationService(store MessageStore, dir Directory, n Notifier) *ConversationService {
	if n == nil {
		n = NopNotifier{}
	}
	return &ConversationService{
		Store:        store,
		Directory:    dir,
		Notifier:     n,
		MaxTextRunes: defaultMaxTextRunes,
		Now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *ConversationService) tracer() trace.Tracer {
	return otel.Tracer("services/ConversationService")
}

func (s *ConversationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *ConversationService) notifier() Notifier {
	if s.Notifier == nil {
		return NopNotifier{}
	}
	return s.Notifier
}

// Send validates and persists a message from senderID to receiverID, then
// notifies the receiver. The notification is never attempted when the write
// failed.
func (s *ConversationService) Send(ctx context.Context, senderID, receiverID, text string) (*domain.Message, error) {
	ctx, span := s.tracer().Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("user.id", senderID),
			attribute.String("peer.id", receiverID),
		),
	)
	defer span.End()

	if senderID == "" || receiverID == "" {
		return nil, ErrInvalidUser
	}
	if senderID == receiverID {
		return nil, ErrSelfMessage
	}
	text = NormalizeText(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if max := s.maxRunes(); utf8.RuneCountInString(text) > max {
		return nil, ErrTextTooLong
	}

	parties, err := s.Directory.GetUsers(ctx, []string{senderID, receiverID})
	if err != nil {
		return nil, s.fail(span, "lookup users", err)
	}
	if _, ok := parties[receiverID]; !ok {
		return nil, ErrUserNotFound
	}

	m, err := s.Store.CreateMessage(ctx, senderID, receiverID, text)
	if err != nil {
		return nil, s.fail(span, "create message", err)
	}
	if u, ok := parties[senderID]; ok {
		m.Sender = u.Card()
	}

	s.notifier().MessageCreated(ctx, *m)
	return m, nil
}

// OpenConversation marks peerID's unread messages to viewerID as read, then
// returns the history visible to viewerID and notifies peerID. limit > 0
// restricts the history to the most recent messages.
func (s *ConversationService) OpenConversation(ctx context.Context, viewerID, peerID string, limit int) (*Conversation, error) {
	ctx, span := s.tracer().Start(ctx, "OpenConversation",
		trace.WithAttributes(
			attribute.String("user.id", viewerID),
			attribute.String("peer.id", peerID),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if viewerID == "" || peerID == "" {
		return nil, ErrInvalidUser
	}
	if limit < 0 {
		limit = 0
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	// Mark first: the history below must never include a message that is
	// flipped to read afterwards.
	marked, err := s.Store.MarkConversationRead(ctx, viewerID, peerID, s.now())
	if err != nil {
		return nil, s.fail(span, "mark read", err)
	}
	span.SetAttributes(attribute.Int64("marked_read", marked))

	msgs, err := s.Store.ListConversation(ctx, viewerID, peerID, limit)
	if err != nil {
		return nil, s.fail(span, "list conversation", err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}

	conv := &Conversation{Messages: msgs, MarkedRead: marked}
	parties, err := s.Directory.GetUsers(ctx, []string{viewerID, peerID})
	if err != nil {
		// Display data is optional; the history is already consistent.
		span.RecordError(err)
	} else {
		if u, ok := parties[peerID]; ok {
			conv.Peer = u.Card()
		}
		for i := range conv.Messages {
			if u, ok := parties[conv.Messages[i].SenderID]; ok {
				conv.Messages[i].Sender = u.Card()
			}
		}
	}

	s.notifier().MessagesSeen(ctx, viewerID, peerID)
	return conv, nil
}

// UnreadTotal returns the number of unread messages addressed to viewerID.
// It always queries the store.
func (s *ConversationService) UnreadTotal(ctx context.Context, viewerID string) (int64, error) {
	ctx, span := s.tracer().Start(ctx, "UnreadTotal",
		trace.WithAttributes(attribute.String("user.id", viewerID)),
	)
	defer span.End()

	if viewerID == "" {
		return 0, ErrInvalidUser
	}
	n, err := s.Store.CountUnread(ctx, viewerID)
	if err != nil {
		return 0, s.fail(span, "count unread", err)
	}
	return n, nil
}

// SoftDeleteConversation hides every message between viewerID and peerID from
// viewerID's view. Repeating it is harmless. It returns how many messages
// were newly hidden.
func (s *ConversationService) SoftDeleteConversation(ctx context.Context, viewerID, peerID string) (int64, error) {
	ctx, span := s.tracer().Start(ctx, "SoftDeleteConversation",
		trace.WithAttributes(
			attribute.String("user.id", viewerID),
			attribute.String("peer.id", peerID),
		),
	)
	defer span.End()

	if viewerID == "" || peerID == "" {
		return 0, ErrInvalidUser
	}
	n, err := s.Store.HideConversation(ctx, viewerID, peerID, s.now())
	if err != nil {
		return 0, s.fail(span, "hide conversation", err)
	}
	return n, nil
}

// ListPeers returns every directory user except viewerID together with the
// number of their messages viewerID has not read yet.
func (s *ConversationService) ListPeers(ctx context.Context, viewerID string) ([]domain.Peer, error) {
	ctx, span := s.tracer().Start(ctx, "ListPeers",
		trace.WithAttributes(attribute.String("user.id", viewerID)),
	)
	defer span.End()

	if viewerID == "" {
		return nil, ErrInvalidUser
	}
	users, err := s.Directory.ListUsersExcept(ctx, viewerID)
	if err != nil {
		return nil, s.fail(span, "list users", err)
	}
	unread, err := s.Store.CountUnreadByPeer(ctx, viewerID)
	if err != nil {
		return nil, s.fail(span, "count unread by peer", err)
	}

	out := make([]domain.Peer, 0, len(users))
	for _, u := range users {
		out = append(out, domain.Peer{User: u, UnreadCount: unread[u.ID]})
	}
	return out, nil
}

// GetMessage returns a message that involves viewerID.
func (s *ConversationService) GetMessage(ctx context.Context, viewerID, id string) (*domain.Message, error) {
	m, err := s.Store.GetMessage(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	if !m.Involves(viewerID) {
		return nil, ErrMessageNotFound
	}
	return m, nil
}

func (s *ConversationService) maxRunes() int {
	if s.MaxTextRunes > 0 {
		return s.MaxTextRunes
	}
	return defaultMaxTextRunes
}

// fail records err on the span and wraps it with the failing step.
func (s *ConversationService) fail(span trace.Span, step string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, step)
	return fmt.Errorf("%s: %w", step, err)
}

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// NormalizeText prepares user text for storage: NFC normalization, LF line
// endings, at most one blank line between paragraphs, no surrounding space.
func NormalizeText(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
