package events

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tbourn/go-jobportal-chat/internal/domain"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject, data})
	return nil
}

func fixedNow() time.Time { return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC) }

func TestNATSPublisher_Subjects(t *testing.T) {
	p := newNATSPublisher(&fakeConn{}, ".jobportal.chat.")
	if got := p.Subject(SubjectMessageCreated); got != "jobportal.chat.message.created" {
		t.Fatalf("Subject = %q", got)
	}
	bare := newNATSPublisher(&fakeConn{}, "")
	if got := bare.Subject(SubjectPresenceChanged); got != "presence.changed" {
		t.Fatalf("Subject without prefix = %q", got)
	}
}

func TestNATSPublisher_Payloads(t *testing.T) {
	fc := &fakeConn{}
	p := newNATSPublisher(fc, "jp")
	p.now = fixedNow
	ctx := context.Background()

	p.MessageCreated(ctx, domain.Message{ID: "m1", SenderID: "a", ReceiverID: "b", Text: "hi"})
	p.ConversationSeen(ctx, "b", "a")
	p.PresenceChanged([]string{"a", "b"})

	if len(fc.msgs) != 3 {
		t.Fatalf("published %d, want 3", len(fc.msgs))
	}
	want := []string{"jp.message.created", "jp.conversation.seen", "jp.presence.changed"}
	for i, w := range want {
		if fc.msgs[i].subject != w {
			t.Fatalf("msg %d subject = %q, want %q", i, fc.msgs[i].subject, w)
		}
	}

	var mc MessageCreatedEvent
	if err := json.Unmarshal(fc.msgs[0].data, &mc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if mc.Message.ID != "m1" || mc.Message.ReceiverID != "b" || !mc.OccurredAt.Equal(fixedNow()) {
		t.Fatalf("message event = %+v", mc)
	}

	var seen ConversationSeenEvent
	if err := json.Unmarshal(fc.msgs[1].data, &seen); err != nil || seen.ViewerID != "b" || seen.PeerID != "a" {
		t.Fatalf("seen event = %+v, %v", seen, err)
	}

	var pres PresenceChangedEvent
	if err := json.Unmarshal(fc.msgs[2].data, &pres); err != nil || len(pres.Online) != 2 {
		t.Fatalf("presence event = %+v, %v", pres, err)
	}
}

func TestNATSPublisher_ErrorsAreSwallowed(t *testing.T) {
	fc := &fakeConn{err: errors.New("connection closed")}
	p := newNATSPublisher(fc, "jp")
	// Must not panic or block.
	p.PresenceChanged(nil)
	p.ConversationSeen(context.Background(), "a", "b")
	if len(fc.msgs) != 0 {
		t.Fatalf("nothing should be recorded")
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	p.MessageCreated(context.Background(), domain.Message{})
	p.ConversationSeen(context.Background(), "a", "b")
	p.PresenceChanged([]string{"a"})
}

// Runs only against a live server: NATS_URL=nats://localhost:4222 go test ./...
func TestNATSPublisher_Integration(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	nc, err := Connect(url, "jobportal-chat-test")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer nc.Close()

	sub, err := nc.SubscribeSync("itest.chat.>")
	if err != nil {
		t.Fatalf("SubscribeSync: %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	p := NewNATSPublisher(nc, "itest.chat")
	p.ConversationSeen(context.Background(), "v", "p")

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("NextMsg: %v", err)
	}
	if msg.Subject != "itest.chat.conversation.seen" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	var ev ConversationSeenEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil || ev.ViewerID != "v" {
		t.Fatalf("event = %+v, %v", ev, err)
	}
}
