package mongostore

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tbourn/go-jobportal-chat/internal/repo"
	"github.com/tbourn/go-jobportal-chat/internal/services"
)

var (
	_ services.MessageStore = (*Store)(nil)
	_ services.Directory    = (*Store)(nil)

	_ interface {
		InboxStats(context.Context, string) (repo.InboxStats, error)
	} = (*Store)(nil)
)

const hexID = "64b7f0c2a1b2c3d4e5f60718"

func rawOf(t *testing.T, v any) bson.RawValue {
	t.Helper()
	b, err := bson.Marshal(bson.M{"v": v})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bson.Raw(b).Lookup("v")
}

func TestIDValue_RoundTrip(t *testing.T) {
	oid, _ := primitive.ObjectIDFromHex(hexID)
	if got := idValue(hexID); got != oid {
		t.Fatalf("hex id should be stored as ObjectID, got %T", got)
	}
	if got := idValue("alice"); got != "alice" {
		t.Fatalf("plain id should be stored as string, got %v", got)
	}

	for _, id := range []string{hexID, "alice", "u-42"} {
		if got := idString(rawOf(t, idValue(id))); got != id {
			t.Fatalf("round trip %q -> %q", id, got)
		}
	}
	if got := idString(rawOf(t, int32(7))); got != "" {
		t.Fatalf("non-id value should decode to empty, got %q", got)
	}
}

func TestFilters(t *testing.T) {
	pair := pairFilter("a", "b")
	want := bson.M{"$or": bson.A{
		bson.M{"sender": "a", "receiver": "b"},
		bson.M{"sender": "b", "receiver": "a"},
	}}
	if !reflect.DeepEqual(pair, want) {
		t.Fatalf("pairFilter = %v", pair)
	}

	vis := visibleFilter("a", "b")
	if !reflect.DeepEqual(vis["deletedFor"], bson.M{"$ne": "a"}) {
		t.Fatalf("visibleFilter deletedFor = %v", vis["deletedFor"])
	}
	if !reflect.DeepEqual(vis["$or"], want["$or"]) {
		t.Fatalf("visibleFilter lost the pair clause: %v", vis)
	}

	// Marking read only touches messages the peer sent to the viewer.
	if got := unreadFromFilter("me", "them"); !reflect.DeepEqual(got, bson.M{"receiver": "me", "sender": "them", "isRead": false}) {
		t.Fatalf("unreadFromFilter = %v", got)
	}
	if got := unreadFilter("me"); !reflect.DeepEqual(got, bson.M{"receiver": "me", "isRead": false}) {
		t.Fatalf("unreadFilter = %v", got)
	}
}

func TestMessageDoc_ToDomain(t *testing.T) {
	oid := primitive.NewObjectID()
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	d := messageDoc{
		ID:        oid,
		Sender:    rawOf(t, idValue(hexID)),
		Receiver:  rawOf(t, "bob"),
		Text:      "hi",
		IsRead:    true,
		ReadAt:    &at,
		CreatedAt: at,
		UpdatedAt: at,
	}
	m := d.toDomain()
	if m.ID != oid.Hex() || m.SenderID != hexID || m.ReceiverID != "bob" || !m.IsRead || m.ReadAt == nil || !m.ReadAt.Equal(at) {
		t.Fatalf("toDomain = %+v", m)
	}
}

func TestUserDoc_ToDomain(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"_id":      idValue(hexID),
		"fullname": "Ann Lee",
		"email":    "ann@example.com",
		"role":     "recruiter",
		"profile":  bson.M{"profilePhoto": "https://cdn/ann.png", "bio": "ignored"},
		"password": "never-read",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var d userDoc
	if err := bson.Unmarshal(raw, &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	u := d.toDomain()
	if u.ID != hexID || u.Fullname != "Ann Lee" || u.Role != "recruiter" || u.ProfilePhoto != "https://cdn/ann.png" {
		t.Fatalf("toDomain = %+v", u)
	}
}

// ---------- integration ----------

func newLiveStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cli, err := Connect(ctx, uri)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	db := cli.Database("chat_test_" + primitive.NewObjectID().Hex())
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = cli.Disconnect(context.Background())
	})
	s := New(db)
	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	return s
}

func TestStore_Live(t *testing.T) {
	s := newLiveStore(t)
	ctx := context.Background()

	stu := primitive.NewObjectID().Hex()
	_, err := s.users.InsertMany(ctx, []any{
		bson.M{"_id": idValue(stu), "fullname": "Stu Dent", "role": "student"},
		bson.M{"_id": "rec", "fullname": "Rec Ruiter", "role": "recruiter", "profile": bson.M{"profilePhoto": "p.png"}},
	})
	if err != nil {
		t.Fatalf("seed users: %v", err)
	}

	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("GetUser(missing) err = %v", err)
	}
	users, err := s.GetUsers(ctx, []string{stu, "rec", "ghost"})
	if err != nil || len(users) != 2 || users["rec"].ProfilePhoto != "p.png" {
		t.Fatalf("GetUsers = %v, %v", users, err)
	}
	others, err := s.ListUsersExcept(ctx, stu)
	if err != nil || len(others) != 1 || others[0].ID != "rec" {
		t.Fatalf("ListUsersExcept = %v, %v", others, err)
	}

	m1, err := s.CreateMessage(ctx, "rec", stu, "hello")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateMessage(ctx, "rec", stu, "are you there"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateMessage(ctx, stu, "rec", "yes"); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetMessage(ctx, m1.ID)
	if err != nil || got.SenderID != "rec" || got.ReceiverID != stu || got.IsRead {
		t.Fatalf("GetMessage = %+v, %v", got, err)
	}
	if _, err := s.GetMessage(ctx, "not-hex"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("GetMessage(not-hex) err = %v", err)
	}

	if n, _ := s.CountUnread(ctx, stu); n != 2 {
		t.Fatalf("CountUnread = %d", n)
	}
	by, err := s.CountUnreadByPeer(ctx, stu)
	if err != nil || !reflect.DeepEqual(by, map[string]int64{"rec": 2}) {
		t.Fatalf("CountUnreadByPeer = %v, %v", by, err)
	}

	n, err := s.MarkConversationRead(ctx, stu, "rec", time.Now().UTC())
	if err != nil || n != 2 {
		t.Fatalf("mark = %d, %v", n, err)
	}
	if n, _ := s.MarkConversationRead(ctx, stu, "rec", time.Now().UTC()); n != 0 {
		t.Fatalf("second mark = %d", n)
	}
	if n, _ := s.CountUnread(ctx, "rec"); n != 1 {
		t.Fatalf("rec's unread must be untouched, got %d", n)
	}

	hist, err := s.ListConversation(ctx, stu, "rec", 0)
	if err != nil || len(hist) != 3 || hist[0].Text != "hello" || hist[2].Text != "yes" {
		t.Fatalf("history = %v, %v", hist, err)
	}
	last, _ := s.ListConversation(ctx, stu, "rec", 2)
	if len(last) != 2 || last[0].Text != "are you there" || last[1].Text != "yes" {
		t.Fatalf("limited history = %v", last)
	}

	hidden, err := s.HideConversation(ctx, stu, "rec", time.Now().UTC())
	if err != nil || hidden != 3 {
		t.Fatalf("hide = %d, %v", hidden, err)
	}
	if again, _ := s.HideConversation(ctx, stu, "rec", time.Now().UTC()); again != 0 {
		t.Fatalf("second hide = %d", again)
	}
	if h, _ := s.ListConversation(ctx, stu, "rec", 0); len(h) != 0 {
		t.Fatalf("stu should see nothing, got %d", len(h))
	}
	if h, _ := s.ListConversation(ctx, "rec", stu, 0); len(h) != 3 {
		t.Fatalf("rec should still see 3, got %d", len(h))
	}
	if n, _ := s.CountUnread(ctx, "rec"); n != 1 {
		t.Fatalf("hide must not touch isRead, got %d", n)
	}

	st, err := s.InboxStats(ctx, stu)
	if err != nil || st.Users != 1 || st.Unread != 0 || st.LastActivity == nil {
		t.Fatalf("InboxStats = %+v, %v", st, err)
	}
	if st.UsersUpdated != nil {
		t.Fatalf("seeded users carry no updatedAt, got %v", st.UsersUpdated)
	}
}
