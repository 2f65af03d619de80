// Package mongostore is the document-database implementation of the chat
// store and user directory. It reads and writes the portal's existing
// collections:
//
//	users     {_id, fullname, email, role, profile.profilePhoto, createdAt, updatedAt}
//	messages  {_id, sender, receiver, text, isRead, readAt, deletedFor[], createdAt, updatedAt}
//
// User references are ObjectIDs when the id is a 24-digit hex string and plain
// strings otherwise, so ids issued by the portal and externally assigned ids
// both round-trip unchanged.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tbourn/go-jobportal-chat/internal/domain"
	"github.com/tbourn/go-jobportal-chat/internal/repo"
)

// Collection names.
const (
	UsersCollection    = "users"
	MessagesCollection = "messages"
)

// Store implements the message store and the user directory on MongoDB.
type Store struct {
	messages *mongo.Collection
	users    *mongo.Collection
	now      func() time.Time
}

// New returns a store over db.
func New(db *mongo.Database) *Store {
	return &Store{
		messages: db.Collection(MessagesCollection),
		users:    db.Collection(UsersCollection),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Connect dials uri and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetAppName("jobportal-chat"))
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	return cli, nil
}

// EnsureIndexes creates the indexes the chat queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "receiver", Value: 1}, {Key: "isRead", Value: 1}, {Key: "sender", Value: 1}},
			Options: options.Index().SetName("idx_msgs_unread"),
		},
		{
			Keys:    bson.D{{Key: "sender", Value: 1}, {Key: "receiver", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("idx_msgs_pair"),
		},
	})
	return err
}

// ---------- documents ----------

type messageDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Sender    bson.RawValue      `bson:"sender"`
	Receiver  bson.RawValue      `bson:"receiver"`
	Text      string             `bson:"text"`
	IsRead    bool               `bson:"isRead"`
	ReadAt    *time.Time         `bson:"readAt,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d messageDoc) toDomain() domain.Message {
	m := domain.Message{
		ID:         d.ID.Hex(),
		SenderID:   idString(d.Sender),
		ReceiverID: idString(d.Receiver),
		Text:       d.Text,
		IsRead:     d.IsRead,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
	if d.ReadAt != nil {
		t := d.ReadAt.UTC()
		m.ReadAt = &t
	}
	return m
}

type userDoc struct {
	ID       bson.RawValue `bson:"_id"`
	Fullname string        `bson:"fullname"`
	Email    string        `bson:"email"`
	Role     string        `bson:"role"`
	Profile  struct {
		ProfilePhoto string `bson:"profilePhoto"`
	} `bson:"profile"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d userDoc) toDomain() domain.User {
	return domain.User{
		ID:           idString(d.ID),
		Fullname:     d.Fullname,
		Email:        d.Email,
		Role:         d.Role,
		ProfilePhoto: d.Profile.ProfilePhoto,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

// idValue is the stored form of a user id.
func idValue(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

// idString reverses idValue.
func idString(v bson.RawValue) string {
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	if s, ok := v.StringValueOK(); ok {
		return s
	}
	return ""
}

// ---------- filters ----------

func pairFilter(a, b string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"sender": idValue(a), "receiver": idValue(b)},
		bson.M{"sender": idValue(b), "receiver": idValue(a)},
	}}
}

// visibleFilter is the pair minus the messages viewerID deleted for themselves.
func visibleFilter(viewerID, peerID string) bson.M {
	f := pairFilter(viewerID, peerID)
	f["deletedFor"] = bson.M{"$ne": idValue(viewerID)}
	return f
}

func unreadFromFilter(viewerID, peerID string) bson.M {
	return bson.M{"receiver": idValue(viewerID), "sender": idValue(peerID), "isRead": false}
}

func unreadFilter(viewerID string) bson.M {
	return bson.M{"receiver": idValue(viewerID), "isRead": false}
}

// ---------- messages ----------

// CreateMessage inserts an unread message and returns it with its new id.
func (s *Store) CreateMessage(ctx context.Context, senderID, receiverID, text string) (*domain.Message, error) {
	now := s.now()
	doc := bson.M{
		"_id":        primitive.NewObjectIDFromTimestamp(now),
		"sender":     idValue(senderID),
		"receiver":   idValue(receiverID),
		"text":       text,
		"isRead":     false,
		"deletedFor": bson.A{},
		"createdAt":  now,
		"updatedAt":  now,
	}
	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return &domain.Message{
		ID:         doc["_id"].(primitive.ObjectID).Hex(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// GetMessage returns repo.ErrNotFound for an unknown or malformed id.
func (s *Store) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repo.ErrNotFound
	}
	var d messageDoc
	err = s.messages.FindOne(ctx, bson.M{"_id": oid}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m := d.toDomain()
	return &m, nil
}

// MarkConversationRead is a single updateMany guarded by isRead=false.
func (s *Store) MarkConversationRead(ctx context.Context, viewerID, peerID string, now time.Time) (int64, error) {
	res, err := s.messages.UpdateMany(ctx,
		unreadFromFilter(viewerID, peerID),
		bson.M{"$set": bson.M{"isRead": true, "readAt": now, "updatedAt": now}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ListConversation returns the pair's history visible to viewerID, oldest
// first. A positive limit keeps only the most recent messages.
func (s *Store) ListConversation(ctx context.Context, viewerID, peerID string, limit int) ([]domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts = options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
			SetLimit(int64(limit))
	}
	cur, err := s.messages.Find(ctx, visibleFilter(viewerID, peerID), opts)
	if err != nil {
		return nil, err
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Message, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	if limit > 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

// CountUnread implements services.MessageStore.
func (s *Store) CountUnread(ctx context.Context, viewerID string) (int64, error) {
	return s.messages.CountDocuments(ctx, unreadFilter(viewerID))
}

// CountUnreadByPeer groups viewerID's unread messages by sender.
func (s *Store) CountUnreadByPeer(ctx context.Context, viewerID string) (map[string]int64, error) {
	cur, err := s.messages.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: unreadFilter(viewerID)}},
		{{Key: "$group", Value: bson.M{"_id": "$sender", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Sender bson.RawValue `bson:"_id"`
		N      int64         `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[idString(r.Sender)] = r.N
	}
	return out, nil
}

// HideConversation adds viewerID to deletedFor on every message of the pair
// not yet hidden for them. isRead is never touched.
func (s *Store) HideConversation(ctx context.Context, viewerID, peerID string, now time.Time) (int64, error) {
	res, err := s.messages.UpdateMany(ctx,
		visibleFilter(viewerID, peerID),
		bson.M{"$addToSet": bson.M{"deletedFor": idValue(viewerID)}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ---------- directory ----------

// GetUser implements services.Directory.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, repo.ErrNotFound
	}
	var d userDoc
	err := s.users.FindOne(ctx, bson.M{"_id": idValue(id)}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u := d.toDomain()
	return &u, nil
}

// GetUsers returns the users found among ids, keyed by id. Missing ids are
// skipped.
func (s *Store) GetUsers(ctx context.Context, ids []string) (map[string]domain.User, error) {
	out := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	in := make(bson.A, len(ids))
	for i, id := range ids {
		in[i] = idValue(id)
	}
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": in}})
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		u := d.toDomain()
		out[u.ID] = u
	}
	return out, nil
}

// ListUsersExcept implements services.Directory.
func (s *Store) ListUsersExcept(ctx context.Context, id string) ([]domain.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "fullname", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$ne": idValue(id)}}, opts)
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.User, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

// ---------- conditional responses ----------

// InboxStats feeds the peer-list ETag with two counts and two point reads.
func (s *Store) InboxStats(ctx context.Context, viewerID string) (repo.InboxStats, error) {
	var st repo.InboxStats
	var err error

	others := bson.M{"_id": bson.M{"$ne": idValue(viewerID)}}
	if st.Users, err = s.users.CountDocuments(ctx, others); err != nil {
		return repo.InboxStats{}, err
	}
	if st.UsersUpdated, err = latestUpdatedAt(ctx, s.users, others); err != nil {
		return repo.InboxStats{}, err
	}
	if st.Unread, err = s.CountUnread(ctx, viewerID); err != nil {
		return repo.InboxStats{}, err
	}
	mine := bson.M{"$or": bson.A{
		bson.M{"sender": idValue(viewerID)},
		bson.M{"receiver": idValue(viewerID)},
	}}
	if st.LastActivity, err = latestUpdatedAt(ctx, s.messages, mine); err != nil {
		return repo.InboxStats{}, err
	}
	return st, nil
}

// latestUpdatedAt returns the greatest updatedAt matching filter, or nil when
// nothing matches or the field is missing.
func latestUpdatedAt(ctx context.Context, coll *mongo.Collection, filter bson.M) (*time.Time, error) {
	var row struct {
		UpdatedAt time.Time `bson:"updatedAt"`
	}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetProjection(bson.M{"updatedAt": 1})
	err := coll.FindOne(ctx, filter, opts).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if row.UpdatedAt.IsZero() {
		return nil, nil
	}
	return &row.UpdatedAt, nil
}
