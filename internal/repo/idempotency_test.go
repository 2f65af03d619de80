package repo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGetIdempotency_BlankScopeOrKey(t *testing.T) {
	db := newRepoDB(t)
	now := time.Now().UTC()
	if rec, err := GetIdempotency(context.Background(), db, "u1", "  ", "k1", now); rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank scope: got (%v, %v)", rec, err)
	}
	if rec, err := GetIdempotency(context.Background(), db, "u1", "messages.send", "", now); rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank key: got (%v, %v)", rec, err)
	}
}

func TestIdempotency_CreateGetDuplicateExpire(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "u1", "messages.send", "k1", "m1", 201, time.Hour)
	if err != nil || rec.ID == "" || rec.MessageID != "m1" {
		t.Fatalf("CreateIdempotency = %+v, %v", rec, err)
	}

	got, err := GetIdempotency(ctx, db, "u1", "messages.send", "k1", time.Now().UTC())
	if err != nil || got.MessageID != "m1" || got.Status != 201 {
		t.Fatalf("GetIdempotency = %+v, %v", got, err)
	}

	// Other users and scopes do not see it.
	if _, err := GetIdempotency(ctx, db, "u2", "messages.send", "k1", time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user must miss, got %v", err)
	}

	if _, err := CreateIdempotency(ctx, db, "u1", "messages.send", "k1", "m2", 201, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Past expiry the record is invisible, then purged.
	later := time.Now().UTC().Add(2 * time.Hour)
	if _, err := GetIdempotency(ctx, db, "u1", "messages.send", "k1", later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record must miss, got %v", err)
	}
	n, err := PurgeExpiredIdempotency(ctx, db, later)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpiredIdempotency = %d, %v; want 1", n, err)
	}
}

func TestIdempotencyLedger(t *testing.T) {
	l := &IdempotencyLedger{DB: newRepoDB(t)}
	ctx := context.Background()
	now := time.Now().UTC()

	if ok, err := l.Exists(ctx, "u1", "messages.send", "k1", now); ok || err != nil {
		t.Fatalf("Exists before remember = %v, %v", ok, err)
	}
	if err := l.Remember(ctx, "u1", "messages.send", "k1", "m1", 201); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if err := l.Remember(ctx, "u1", "messages.send", "k1", "m2", 201); err != nil {
		t.Fatalf("duplicate Remember must be swallowed: %v", err)
	}
	rec, err := l.Lookup(ctx, "u1", "messages.send", "k1")
	if err != nil || rec.MessageID != "m1" {
		t.Fatalf("Lookup = %+v, %v (first writer must win)", rec, err)
	}
	if ok, _ := l.Exists(ctx, "u1", "messages.send", "k1", now); !ok {
		t.Fatalf("Exists after remember = false")
	}
	if !rec.ExpiresAt.After(now.Add(23 * time.Hour)) {
		t.Fatalf("default TTL not applied: %v", rec.ExpiresAt)
	}
	if n, err := l.Purge(ctx, now.Add(25*time.Hour)); err != nil || n != 1 {
		t.Fatalf("Purge = %d, %v", n, err)
	}
}
