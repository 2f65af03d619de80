package domain

import (
	"testing"
	"time"
)

func TestIdempotency_UniquePerUserScopeKey(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if !db.Migrator().HasIndex(&Idempotency{}, "ux_user_scope_key") {
		t.Fatalf("expected unique index ux_user_scope_key")
	}

	now := time.Now().UTC()
	base := Idempotency{UserID: "u1", Scope: "messages.send", Key: "k1", MessageID: "m1", Status: 201, ExpiresAt: now.Add(time.Hour)}

	first := base
	first.ID = "i1"
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("insert first: %v", err)
	}
	if first.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt should be set automatically")
	}

	dup := base
	dup.ID = "i2"
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected unique violation for same (user, scope, key)")
	}

	otherScope := base
	otherScope.ID = "i3"
	otherScope.Scope = "conversations.delete"
	if err := db.Create(&otherScope).Error; err != nil {
		t.Fatalf("different scope must be accepted: %v", err)
	}
}
