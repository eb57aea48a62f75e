package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/trustmesh/ssi-bridge/internal/model"
)

func TestMemoryNonceLifecycle(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if _, err := store.Get(ctx, "S"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	first := model.Nonce{SubjectID: "S", Value: "n1", IssuedAt: time.Now()}
	if err := store.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	second := model.Nonce{SubjectID: "S", Value: "n2", IssuedAt: time.Now()}
	if err := store.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "S")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Value != "n2" {
		t.Errorf("nonce value = %q want %q (last writer wins)", got.Value, "n2")
	}

	if err := store.Delete(ctx, "S"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "S"); !errors.Is(err, ErrNotFound) {
		t.Errorf("nonce still present after delete: %v", err)
	}

	// Deleting an absent nonce is a no-op.
	if err := store.Delete(ctx, "S"); err != nil {
		t.Errorf("deleting absent nonce errored: %v", err)
	}
}

func TestMemoryUserLookup(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if _, err := store.GetUserByID(ctx, "S"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	user := model.User{ID: "S", Username: "S", PublicKey: "zabc", Role: model.RoleUser}
	if err := store.PutUser(ctx, user); err != nil {
		t.Fatalf("PutUser failed: %v", err)
	}
	got, err := store.GetUserByID(ctx, "S")
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got != user {
		t.Errorf("user = %+v want %+v", got, user)
	}
}
