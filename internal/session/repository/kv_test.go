package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"remindme/internal/session/domain"
	"remindme/internal/storage"
)

func TestKVRepository_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	repo := NewKVRepository(store)

	s, err := repo.Load(ctx)
	if err != nil || s != nil {
		t.Fatalf("Load on empty store = %v, %v; want nil, nil", s, err)
	}

	exp := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	in := &domain.Session{
		Token:     "tok",
		ExpiresAt: exp,
		User:      domain.User{ID: "u1", Email: "a@b.com", Username: "ann"},
	}
	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if store.Len() != 3 {
		t.Errorf("store has %d keys, want 3", store.Len())
	}
	vals, _ := store.GetMany(ctx, domain.Keys...)
	if vals[domain.KeyExpiresAt] != "2026-05-01T10:00:00Z" {
		t.Errorf("token_expires_at = %q, want ISO-8601", vals[domain.KeyExpiresAt])
	}
	if vals[domain.KeyUser] != `{"id":"u1","email":"a@b.com","username":"ann"}` {
		t.Errorf("user_data = %q", vals[domain.KeyUser])
	}

	out, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Token != "tok" || !out.ExpiresAt.Equal(exp) || out.User != in.User {
		t.Errorf("Load = %+v, want %+v", out, in)
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d keys after Clear, want 0", store.Len())
	}
}

func TestKVRepository_SaveRequiresToken(t *testing.T) {
	repo := NewKVRepository(storage.NewMemoryStore())
	if err := repo.Save(context.Background(), &domain.Session{}); err == nil {
		t.Error("Save without token should fail")
	}
	if err := repo.Save(context.Background(), nil); err == nil {
		t.Error("Save nil should fail")
	}
}

func TestKVRepository_LoadCorrupt(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	repo := NewKVRepository(store)

	_ = store.SetMany(ctx, map[string]string{domain.KeyToken: "tok", domain.KeyExpiresAt: "tomorrow"})
	if _, err := repo.Load(ctx); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Load with bad expiry = %v, want ErrCorrupt", err)
	}

	_ = store.SetMany(ctx, map[string]string{domain.KeyExpiresAt: "2026-05-01T10:00:00Z", domain.KeyUser: "{"})
	s, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load with bad user_data: %v", err)
	}
	if s.Token != "tok" || s.User != (domain.User{}) {
		t.Errorf("Load = %+v, want token kept and user dropped", s)
	}
}
