package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"remindme/internal/session/domain"
	"remindme/internal/storage"
)

// ErrCorrupt is returned by Load when stored keys cannot be decoded into a session.
var ErrCorrupt = errors.New("session: stored session is corrupt")

// KVRepository stores the session as the auth_token, token_expires_at and user_data keys.
type KVRepository struct {
	store storage.Store
}

// NewKVRepository returns a Repository over store.
func NewKVRepository(store storage.Store) *KVRepository {
	return &KVRepository{store: store}
}

// Load returns nil, nil when no token is stored. A token with an unreadable expiry is ErrCorrupt.
// An unreadable user snapshot is dropped because the snapshot is not authoritative.
func (r *KVRepository) Load(ctx context.Context) (*domain.Session, error) {
	vals, err := r.store.GetMany(ctx, domain.Keys...)
	if err != nil {
		return nil, err
	}
	token := vals[domain.KeyToken]
	if token == "" {
		return nil, nil
	}
	exp, err := time.Parse(time.RFC3339Nano, vals[domain.KeyExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("%w: token_expires_at: %v", ErrCorrupt, err)
	}
	s := &domain.Session{Token: token, ExpiresAt: exp}
	if raw := vals[domain.KeyUser]; raw != "" {
		var u domain.User
		if err := json.Unmarshal([]byte(raw), &u); err == nil {
			s.User = u
		}
	}
	return s, nil
}

// Save writes all three keys in one SetMany.
func (r *KVRepository) Save(ctx context.Context, s *domain.Session) error {
	if s == nil || s.Token == "" {
		return errors.New("session: cannot save a session without a token")
	}
	user, err := json.Marshal(s.User)
	if err != nil {
		return err
	}
	return r.store.SetMany(ctx, map[string]string{
		domain.KeyToken:     s.Token,
		domain.KeyExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339Nano),
		domain.KeyUser:      string(user),
	})
}

// Clear deletes all three keys in one DeleteMany.
func (r *KVRepository) Clear(ctx context.Context) error {
	return r.store.DeleteMany(ctx, domain.Keys...)
}
