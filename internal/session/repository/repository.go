package repository

import (
	"context"

	"remindme/internal/session/domain"
)

// Repository persists the current session.
type Repository interface {
	// Load returns the persisted session, or nil when none is stored.
	Load(ctx context.Context) (*domain.Session, error)
	// Save writes token, expiry and user snapshot as one group.
	Save(ctx context.Context, s *domain.Session) error
	// Clear removes all session keys as one group.
	Clear(ctx context.Context) error
}
