package repository

import (
	"context"

	"remindme/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail returns nil, nil when no user has the email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// MarkVerified sets Verified on the user. No-op if the user does not exist.
	MarkVerified(ctx context.Context, userID string) error
}
