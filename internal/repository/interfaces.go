package repository

import (
	"context"
	"time"

	"github.com/prperemyshlev/clavis-auth/internal/domain"
)

// UserRepository defines methods for user operations
type UserRepository interface {
	// GetOrCreate returns the user bound to the assertion's provider identity,
	// creating it on first sight. Existing users are never modified.
	GetOrCreate(ctx context.Context, assertion domain.IdentityAssertion) (*domain.User, bool, error)
	CreateLocal(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetLocalByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	// Deactivate marks the user inactive and revokes all of its refresh tokens
	Deactivate(ctx context.Context, userID string, at time.Time) (int64, error)
}

// TokenRepository defines methods for refresh token operations
type TokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	// FindActive returns the token only if it is not revoked
	FindActive(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	// FindByHash returns the token regardless of its revoked state
	FindByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	// Revoke reports whether this call moved the token to revoked
	Revoke(ctx context.Context, tokenID string, at time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.RefreshToken, error)
}
