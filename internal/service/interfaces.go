package service

import (
	"context"

	"github.com/prperemyshlev/clavis-auth/internal/domain"
	"github.com/prperemyshlev/clavis-auth/internal/identity"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_auth_service.go -package=mocks AuthService

// AuthService defines the session lifecycle operations
type AuthService interface {
	Login(ctx context.Context, cred identity.Credential, client ClientInfo) (*LoginResult, error)
	AuthorizationURL(ctx context.Context) (*AuthorizationURL, error)
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
	Logout(ctx context.Context, refreshToken string) (*LogoutResult, error)
	LogoutAll(ctx context.Context, userID string) (int64, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
	Sessions(ctx context.Context, userID string) ([]domain.Session, error)
	DeactivateUser(ctx context.Context, userID string) (int64, error)
	ValidateAccessToken(ctx context.Context, accessToken string) (string, error)
	MethodEnabled(method identity.Method) bool
}

// OAuthStateStore issues and consumes single-use OAuth state values
type OAuthStateStore interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, state string) error
}

// ConsentURLBuilder builds the provider consent page URL
type ConsentURLBuilder interface {
	AuthCodeURL(state string) string
}
