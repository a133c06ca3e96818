package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prperemyshlev/clavis-auth/internal/domain"
	"github.com/prperemyshlev/clavis-auth/internal/repository"
	"github.com/prperemyshlev/clavis-auth/internal/utils"
)

// maxDeviceInfoLength matches the device_info column
const maxDeviceInfoLength = 255

// ClientInfo describes the client performing a login
type ClientInfo struct {
	UserAgent string
	IP        string
}

// LoginResult is returned by a successful login
type LoginResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	SessionID        string
	User             *domain.User
	Created          bool
}

// RefreshResult carries a reissued access token
type RefreshResult struct {
	AccessToken string
	ExpiresAt   time.Time
}

// LogoutResult describes the outcome of a logout
type LogoutResult struct {
	AlreadyRevoked bool
	// RevokedOthers counts other sessions revoked by a cascading logout
	RevokedOthers int64
}

// AuthorizationURL is the consent page for the code flow
type AuthorizationURL struct {
	URL   string
	State string
}

// startSession issues a token pair for the user and stores the refresh token.
// Nothing is persisted if issuance fails.
func (s *authService) startSession(ctx context.Context, user *domain.User, scope string, client ClientInfo) (*LoginResult, error) {
	issued, err := s.jwt.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	stored := &domain.RefreshToken{
		UserID:     user.ID,
		TokenHash:  repository.HashToken(issued.RefreshToken),
		Scope:      scope,
		DeviceInfo: utils.Truncate(client.UserAgent, maxDeviceInfoLength),
		ExpiresAt:  issued.RefreshExpiresAt,
		CreatedAt:  s.now(),
	}

	if err := s.tokens.Create(ctx, stored); err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	return &LoginResult{
		AccessToken:      issued.AccessToken,
		AccessExpiresAt:  issued.AccessExpiresAt,
		RefreshToken:     issued.RefreshToken,
		RefreshExpiresAt: issued.RefreshExpiresAt,
		SessionID:        stored.ID,
		User:             user,
	}, nil
}
