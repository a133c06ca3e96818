package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/clavis-auth/internal/domain"
	"github.com/prperemyshlev/clavis-auth/internal/identity"
	"github.com/prperemyshlev/clavis-auth/internal/repository"
	"github.com/prperemyshlev/clavis-auth/internal/utils"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// AuthServiceDeps holds the collaborators of the auth service
type AuthServiceDeps struct {
	Identities *identity.Registry
	Users      repository.UserRepository
	Tokens     repository.TokenRepository
	JWT        *utils.JWTManager
	States     OAuthStateStore
	Consent    ConsentURLBuilder
	Events     EventPublisher
	Meter      metric.Meter
	Logger     *zap.Logger
	// RevokeAllOnLogout makes logout end every session of the user
	RevokeAllOnLogout bool
	Now               func() time.Time
}

// authService implements AuthService interface.
// Refresh tokens are not rotated: the same refresh token stays valid until
// it expires or is revoked by logout.
type authService struct {
	identities        *identity.Registry
	users             repository.UserRepository
	tokens            repository.TokenRepository
	jwt               *utils.JWTManager
	validator         *TokenValidator
	states            OAuthStateStore
	consent           ConsentURLBuilder
	events            EventPublisher
	metrics           *authMetrics
	logger            *zap.Logger
	revokeAllOnLogout bool
	now               func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(deps AuthServiceDeps) (AuthService, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Events == nil {
		deps.Events = NewLogPublisher(deps.Logger)
	}

	metrics, err := newAuthMetrics(deps.Meter)
	if err != nil {
		return nil, err
	}

	return &authService{
		identities:        deps.Identities,
		users:             deps.Users,
		tokens:            deps.Tokens,
		jwt:               deps.JWT,
		validator:         NewTokenValidator(deps.JWT, deps.Tokens, deps.Users, deps.Now),
		states:            deps.States,
		consent:           deps.Consent,
		events:            deps.Events,
		metrics:           metrics,
		logger:            deps.Logger,
		revokeAllOnLogout: deps.RevokeAllOnLogout,
		now:               deps.Now,
	}, nil
}

// Login verifies the credential, resolves the user and starts a session
func (s *authService) Login(ctx context.Context, cred identity.Credential, client ClientInfo) (*LoginResult, error) {
	result, err := s.login(ctx, cred, client)
	s.metrics.login(ctx, string(cred.Method), err)
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, AuthEvent{
		Type:       EventLogin,
		UserID:     result.User.ID,
		SessionID:  result.SessionID,
		Provider:   result.User.Provider,
		Method:     string(cred.Method),
		Device:     DeviceName(client.UserAgent),
		OccurredAt: s.now(),
	})
	return result, nil
}

func (s *authService) login(ctx context.Context, cred identity.Credential, client ClientInfo) (*LoginResult, error) {
	if cred.Method == identity.MethodGoogleCode {
		if err := s.states.Consume(ctx, cred.State); err != nil {
			return nil, err
		}
	}

	assertion, err := s.identities.Verify(ctx, cred)
	if err != nil {
		return nil, err
	}

	user, created, err := s.users.GetOrCreate(ctx, *assertion)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, fmt.Errorf("%w: %v", domain.ErrDuplicateEmail, err)
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	if !user.IsActive {
		return nil, domain.ErrInactiveUser
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	result, err := s.startSession(ctx, user, assertion.Provider, client)
	if err != nil {
		return nil, err
	}
	result.Created = created

	if created {
		s.logger.Info("user created",
			zap.String("user_id", user.ID),
			zap.String("provider", user.Provider),
		)
	}

	return result, nil
}

// AuthorizationURL returns the Google consent page URL with a fresh state
func (s *authService) AuthorizationURL(ctx context.Context) (*AuthorizationURL, error) {
	if s.consent == nil || !s.identities.Enabled(identity.MethodGoogleCode) {
		return nil, fmt.Errorf("%w: authorization code flow is not enabled", domain.ErrMalformedRequest)
	}

	state, err := s.states.Issue(ctx)
	if err != nil {
		return nil, err
	}

	return &AuthorizationURL{URL: s.consent.AuthCodeURL(state), State: state}, nil
}

// Refresh issues a new access token for a valid refresh token
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	result, err := s.refresh(ctx, refreshToken)
	s.metrics.refresh(ctx, err)
	return result, err
}

func (s *authService) refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh_token is required", domain.ErrMalformedRequest)
	}

	user, stored, err := s.validator.ValidateRefreshForReissue(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	accessToken, expiresAt, err := s.jwt.IssueAccessToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	s.events.Publish(ctx, AuthEvent{
		Type:       EventRefresh,
		UserID:     user.ID,
		SessionID:  stored.ID,
		OccurredAt: s.now(),
	})

	return &RefreshResult{AccessToken: accessToken, ExpiresAt: expiresAt}, nil
}

// Logout revokes the refresh token. Repeating it succeeds with AlreadyRevoked set.
func (s *authService) Logout(ctx context.Context, refreshToken string) (*LogoutResult, error) {
	result, err := s.logout(ctx, refreshToken)
	switch {
	case err != nil:
		s.metrics.logout(ctx, outcomeFailure)
	case result.AlreadyRevoked:
		s.metrics.logout(ctx, "already_revoked")
	default:
		s.metrics.logout(ctx, outcomeSuccess)
	}
	return result, err
}

func (s *authService) logout(ctx context.Context, refreshToken string) (*LogoutResult, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh_token is required", domain.ErrMalformedRequest)
	}

	stored, err := s.tokens.FindByHash(ctx, repository.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUnknownRefreshToken
		}
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	if stored.Revoked {
		return &LogoutResult{AlreadyRevoked: true}, nil
	}

	now := s.now()
	revokedNow, err := s.tokens.Revoke(ctx, stored.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	result := &LogoutResult{AlreadyRevoked: !revokedNow}
	if !revokedNow {
		return result, nil
	}

	if s.revokeAllOnLogout {
		others, err := s.tokens.RevokeAllForUser(ctx, stored.UserID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to revoke other sessions: %w", err)
		}
		result.RevokedOthers = others
	}

	s.events.Publish(ctx, AuthEvent{
		Type:       EventLogout,
		UserID:     stored.UserID,
		SessionID:  stored.ID,
		Count:      1 + result.RevokedOthers,
		OccurredAt: now,
	})

	return result, nil
}

// LogoutAll revokes every active session of the user
func (s *authService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	revoked, err := s.tokens.RevokeAllForUser(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}

	s.events.Publish(ctx, AuthEvent{
		Type:       EventLogoutAll,
		UserID:     userID,
		Count:      revoked,
		OccurredAt: s.now(),
	})
	return revoked, nil
}

// Me returns the active user behind an authenticated request
func (s *authService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.IsActive {
		return nil, domain.ErrInactiveUser
	}
	return user, nil
}

// Sessions lists the user's active sessions, newest first
func (s *authService) Sessions(ctx context.Context, userID string) ([]domain.Session, error) {
	tokens, err := s.tokens.ListActiveByUser(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]domain.Session, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, domain.Session{
			ID:        t.ID,
			Scope:     t.Scope,
			Device:    DeviceName(t.DeviceInfo),
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
		})
	}
	return sessions, nil
}

// DeactivateUser disables the account and revokes all of its sessions
func (s *authService) DeactivateUser(ctx context.Context, userID string) (int64, error) {
	revoked, err := s.users.Deactivate(ctx, userID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, domain.ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to deactivate user: %w", err)
	}

	s.logger.Info("user deactivated", zap.String("user_id", userID), zap.Int64("revoked_sessions", revoked))
	s.events.Publish(ctx, AuthEvent{
		Type:       EventUserDeactivated,
		UserID:     userID,
		Count:      revoked,
		OccurredAt: s.now(),
	})
	return revoked, nil
}

// ValidateAccessToken resolves the user id of an access token
func (s *authService) ValidateAccessToken(_ context.Context, accessToken string) (string, error) {
	return s.validator.ValidateAccess(accessToken)
}

// MethodEnabled reports whether a login method is available
func (s *authService) MethodEnabled(method identity.Method) bool {
	return s.identities.Enabled(method)
}
