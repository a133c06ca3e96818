package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/clavis-auth/internal/domain"
	"github.com/prperemyshlev/clavis-auth/internal/repository"
	"github.com/prperemyshlev/clavis-auth/internal/utils"
)

// TokenValidator checks access and refresh tokens
type TokenValidator struct {
	jwt    *utils.JWTManager
	tokens repository.TokenRepository
	users  repository.UserRepository
	now    func() time.Time
}

// NewTokenValidator creates a new token validator
func NewTokenValidator(jwt *utils.JWTManager, tokens repository.TokenRepository, users repository.UserRepository, now func() time.Time) *TokenValidator {
	if now == nil {
		now = time.Now
	}
	return &TokenValidator{jwt: jwt, tokens: tokens, users: users, now: now}
}

// ValidateAccess returns the user id of a valid access token.
// It uses the signature and expiry only and never reads the token store.
func (v *TokenValidator) ValidateAccess(raw string) (string, error) {
	claims, err := v.jwt.ValidateAccessToken(raw)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// ValidateRefreshForReissue checks a refresh token against the store first,
// then its own signature and expiry, then the owning user.
func (v *TokenValidator) ValidateRefreshForReissue(ctx context.Context, raw string) (*domain.User, *domain.RefreshToken, error) {
	hash := repository.HashToken(raw)

	stored, err := v.tokens.FindActive(ctx, hash)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("failed to look up refresh token: %w", err)
		}
		return nil, nil, v.classifyMissing(ctx, hash)
	}

	if stored.IsExpired(v.now()) {
		return nil, nil, domain.ErrExpiredRefreshToken
	}

	claims, err := v.jwt.ValidateRefreshToken(raw)
	if err != nil {
		return nil, nil, err
	}
	if claims.UserID != stored.UserID {
		return nil, nil, fmt.Errorf("%w: subject does not match session owner", domain.ErrInvalidRefreshToken)
	}

	user, err := v.users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, domain.ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive {
		return nil, nil, domain.ErrInactiveUser
	}

	return user, stored, nil
}

// classifyMissing tells a revoked token apart from one that was never issued
func (v *TokenValidator) classifyMissing(ctx context.Context, hash string) error {
	stored, err := v.tokens.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrInvalidRefreshToken
		}
		return fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if stored.Revoked {
		return domain.ErrRevokedToken
	}
	return domain.ErrInvalidRefreshToken
}
