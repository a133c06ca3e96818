package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prperemyshlev/clavis-auth/internal/domain"
)

// Claims is the signed payload of access and refresh tokens
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// JWTManager issues and verifies HS256 tokens.
// Tokens are signed with the active secret and verified against the active
// secret followed by any previous secrets still accepted during rotation.
type JWTManager struct {
	signingKey         []byte
	verificationKeys   jwt.VerificationKeySet
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	now                func() time.Time
}

// JWTOption configures a JWTManager
type JWTOption func(*JWTManager)

// WithPreviousSecrets accepts tokens signed with retired secrets
func WithPreviousSecrets(secrets ...string) JWTOption {
	return func(j *JWTManager) {
		for _, s := range secrets {
			if s == "" {
				continue
			}
			j.verificationKeys.Keys = append(j.verificationKeys.Keys, []byte(s))
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) JWTOption {
	return func(j *JWTManager) {
		j.now = now
	}
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret string, accessTokenExpiry, refreshTokenExpiry time.Duration, opts ...JWTOption) *JWTManager {
	j := &JWTManager{
		signingKey:         []byte(secret),
		verificationKeys:   jwt.VerificationKeySet{Keys: []jwt.VerificationKey{[]byte(secret)}},
		accessTokenExpiry:  accessTokenExpiry,
		refreshTokenExpiry: refreshTokenExpiry,
		now:                time.Now,
	}

	for _, opt := range opts {
		opt(j)
	}

	return j
}

// Issue generates an access and refresh token pair for the user
func (j *JWTManager) Issue(userID string) (*domain.IssuedTokens, error) {
	access, accessExp, err := j.sign(userID, domain.TokenTypeAccess, j.accessTokenExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, refreshExp, err := j.sign(userID, domain.TokenTypeRefresh, j.refreshTokenExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &domain.IssuedTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// IssueAccessToken generates a single access token
func (j *JWTManager) IssueAccessToken(userID string) (string, time.Time, error) {
	token, exp, err := j.sign(userID, domain.TokenTypeAccess, j.accessTokenExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return token, exp, nil
}

func (j *JWTManager) sign(userID, tokenType string, ttl time.Duration) (string, time.Time, error) {
	now := j.now()
	exp := now.Add(ttl)

	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ValidateAccessToken verifies an access token by signature and expiry alone
func (j *JWTManager) ValidateAccessToken(tokenString string) (*domain.TokenClaims, error) {
	claims, err := j.parse(tokenString)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTokenSignature, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", domain.ErrAccessTokenExpired, err)
		default:
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
		}
	}

	if claims.TokenType != domain.TokenTypeAccess {
		return nil, fmt.Errorf("%w: unexpected token type %q", domain.ErrMalformedToken, claims.TokenType)
	}

	if claims.Subject == "" {
		return nil, domain.ErrMissingSubject
	}

	return toDomainClaims(claims), nil
}

// ValidateRefreshToken verifies a refresh token's signature and embedded expiry
func (j *JWTManager) ValidateRefreshToken(tokenString string) (*domain.TokenClaims, error) {
	claims, err := j.parse(tokenString)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", domain.ErrExpiredRefreshToken, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRefreshToken, err)
	}

	if claims.TokenType != domain.TokenTypeRefresh {
		return nil, fmt.Errorf("%w: unexpected token type %q", domain.ErrInvalidRefreshToken, claims.TokenType)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRefreshToken, domain.ErrMissingSubject)
	}

	return toDomainClaims(claims), nil
}

// AccessTokenExpiry returns the access token lifetime
func (j *JWTManager) AccessTokenExpiry() time.Duration {
	return j.accessTokenExpiry
}

// RefreshTokenExpiry returns the refresh token lifetime
func (j *JWTManager) RefreshTokenExpiry() time.Duration {
	return j.refreshTokenExpiry
}

func (j *JWTManager) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			return j.verificationKeys, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func toDomainClaims(c *Claims) *domain.TokenClaims {
	tc := &domain.TokenClaims{
		UserID:    c.Subject,
		TokenID:   c.ID,
		TokenType: c.TokenType,
	}
	if c.IssuedAt != nil {
		tc.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		tc.ExpiresAt = c.ExpiresAt.Time
	}
	return tc
}
