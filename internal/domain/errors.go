package domain

import (
	"errors"
	"fmt"
)

// Request errors
var (
	ErrMalformedRequest = errors.New("malformed request")
)

// Identity errors. Verification failures wrap ErrIdentityVerification
// together with one of the reason errors below.
var (
	ErrIdentityVerification = errors.New("identity verification failed")
	ErrIdentityExchange     = errors.New("identity provider exchange failed")

	ErrBadSignature           = errors.New("bad signature")
	ErrWrongAudience          = errors.New("wrong audience")
	ErrWrongIssuer            = errors.New("wrong issuer")
	ErrIdentityTokenExpired   = errors.New("identity token expired")
	ErrMalformedIdentityToken = errors.New("malformed identity token")
	ErrInvalidOAuthState      = errors.New("invalid oauth state")
	ErrInvalidCredentials     = errors.New("invalid email or password")
)

// Refresh token errors
var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRevokedToken        = fmt.Errorf("refresh token revoked: %w", ErrInvalidRefreshToken)
	ErrExpiredRefreshToken = errors.New("refresh token expired")
	ErrUnknownRefreshToken = errors.New("refresh token not found")
)

// Access token errors
var (
	ErrInvalidTokenSignature = errors.New("invalid token signature")
	ErrAccessTokenExpired    = errors.New("access token expired")
	ErrMissingSubject        = errors.New("token has no subject")
	ErrMalformedToken        = errors.New("malformed token")
)

// User errors
var (
	ErrInactiveUser   = errors.New("user account is inactive")
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already belongs to another account")
)

// VerificationError joins ErrIdentityVerification with a reason
func VerificationError(reason error) error {
	return fmt.Errorf("%w: %w", ErrIdentityVerification, reason)
}
