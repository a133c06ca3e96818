package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/clavis-auth/internal/domain"
	"github.com/prperemyshlev/clavis-auth/internal/dto"
	"go.uber.org/zap"
)

// Error codes returned in the error envelope
const (
	CodeMalformedRequest       = "malformed_request"
	CodeAuthenticationRequired = "authentication_required"
	CodeIdentityExchange       = "identity_exchange_failed"
	CodeIdentityVerification   = "identity_verification_failed"
	CodeInvalidRefreshToken    = "invalid_refresh_token"
	CodeRefreshTokenExpired    = "refresh_token_expired"
	CodeInactiveUser           = "inactive_user"
	CodeInvalidTokenSignature  = "invalid_token_signature"
	CodeTokenExpired           = "token_expired"
	CodeTokenMissingSubject    = "token_missing_subject"
	CodeInvalidToken           = "invalid_token"
	CodeUserNotFound           = "user_not_found"
	CodeTokenNotFound          = "token_not_found"
	CodeEmailConflict          = "email_conflict"
	CodeRateLimited            = "rate_limited"
	CodeInternal               = "internal_error"
)

type errorMapping struct {
	kind    error
	status  int
	code    string
	message string
}

// errorMappings is ordered most specific first. ErrRevokedToken must precede
// ErrInvalidRefreshToken, which it wraps.
var errorMappings = []errorMapping{
	{domain.ErrMalformedRequest, http.StatusBadRequest, CodeMalformedRequest, ""},
	{domain.ErrIdentityExchange, http.StatusUnauthorized, CodeIdentityExchange, "could not complete sign-in with the identity provider"},
	{domain.ErrIdentityVerification, http.StatusUnauthorized, CodeIdentityVerification, ""},
	{domain.ErrRevokedToken, http.StatusUnauthorized, CodeInvalidRefreshToken, "refresh token has been revoked"},
	{domain.ErrExpiredRefreshToken, http.StatusUnauthorized, CodeRefreshTokenExpired, "refresh token has expired"},
	{domain.ErrInvalidRefreshToken, http.StatusUnauthorized, CodeInvalidRefreshToken, "invalid refresh token"},
	{domain.ErrInactiveUser, http.StatusUnauthorized, CodeInactiveUser, "user account is inactive"},
	{domain.ErrInvalidTokenSignature, http.StatusUnauthorized, CodeInvalidTokenSignature, "token signature is invalid"},
	{domain.ErrAccessTokenExpired, http.StatusUnauthorized, CodeTokenExpired, "access token has expired"},
	{domain.ErrMissingSubject, http.StatusUnauthorized, CodeTokenMissingSubject, "token has no subject"},
	{domain.ErrMalformedToken, http.StatusUnauthorized, CodeInvalidToken, "invalid token"},
	{domain.ErrUserNotFound, http.StatusUnauthorized, CodeUserNotFound, "user not found"},
	{domain.ErrUnknownRefreshToken, http.StatusNotFound, CodeTokenNotFound, "refresh token not found"},
	{domain.ErrDuplicateEmail, http.StatusConflict, CodeEmailConflict, "email is already linked to another account"},
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, dto.Envelope{Success: true, Data: data})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.Envelope{
		Success: false,
		Data:    dto.ErrorData{Message: message, Error: code},
	})
}

// writeError maps err to its status and code. Unmapped errors are logged and
// answered with a generic 500.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.kind) {
			continue
		}

		message := m.message
		if message == "" {
			// Malformed request and verification errors carry a safe reason.
			message = err.Error()
		}

		logger.Info("request rejected",
			zap.String("path", c.FullPath()),
			zap.String("error_code", m.code),
			zap.Error(err),
		)
		respondError(c, m.status, m.code, message)
		return
	}

	logger.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	respondError(c, http.StatusInternalServerError, CodeInternal, "internal server error")
}
