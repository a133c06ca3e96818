package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/clavis-auth/internal/service"
	"go.uber.org/zap"
)

const userIDKey = "user_id"

// AuthMiddleware validates the bearer access token and adds the user id to context
func AuthMiddleware(authService service.AuthService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondError(c, http.StatusUnauthorized, CodeAuthenticationRequired, "authorization header is required")
			return
		}

		// Extract token from "Bearer <token>"
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			respondError(c, http.StatusUnauthorized, CodeAuthenticationRequired, "invalid authorization header format")
			return
		}

		userID, err := authService.ValidateAccessToken(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			writeError(c, logger, err)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// CurrentUserID returns the user id set by AuthMiddleware
func CurrentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
