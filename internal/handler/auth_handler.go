package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/clavis-auth/internal/domain"
	"github.com/prperemyshlev/clavis-auth/internal/dto"
	"github.com/prperemyshlev/clavis-auth/internal/identity"
	"github.com/prperemyshlev/clavis-auth/internal/service"
	"go.uber.org/zap"
)

// Response messages
const (
	MessageLoginSuccessful  = "login successful"
	MessageLoginURL         = "redirect the user to url to sign in"
	MessageTokenReissued    = "access token reissued"
	MessageLoggedOut        = "logged out successfully"
	MessageAlreadyLoggedOut = "token already logged out"
	MessageLoggedOutAll     = "all sessions logged out"
	MessageProfile          = "current user"
	MessageSessions         = "active sessions"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// GoogleLogin handles sign-in with a Google ID token
// @Summary Sign in with Google
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.IDTokenLoginRequest true "Google ID token"
// @Success 200 {object} dto.Envelope{data=dto.LoginData}
// @Failure 400 {object} dto.Envelope{data=dto.ErrorData}
// @Failure 401 {object} dto.Envelope{data=dto.ErrorData}
// @Router /auth/google/login [post]
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req dto.IDTokenLoginRequest
	if !h.bind(c, &req) {
		return
	}

	h.login(c, identity.Credential{Method: identity.MethodGoogleIDToken, IDToken: req.IDToken})
}

// GoogleLoginURL returns the Google consent page for the code flow
// @Summary Google consent page URL
// @Tags auth
// @Produce json
// @Success 200 {object} dto.Envelope{data=dto.LoginURLData}
// @Router /auth/google/login-url [get]
func (h *AuthHandler) GoogleLoginURL(c *gin.Context) {
	consent, err := h.authService.AuthorizationURL(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, dto.LoginURLData{
		Message: MessageLoginURL,
		URL:     consent.URL,
		State:   consent.State,
	})
}

// GoogleCallback completes the authorization code flow.
// code and state are read from the query string, a form post or a JSON body.
// @Summary Google authorization code callback
// @Tags auth
// @Produce json
// @Param code query string true "Authorization code"
// @Param state query string true "State from login-url"
// @Success 200 {object} dto.Envelope{data=dto.LoginData}
// @Failure 401 {object} dto.Envelope{data=dto.ErrorData}
// @Router /auth/google/callback [get]
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	var req dto.CallbackRequest
	if err := c.ShouldBind(&req); err != nil {
		writeError(c, h.logger, fmt.Errorf("%w: %v", domain.ErrMalformedRequest, err))
		return
	}

	h.login(c, identity.Credential{Method: identity.MethodGoogleCode, Code: req.Code, State: req.State})
}

// AppleLogin handles sign-in with an Apple ID token
// @Summary Sign in with Apple
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.IDTokenLoginRequest true "Apple ID token"
// @Success 200 {object} dto.Envelope{data=dto.LoginData}
// @Router /auth/apple/login [post]
func (h *AuthHandler) AppleLogin(c *gin.Context) {
	var req dto.IDTokenLoginRequest
	if !h.bind(c, &req) {
		return
	}

	h.login(c, identity.Credential{Method: identity.MethodAppleIDToken, IDToken: req.IDToken})
}

// AdminLogin handles staff sign-in with email and password
// @Summary Staff login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.AdminLoginRequest true "Credentials"
// @Success 200 {object} dto.Envelope{data=dto.LoginData}
// @Router /auth/admin/login [post]
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req dto.AdminLoginRequest
	if !h.bind(c, &req) {
		return
	}

	h.login(c, identity.Credential{Method: identity.MethodAdminPassword, Email: req.Email, Password: req.Password})
}

// DevLogin signs in as the fixed developer account
func (h *AuthHandler) DevLogin(c *gin.Context) {
	h.login(c, identity.Credential{Method: identity.MethodDev})
}

func (h *AuthHandler) login(c *gin.Context, cred identity.Credential) {
	result, err := h.authService.Login(c.Request.Context(), cred, service.ClientInfo{
		UserAgent: c.Request.UserAgent(),
		IP:        c.ClientIP(),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, dto.LoginData{
		Message:      MessageLoginSuccessful,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User: dto.UserSummary{
			ID:       result.User.ID,
			Email:    result.User.Email,
			Username: result.User.Username,
		},
	})
}

// Refresh reissues an access token
// @Summary Reissue access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.Envelope{data=dto.RefreshData}
// @Failure 401 {object} dto.Envelope{data=dto.ErrorData}
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, dto.RefreshData{
		Message:     MessageTokenReissued,
		AccessToken: result.AccessToken,
	})
}

// Logout revokes a refresh token
// @Summary Logout
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.Envelope{data=dto.MessageData}
// @Failure 404 {object} dto.Envelope{data=dto.ErrorData}
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.authService.Logout(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	message := MessageLoggedOut
	if result.AlreadyRevoked {
		message = MessageAlreadyLoggedOut
	}
	respond(c, http.StatusOK, dto.MessageData{Message: message})
}

// LogoutAll revokes every session of the caller
// @Summary Logout everywhere
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.Envelope{data=dto.LogoutAllData}
// @Router /auth/logout/all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	revoked, err := h.authService.LogoutAll(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, dto.LogoutAllData{Message: MessageLoggedOutAll, Revoked: revoked})
}

// Me returns the current user
// @Summary Current user
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.Envelope{data=dto.MeData}
// @Failure 401 {object} dto.Envelope{data=dto.ErrorData}
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authService.Me(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, dto.MeData{
		Message: MessageProfile,
		User: dto.MeUser{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
			Provider: user.Provider,
		},
	})
}

// Sessions lists the caller's active sessions
// @Summary Active sessions
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.Envelope{data=dto.SessionsData}
// @Router /auth/sessions [get]
func (h *AuthHandler) Sessions(c *gin.Context) {
	sessions, err := h.authService.Sessions(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	data := dto.SessionsData{Message: MessageSessions, Sessions: make([]dto.SessionInfo, 0, len(sessions))}
	for _, s := range sessions {
		data.Sessions = append(data.Sessions, dto.SessionInfo{
			ID:        s.ID,
			Scope:     s.Scope,
			Device:    s.Device,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
		})
	}
	respond(c, http.StatusOK, data)
}

func (h *AuthHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, h.logger, fmt.Errorf("%w: %v", domain.ErrMalformedRequest, err))
		return false
	}
	return true
}
