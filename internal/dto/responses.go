package dto

import "time"

// Envelope wraps every response body
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// MessageData is the payload of responses that carry only a message
type MessageData struct {
	Message string `json:"message"`
}

// ErrorData is the payload of error responses
type ErrorData struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// UserSummary is the user returned on login
type UserSummary struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// LoginData is returned by every login endpoint
type LoginData struct {
	Message      string      `json:"message"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         UserSummary `json:"user"`
}

// LoginURLData carries the Google consent page URL
type LoginURLData struct {
	Message string `json:"message"`
	URL     string `json:"url"`
	State   string `json:"state"`
}

// RefreshData carries a reissued access token
type RefreshData struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
}

// LogoutAllData reports how many sessions were revoked
type LogoutAllData struct {
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}

// MeUser is the user returned by the profile endpoint
type MeUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Provider string `json:"provider"`
}

// MeData is the profile response payload
type MeData struct {
	Message string `json:"message"`
	User    MeUser `json:"user"`
}

// SessionInfo describes one active session
type SessionInfo struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	Device    string    `json:"device"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionsData lists the caller's active sessions
type SessionsData struct {
	Message  string        `json:"message"`
	Sessions []SessionInfo `json:"sessions"`
}
