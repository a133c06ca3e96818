package domain

import "time"

// Token types carried in the token_type claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenClaims represents validated JWT claims
type TokenClaims struct {
	UserID    string
	TokenID   string
	TokenType string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssuedTokens is the output of a token issuance
type IssuedTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RefreshToken represents a stored refresh token row.
// Revoked only ever moves from false to true.
type RefreshToken struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	TokenHash  string     `json:"-" db:"token_hash"`
	Scope      string     `json:"session_scope" db:"session_scope"`
	DeviceInfo string     `json:"device_info" db:"device_info"`
	Revoked    bool       `json:"revoked" db:"revoked"`
	RevokedAt  *time.Time `json:"revoked_at" db:"revoked_at"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// IsExpired reports whether the stored expiry is not after now
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Session describes an active login of a user
type Session struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	Device    string    `json:"device"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
