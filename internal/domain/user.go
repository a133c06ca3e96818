package domain

import "time"

// Identity providers a user account can be bound to
const (
	ProviderGoogle = "google"
	ProviderApple  = "apple"
	ProviderLocal  = "local"
)

// User represents an account resolved from an external identity
type User struct {
	ID             string     `json:"id" db:"id"`
	Provider       string     `json:"provider" db:"provider"`
	ProviderUserID string     `json:"-" db:"provider_user_id"`
	Email          string     `json:"email" db:"email"`
	Username       string     `json:"username" db:"username"`
	PasswordHash   string     `json:"-" db:"password_hash"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	IsStaff        bool       `json:"is_staff" db:"is_staff"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	LastLoginAt    *time.Time `json:"last_login_at" db:"last_login_at"`
}

// IdentityAssertion is the verified external identity produced by every login method
type IdentityAssertion struct {
	Provider  string
	SubjectID string
	Email     string
	Name      string
}
