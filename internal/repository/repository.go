package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"

	"github.com/prperemyshlev/clavis-auth/internal/domain"
	"github.com/prperemyshlev/clavis-auth/internal/utils"
	"github.com/prperemyshlev/clavis-auth/pkg/database"
)

// Column limits of the users table
const (
	maxUsernameLength = 150
	maxEmailLength    = 254
)

// Repositories holds all repository interfaces
type Repositories struct {
	User  UserRepository
	Token TokenRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:  NewUserRepository(db),
		Token: NewTokenRepository(db),
	}
}

// HashToken returns the storage key of a raw token
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// profileOf returns the email and username stored for a provider assertion.
// Names are clamped to the column. An email that cannot fit is not an
// address and is dropped.
func profileOf(a domain.IdentityAssertion) (email, username string) {
	email = utils.NormalizeEmail(a.Email)
	if len(email) > maxEmailLength || !utf8.ValidString(email) {
		email = ""
	}
	return email, utils.Truncate(a.Name, maxUsernameLength)
}
