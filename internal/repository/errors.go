package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when an email already belongs to another user
	ErrDuplicateEmail = errors.New("user with this email already exists")

	// ErrDuplicateUser is returned when a provider identity is already bound to a user
	ErrDuplicateUser = errors.New("user with this provider identity already exists")

	// ErrDuplicateToken is returned when trying to create a token with an existing hash
	ErrDuplicateToken = errors.New("token with this hash already exists")
)

const (
	codeUniqueViolation    = "23505"
	codeInvalidTextFormat  = "22P02"
	usersEmailConstraint   = "users_email_key"
	usersSubjectConstraint = "users_provider_subject_key"
)

// uniqueViolation returns the violated constraint name, if err is a unique violation
func uniqueViolation(err error) (string, bool) {
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == codeUniqueViolation {
			return pqErr.Constraint, true
		}
	}
	return "", false
}

// invalidInput reports whether Postgres rejected a malformed value, e.g. a non-UUID id
func invalidInput(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == codeInvalidTextFormat
	}
	return false
}
