package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prperemyshlev/clavis-auth/internal/domain"
	"github.com/prperemyshlev/clavis-auth/internal/repository"
	"github.com/prperemyshlev/clavis-auth/internal/utils"
)

// LocalUserFinder looks up password-based users
type LocalUserFinder interface {
	GetLocalByEmail(ctx context.Context, email string) (*domain.User, error)
}

// LocalVerifier checks email and password of local (admin) accounts
type LocalVerifier struct {
	users  LocalUserFinder
	hasher *utils.PasswordHasher
}

// NewLocalVerifier creates a new local verifier
func NewLocalVerifier(users LocalUserFinder, hasher *utils.PasswordHasher) *LocalVerifier {
	return &LocalVerifier{users: users, hasher: hasher}
}

// Verify implements Verifier. Unknown email and wrong password fail identically.
func (l *LocalVerifier) Verify(ctx context.Context, cred Credential) (*domain.IdentityAssertion, error) {
	if strings.TrimSpace(cred.Email) == "" || cred.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrMalformedRequest)
	}

	user, err := l.users.GetLocalByEmail(ctx, cred.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			l.hasher.Compare(cred.Password, "")
			return nil, domain.VerificationError(domain.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to look up local user: %w", err)
	}

	if !l.hasher.Compare(cred.Password, user.PasswordHash) {
		return nil, domain.VerificationError(domain.ErrInvalidCredentials)
	}

	return &domain.IdentityAssertion{
		Provider:  domain.ProviderLocal,
		SubjectID: user.ProviderUserID,
		Email:     user.Email,
		Name:      user.Username,
	}, nil
}
