package identity

import (
	"context"

	"github.com/prperemyshlev/clavis-auth/internal/domain"
)

// Fixed identity returned by the developer login
const (
	DevSubjectID = "dev-google-user-001"
	DevEmail     = "dev@test.com"
	DevUsername  = "dev_user"
)

// DevVerifier accepts any credential as the fixed developer account.
// It must only be registered outside production.
type DevVerifier struct{}

// Verify implements Verifier
func (DevVerifier) Verify(context.Context, Credential) (*domain.IdentityAssertion, error) {
	return &domain.IdentityAssertion{
		Provider:  domain.ProviderGoogle,
		SubjectID: DevSubjectID,
		Email:     DevEmail,
		Name:      DevUsername,
	}, nil
}
