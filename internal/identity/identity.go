// Package identity verifies third-party credentials and turns them into
// provider-agnostic identity assertions. Verification never touches the
// user directory.
package identity

import (
	"context"
	"fmt"

	"github.com/prperemyshlev/clavis-auth/internal/domain"
)

// Method identifies how a client proves its identity
type Method string

const (
	MethodGoogleIDToken Method = "google_id_token"
	MethodGoogleCode    Method = "google_code"
	MethodAppleIDToken  Method = "apple_id_token"
	MethodAdminPassword Method = "admin_password"
	MethodDev           Method = "dev"
)

// Credential is the raw material presented at login.
// Which fields are used depends on Method.
type Credential struct {
	Method   Method
	IDToken  string
	Code     string
	State    string
	Email    string
	Password string
}

// Verifier turns a credential into a verified identity assertion
type Verifier interface {
	Verify(ctx context.Context, cred Credential) (*domain.IdentityAssertion, error)
}

// Registry dispatches credentials to the verifier registered for their method
type Registry struct {
	verifiers map[Method]Verifier
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{verifiers: make(map[Method]Verifier)}
}

// Register binds a verifier to one or more methods
func (r *Registry) Register(v Verifier, methods ...Method) {
	for _, m := range methods {
		r.verifiers[m] = v
	}
}

// Enabled reports whether a verifier is registered for the method
func (r *Registry) Enabled(m Method) bool {
	_, ok := r.verifiers[m]
	return ok
}

// Verify verifies the credential with the verifier registered for its method
func (r *Registry) Verify(ctx context.Context, cred Credential) (*domain.IdentityAssertion, error) {
	v, ok := r.verifiers[cred.Method]
	if !ok {
		return nil, fmt.Errorf("%w: login method %q is not enabled", domain.ErrMalformedRequest, cred.Method)
	}
	return v.Verify(ctx, cred)
}
