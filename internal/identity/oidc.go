package identity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prperemyshlev/clavis-auth/internal/domain"
)

const defaultLeeway = 30 * time.Second

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

// emailVerified handles both the boolean and the string ("true") encodings
func (c *idTokenClaims) emailVerified() bool {
	switch v := c.EmailVerified.(type) {
	case nil:
		return true
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}

// OIDCConfig configures an ID token verifier for one provider
type OIDCConfig struct {
	Provider  string
	Issuers   []string
	Audiences []string
	Keys      *KeySet
	Leeway    time.Duration
	Now       func() time.Time
}

// IDTokenVerifier verifies RS256 OpenID Connect ID tokens.
// Signature, expiry, issuer and audience must all pass.
type IDTokenVerifier struct {
	provider  string
	issuers   []string
	audiences []string
	keys      *KeySet
	leeway    time.Duration
	now       func() time.Time
}

// NewIDTokenVerifier creates a new ID token verifier
func NewIDTokenVerifier(cfg OIDCConfig) *IDTokenVerifier {
	v := &IDTokenVerifier{
		provider:  cfg.Provider,
		issuers:   cfg.Issuers,
		audiences: cfg.Audiences,
		keys:      cfg.Keys,
		leeway:    cfg.Leeway,
		now:       cfg.Now,
	}
	if v.leeway == 0 {
		v.leeway = defaultLeeway
	}
	if v.now == nil {
		v.now = time.Now
	}
	return v
}

// Verify implements Verifier for ID token credentials
func (v *IDTokenVerifier) Verify(ctx context.Context, cred Credential) (*domain.IdentityAssertion, error) {
	if strings.TrimSpace(cred.IDToken) == "" {
		return nil, fmt.Errorf("%w: id_token is required", domain.ErrMalformedRequest)
	}
	return v.VerifyIDToken(ctx, cred.IDToken)
}

// VerifyIDToken verifies a raw ID token
func (v *IDTokenVerifier) VerifyIDToken(ctx context.Context, raw string) (*domain.IdentityAssertion, error) {
	claims := &idTokenClaims{}

	_, err := jwt.ParseWithClaims(raw, claims,
		func(token *jwt.Token) (any, error) {
			if kid, _ := token.Header["kid"].(string); kid == "" {
				return nil, errUnknownKey
			}
			return v.keys.Keyfunc(ctx, token)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, v.classify(err)
	}

	if !slices.Contains(v.issuers, claims.Issuer) {
		return nil, domain.VerificationError(fmt.Errorf("%w: %q", domain.ErrWrongIssuer, claims.Issuer))
	}

	if !v.audienceAllowed(claims.Audience) {
		return nil, domain.VerificationError(domain.ErrWrongAudience)
	}

	if claims.Subject == "" {
		return nil, domain.VerificationError(fmt.Errorf("%w: missing subject", domain.ErrMalformedIdentityToken))
	}

	assertion := &domain.IdentityAssertion{
		Provider:  v.provider,
		SubjectID: claims.Subject,
		Name:      strings.TrimSpace(claims.Name),
	}
	if claims.emailVerified() {
		assertion.Email = strings.TrimSpace(claims.Email)
	}

	return assertion, nil
}

func (v *IDTokenVerifier) audienceAllowed(aud jwt.ClaimStrings) bool {
	for _, a := range aud {
		if slices.Contains(v.audiences, a) {
			return true
		}
	}
	return false
}

func (v *IDTokenVerifier) classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrIdentityExchange):
		return err
	case errors.Is(err, jwt.ErrTokenMalformed):
		return domain.VerificationError(domain.ErrMalformedIdentityToken)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return domain.VerificationError(domain.ErrBadSignature)
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.VerificationError(domain.ErrIdentityTokenExpired)
	default:
		return domain.VerificationError(fmt.Errorf("%w: %v", domain.ErrMalformedIdentityToken, err))
	}
}
