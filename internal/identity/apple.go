package identity

import (
	"net/http"
	"time"

	"github.com/prperemyshlev/clavis-auth/internal/domain"
)

// AppleConfig configures Sign in with Apple
type AppleConfig struct {
	ClientIDs    []string
	Issuer       string
	KeysURL      string
	KeysCacheTTL time.Duration
	HTTPClient   *http.Client
}

// NewAppleVerifier creates a verifier for Apple identity tokens.
// Apple only sends the user's name on the first authorization, never in the token.
func NewAppleVerifier(cfg AppleConfig) *IDTokenVerifier {
	return NewIDTokenVerifier(OIDCConfig{
		Provider:  domain.ProviderApple,
		Issuers:   []string{cfg.Issuer},
		Audiences: cfg.ClientIDs,
		Keys:      NewKeySet(cfg.KeysURL, cfg.HTTPClient, cfg.KeysCacheTTL),
	})
}
