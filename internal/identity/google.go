package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prperemyshlev/clavis-auth/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultExchangeTimeout = 10 * time.Second

// GoogleConfig configures Google Sign-In
type GoogleConfig struct {
	// ClientIDs are the accepted audiences; the first one performs code exchange
	ClientIDs       []string
	ClientSecret    string
	RedirectURL     string
	Issuers         []string
	CertsURL        string
	KeysCacheTTL    time.Duration
	ExchangeTimeout time.Duration
	// Endpoint overrides google.Endpoint
	Endpoint   *oauth2.Endpoint
	HTTPClient *http.Client
}

// GoogleVerifier verifies Google ID tokens and exchanges authorization codes
type GoogleVerifier struct {
	idTokens        *IDTokenVerifier
	oauth           *oauth2.Config
	exchangeTimeout time.Duration
	httpClient      *http.Client
}

// NewGoogleVerifier creates a new Google verifier
func NewGoogleVerifier(cfg GoogleConfig) *GoogleVerifier {
	timeout := cfg.ExchangeTimeout
	if timeout <= 0 {
		timeout = defaultExchangeTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}

	var clientID string
	if len(cfg.ClientIDs) > 0 {
		clientID = cfg.ClientIDs[0]
	}

	return &GoogleVerifier{
		idTokens: NewIDTokenVerifier(OIDCConfig{
			Provider:  domain.ProviderGoogle,
			Issuers:   cfg.Issuers,
			Audiences: cfg.ClientIDs,
			Keys:      NewKeySet(cfg.CertsURL, httpClient, cfg.KeysCacheTTL),
		}),
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		exchangeTimeout: timeout,
		httpClient:      httpClient,
	}
}

// Verify handles both the direct ID token and the authorization code methods
func (g *GoogleVerifier) Verify(ctx context.Context, cred Credential) (*domain.IdentityAssertion, error) {
	switch cred.Method {
	case MethodGoogleIDToken:
		return g.idTokens.Verify(ctx, cred)
	case MethodGoogleCode:
		if strings.TrimSpace(cred.Code) == "" {
			return nil, fmt.Errorf("%w: code is required", domain.ErrMalformedRequest)
		}
		idToken, err := g.exchange(ctx, cred.Code)
		if err != nil {
			return nil, err
		}
		return g.idTokens.VerifyIDToken(ctx, idToken)
	default:
		return nil, fmt.Errorf("%w: unsupported method %q", domain.ErrMalformedRequest, cred.Method)
	}
}

// AuthCodeURL returns the consent page URL carrying state
func (g *GoogleVerifier) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// exchange trades an authorization code for an ID token within the exchange timeout
func (g *GoogleVerifier) exchange(ctx context.Context, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.exchangeTimeout)
	defer cancel()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)

	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrIdentityExchange, err)
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return "", fmt.Errorf("%w: token response has no id_token", domain.ErrIdentityExchange)
	}

	return idToken, nil
}
