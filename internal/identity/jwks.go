package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prperemyshlev/clavis-auth/internal/domain"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	defaultFetchTimeout = 5 * time.Second
	defaultKeysTTL      = time.Hour
	// minRefreshInterval limits refetches triggered by unknown key ids
	minRefreshInterval = 30 * time.Second
	refreshWaitMax     = time.Second
)

var errUnknownKey = errors.New("unknown signing key")

// KeySet serves the signing keys published at an identity provider's JWKS
// endpoint. Keys are fetched on first use, refreshed every ttl and refetched
// when a token names an unknown key id.
type KeySet struct {
	url     string
	client  *http.Client
	ttl     time.Duration
	timeout time.Duration

	mu    sync.RWMutex
	keys  keyfunc.Keyfunc
	group singleflight.Group
}

// NewKeySet creates a key set fetched from url and cached for ttl
func NewKeySet(url string, client *http.Client, ttl time.Duration) *KeySet {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	if ttl <= 0 {
		ttl = defaultKeysTTL
	}
	timeout := client.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &KeySet{
		url:     url,
		client:  client,
		ttl:     ttl,
		timeout: timeout,
	}
}

// Keyfunc resolves the key that verifies token
func (k *KeySet) Keyfunc(ctx context.Context, token *jwt.Token) (any, error) {
	kf, err := k.load(ctx)
	if err != nil {
		return nil, err
	}

	key, err := kf.Keyfunc(token)
	if err == nil {
		return key, nil
	}

	// Nothing stored means the provider has not served a usable key set yet.
	stored, readErr := kf.Storage().KeyReadAll(context.WithoutCancel(ctx))
	if readErr == nil && len(stored) == 0 {
		return nil, fmt.Errorf("%w: no signing keys available from %s", domain.ErrIdentityExchange, k.url)
	}
	return nil, fmt.Errorf("%w: %w", errUnknownKey, err)
}

// load builds the remote key set once. Concurrent callers share the first
// fetch, which runs detached from any request so one caller leaving does not
// fail the others. A failed load is retried by the next caller.
func (k *KeySet) load(ctx context.Context) (keyfunc.Keyfunc, error) {
	k.mu.RLock()
	kf := k.keys
	k.mu.RUnlock()
	if kf != nil {
		return kf, nil
	}

	ch := k.group.DoChan("load", func() (any, error) {
		kf, err := k.newKeyfunc()
		if err != nil {
			return nil, err
		}

		k.mu.Lock()
		k.keys = kf
		k.mu.Unlock()
		return kf, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(keyfunc.Keyfunc), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrIdentityExchange, ctx.Err())
	}
}

func (k *KeySet) newKeyfunc() (keyfunc.Keyfunc, error) {
	// The storage refreshes in the background for the life of the process.
	lifetime := context.Background()

	remote, err := jwkset.NewStorageFromHTTP(k.url, jwkset.HTTPClientStorageOptions{
		Client:          k.client,
		Ctx:             lifetime,
		HTTPTimeout:     k.timeout,
		RefreshInterval: k.ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetching signing keys: %v", domain.ErrIdentityExchange, err)
	}

	storage, err := jwkset.NewHTTPClient(jwkset.HTTPClientOptions{
		HTTPURLs:          map[string]jwkset.Storage{k.url: remote},
		RefreshUnknownKID: rate.NewLimiter(rate.Every(minRefreshInterval), 1),
		RateLimitWaitMax:  refreshWaitMax,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIdentityExchange, err)
	}

	kf, err := keyfunc.New(keyfunc.Options{
		Ctx:     lifetime,
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIdentityExchange, err)
	}
	return kf, nil
}
