package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prperemyshlev/clavis-auth/internal/domain"
	"github.com/prperemyshlev/clavis-auth/pkg/database"
	"github.com/redis/go-redis/v9"
)

// redisStateStore keeps OAuth state values in Redis until consumed or expired
type redisStateStore struct {
	redis *database.Redis
	ttl   time.Duration
}

// NewRedisStateStore creates a new Redis-backed OAuth state store
func NewRedisStateStore(redis *database.Redis, ttl time.Duration) OAuthStateStore {
	return &redisStateStore{redis: redis, ttl: ttl}
}

// NewState returns a random URL-safe state value
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Issue creates and stores a new state value
func (s *redisStateStore) Issue(ctx context.Context) (string, error) {
	state, err := NewState()
	if err != nil {
		return "", err
	}

	if err := s.redis.Client.Set(ctx, s.redis.Key("oauth", "state", state), "1", s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}
	return state, nil
}

// Consume deletes the state, failing if it was never issued, expired or already used
func (s *redisStateStore) Consume(ctx context.Context, state string) error {
	if strings.TrimSpace(state) == "" {
		return domain.VerificationError(domain.ErrInvalidOAuthState)
	}

	err := s.redis.Client.GetDel(ctx, s.redis.Key("oauth", "state", state)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.VerificationError(domain.ErrInvalidOAuthState)
		}
		return fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return nil
}
