package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces every key built with Key
	KeyPrefix string
}

// Redis wraps a go-redis client shared by the state store and the rate limiter
type Redis struct {
	Client *redis.Client
	prefix string
}

// NewRedis connects to Redis and verifies the connection with a PING
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return &Redis{Client: client, prefix: strings.TrimSuffix(opts.KeyPrefix, ":")}, nil
}

// Key joins parts with ":" under the configured prefix
func (r *Redis) Key(parts ...string) string {
	key := strings.Join(parts, ":")
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

func (r *Redis) Close() error {
	return r.Client.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
