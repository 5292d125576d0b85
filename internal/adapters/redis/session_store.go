package redis

// Package redis provides Redis-based adapters for oidc-gate.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSessionTTL = 24 * time.Hour

// SessionStore keeps each visitor session as a Redis hash. Every write
// refreshes the key TTL, so idle sessions expire on their own.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// SessionStoreOptions configures a SessionStore.
type SessionStoreOptions struct {
	// Prefix namespaces session keys; defaults to "oidcgate:session:".
	Prefix string
	// TTL bounds idle session lifetime; defaults to 24h.
	TTL time.Duration
}

// NewSessionStore creates a new Redis-based session store.
func NewSessionStore(client redis.UniversalClient, opts SessionStoreOptions) *SessionStore {
	if opts.Prefix == "" {
		opts.Prefix = "oidcgate:session:"
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultSessionTTL
	}
	return &SessionStore{client: client, prefix: opts.Prefix, ttl: opts.TTL}
}

// ErrEmptyID is returned when a write targets an empty session id.
var ErrEmptyID = errors.New("session ID cannot be empty")

func (s *SessionStore) Load(ctx context.Context, id string) (map[string]string, error) {
	if id == "" {
		return map[string]string{}, nil
	}
	vals, err := s.client.HGetAll(ctx, s.prefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	return vals, nil
}

func (s *SessionStore) Set(ctx context.Context, id string, values map[string]string) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(values) == 0 {
		return nil
	}
	key := s.prefix + id
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, values)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string, keys ...string) error {
	if id == "" || len(keys) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.prefix+id, keys...).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

func (s *SessionStore) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+id).Err()
}
