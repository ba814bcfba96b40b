// Package ephemeralredis implements the ephemeral state store on Redis (or any
// server speaking the Redis protocol) through go-redis.
package ephemeralredis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openkcm/oauth-server/internal/ephemeral"
	"github.com/openkcm/oauth-server/internal/serviceerr"
)

type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ = ephemeral.Store(&Store{})

func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
	}
}

func (s *Store) SetWithTTL(ctx context.Context, ns ephemeral.Namespace, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ephemeral.ErrInvalidTTL
	}

	if err := s.client.Set(ctx, ephemeral.Key(s.prefix, ns, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("setting %s entry: %w", ns, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, ns ephemeral.Namespace, key string) (string, error) {
	value, err := s.client.Get(ctx, ephemeral.Key(s.prefix, ns, key)).Result()
	if err != nil {
		return "", handleRedisError(ns, "getting", err)
	}

	return value, nil
}

// GetAndDelete relies on GETDEL (Redis 6.2+), which the server executes atomically.
func (s *Store) GetAndDelete(ctx context.Context, ns ephemeral.Namespace, key string) (string, error) {
	value, err := s.client.GetDel(ctx, ephemeral.Key(s.prefix, ns, key)).Result()
	if err != nil {
		return "", handleRedisError(ns, "consuming", err)
	}

	return value, nil
}

func handleRedisError(ns ephemeral.Namespace, op string, err error) error {
	if errors.Is(err, redis.Nil) {
		return serviceerr.ErrNotFound
	}

	return fmt.Errorf("%s %s entry: %w", op, ns, err)
}
