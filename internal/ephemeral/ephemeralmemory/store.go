// Package ephemeralmemory implements the ephemeral state store in process
// memory. It suits single-instance deployments and tests; entries do not
// survive a restart and are not shared between replicas.
package ephemeralmemory

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/openkcm/oauth-server/internal/ephemeral"
	"github.com/openkcm/oauth-server/internal/serviceerr"
)

// DefaultCleanupInterval is how often expired entries are purged. Expired
// entries are never returned, purging only reclaims memory.
const DefaultCleanupInterval = time.Minute

type Store struct {
	// mu serialises writers so that a lookup and the following delete in
	// GetAndDelete happen as one step.
	mu     sync.Mutex
	cache  *cache.Cache
	prefix string
}

var _ = ephemeral.Store(&Store{})

func NewStore(prefix string, cleanupInterval time.Duration) *Store {
	return &Store{
		cache:  cache.New(cache.NoExpiration, cleanupInterval),
		prefix: prefix,
	}
}

func (s *Store) SetWithTTL(_ context.Context, ns ephemeral.Namespace, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ephemeral.ErrInvalidTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Set(ephemeral.Key(s.prefix, ns, key), value, ttl)

	return nil
}

func (s *Store) Get(_ context.Context, ns ephemeral.Namespace, key string) (string, error) {
	value, ok := s.cache.Get(ephemeral.Key(s.prefix, ns, key))
	if !ok {
		return "", serviceerr.ErrNotFound
	}

	return value.(string), nil
}

func (s *Store) GetAndDelete(_ context.Context, ns ephemeral.Namespace, key string) (string, error) {
	k := ephemeral.Key(s.prefix, ns, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.cache.Get(k)
	if !ok {
		return "", serviceerr.ErrNotFound
	}
	s.cache.Delete(k)

	return value.(string), nil
}

// Len returns the number of entries held, including expired ones not yet purged.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}
