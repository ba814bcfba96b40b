// Package ephemeralmock provides an in-memory ephemeral.Store with injectable
// errors and TTL bookkeeping for tests.
package ephemeralmock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/openkcm/oauth-server/internal/ephemeral"
	"github.com/openkcm/oauth-server/internal/serviceerr"
)

type StoreOption func(*Store)

type entry struct {
	value string
	ttl   time.Duration
}

type Store struct {
	mu      sync.Mutex
	entries map[string]entry

	setErr, getErr, getAndDeleteErr error
}

func WithEntry(ns ephemeral.Namespace, key, value string, ttl time.Duration) StoreOption {
	return func(s *Store) { s.entries[ephemeral.Key("", ns, key)] = entry{value: value, ttl: ttl} }
}
func WithSetError(err error) StoreOption {
	return func(s *Store) { s.setErr = err }
}
func WithGetError(err error) StoreOption {
	return func(s *Store) { s.getErr = err }
}
func WithGetAndDeleteError(err error) StoreOption {
	return func(s *Store) { s.getAndDeleteErr = err }
}

var _ = ephemeral.Store(&Store{})

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// TGet is a helper method for tests to inspect an entry and its TTL.
func (s *Store) TGet(ns ephemeral.Namespace, key string) (string, time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[ephemeral.Key("", ns, key)]
	return e.value, e.ttl, ok
}

// TLen is a helper method for tests to count the entries of a namespace.
func (s *Store) TLen(ns ephemeral.Namespace) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := ephemeral.Key("", ns, "")
	n := 0
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

// TExpire is a helper method for tests to drop an entry as if its TTL ran out.
func (s *Store) TExpire(ns ephemeral.Namespace, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, ephemeral.Key("", ns, key))
}

// TAdvance is a helper method for tests to let d pass: entries whose TTL is
// not longer than d expire, the others keep their original TTL.
func (s *Store) TAdvance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.entries {
		if e.ttl <= d {
			delete(s.entries, k)
		}
	}
}

func (s *Store) SetWithTTL(_ context.Context, ns ephemeral.Namespace, key, value string, ttl time.Duration) error {
	if s.setErr != nil {
		return s.setErr
	}
	if ttl <= 0 {
		return ephemeral.ErrInvalidTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[ephemeral.Key("", ns, key)] = entry{value: value, ttl: ttl}
	return nil
}

func (s *Store) Get(_ context.Context, ns ephemeral.Namespace, key string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[ephemeral.Key("", ns, key)]
	if !ok {
		return "", serviceerr.ErrNotFound
	}
	return e.value, nil
}

func (s *Store) GetAndDelete(_ context.Context, ns ephemeral.Namespace, key string) (string, error) {
	if s.getAndDeleteErr != nil {
		return "", s.getAndDeleteErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := ephemeral.Key("", ns, key)
	e, ok := s.entries[k]
	if !ok {
		return "", serviceerr.ErrNotFound
	}
	delete(s.entries, k)
	return e.value, nil
}
