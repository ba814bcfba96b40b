// Package ephemeralvalkey implements the ephemeral state store on Valkey.
package ephemeralvalkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/openkcm/oauth-server/internal/ephemeral"
	"github.com/openkcm/oauth-server/internal/serviceerr"
)

type Store struct {
	valkey valkey.Client
	prefix string
}

var _ = ephemeral.Store(&Store{})

func NewStore(client valkey.Client, prefix string) *Store {
	return &Store{
		valkey: client,
		prefix: prefix,
	}
}

func (s *Store) SetWithTTL(ctx context.Context, ns ephemeral.Namespace, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ephemeral.ErrInvalidTTL
	}

	cmd := s.valkey.B().Set().
		Key(ephemeral.Key(s.prefix, ns, key)).
		Value(value).
		PxMilliseconds(max(ttl.Milliseconds(), 1)).
		Build()

	if err := s.valkey.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("setting %s entry: %w", ns, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, ns ephemeral.Namespace, key string) (string, error) {
	cmd := s.valkey.B().Get().Key(ephemeral.Key(s.prefix, ns, key)).Build()

	value, err := s.valkey.Do(ctx, cmd).ToString()
	if err != nil {
		return "", handleValkeyError(ns, "getting", err)
	}

	return value, nil
}

// GetAndDelete relies on GETDEL, which the server executes atomically.
func (s *Store) GetAndDelete(ctx context.Context, ns ephemeral.Namespace, key string) (string, error) {
	cmd := s.valkey.B().Getdel().Key(ephemeral.Key(s.prefix, ns, key)).Build()

	value, err := s.valkey.Do(ctx, cmd).ToString()
	if err != nil {
		return "", handleValkeyError(ns, "consuming", err)
	}

	return value, nil
}

func handleValkeyError(ns ephemeral.Namespace, op string, err error) error {
	if valkeyErr, ok := valkey.IsValkeyErr(err); ok && valkeyErr.IsNil() {
		return serviceerr.ErrNotFound
	}

	return fmt.Errorf("%s %s entry: %w", op, ns, err)
}
