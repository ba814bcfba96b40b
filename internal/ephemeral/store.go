// Package ephemeral defines the short-lived key/value state of the server:
// authorization codes, sessions and refresh tokens. Every entry has a TTL and
// codes are consumed with an atomic get-and-delete.
package ephemeral

import (
	"context"
	"errors"
	"strings"
	"time"
)

type Namespace string

const (
	NamespaceAuthCode     Namespace = "auth_code"
	NamespaceSession      Namespace = "cookie"
	NamespaceRefreshToken Namespace = "refresh_token"
)

var ErrInvalidTTL = errors.New("ttl must be positive")

// Store is implemented by every ephemeral state backend.
//
// Get and GetAndDelete return serviceerr.ErrNotFound for absent or expired
// entries. GetAndDelete must be a single atomic operation at the store: two
// concurrent calls for the same key never both return the value.
type Store interface {
	SetWithTTL(ctx context.Context, ns Namespace, key, value string, ttl time.Duration) error
	Get(ctx context.Context, ns Namespace, key string) (string, error)
	GetAndDelete(ctx context.Context, ns Namespace, key string) (string, error)
}

// Key returns "<namespace>:<key>", or "<prefix>:<namespace>:<key>" when a
// prefix is set.
func Key(prefix string, ns Namespace, key string) string {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		return string(ns) + ":" + key
	}

	return prefix + ":" + string(ns) + ":" + key
}
