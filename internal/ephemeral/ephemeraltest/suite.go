// Package ephemeraltest holds the behaviour every ephemeral.Store
// implementation must show, as a reusable test suite.
package ephemeraltest

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/oauth-server/internal/ephemeral"
	"github.com/openkcm/oauth-server/internal/serviceerr"
)

// Harness is a fresh store plus a way to let time pass for it. Stores backed
// by a real clock use time.Sleep, miniredis uses FastForward.
type Harness struct {
	Store   ephemeral.Store
	Advance func(time.Duration)
}

func RunStoreTests(t *testing.T, newHarness func(t *testing.T) Harness) {
	t.Helper()

	t.Run("set and get", func(t *testing.T) {
		h := newHarness(t)
		ctx := t.Context()

		require.NoError(t, h.Store.SetWithTTL(ctx, ephemeral.NamespaceSession, "sid-1", "alice@example.com", time.Minute))

		got, err := h.Store.Get(ctx, ephemeral.NamespaceSession, "sid-1")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", got)

		// get does not consume
		got, err = h.Store.Get(ctx, ephemeral.NamespaceSession, "sid-1")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", got)
	})

	t.Run("overwrite", func(t *testing.T) {
		h := newHarness(t)
		ctx := t.Context()

		require.NoError(t, h.Store.SetWithTTL(ctx, ephemeral.NamespaceSession, "sid-2", "one", time.Minute))
		require.NoError(t, h.Store.SetWithTTL(ctx, ephemeral.NamespaceSession, "sid-2", "two", time.Minute))

		got, err := h.Store.Get(ctx, ephemeral.NamespaceSession, "sid-2")
		require.NoError(t, err)
		assert.Equal(t, "two", got)
	})

	t.Run("missing", func(t *testing.T) {
		h := newHarness(t)
		ctx := t.Context()

		_, err := h.Store.Get(ctx, ephemeral.NamespaceSession, "does-not-exist")
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)

		_, err = h.Store.GetAndDelete(ctx, ephemeral.NamespaceAuthCode, "does-not-exist")
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)
	})

	t.Run("invalid ttl", func(t *testing.T) {
		h := newHarness(t)

		err := h.Store.SetWithTTL(t.Context(), ephemeral.NamespaceAuthCode, "code", "v", 0)
		assert.ErrorIs(t, err, ephemeral.ErrInvalidTTL)
	})

	t.Run("get and delete consumes", func(t *testing.T) {
		h := newHarness(t)
		ctx := t.Context()

		require.NoError(t, h.Store.SetWithTTL(ctx, ephemeral.NamespaceAuthCode, "code-1", `{"client_id":"c"}`, time.Minute))

		got, err := h.Store.GetAndDelete(ctx, ephemeral.NamespaceAuthCode, "code-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"client_id":"c"}`, got)

		_, err = h.Store.GetAndDelete(ctx, ephemeral.NamespaceAuthCode, "code-1")
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)

		_, err = h.Store.Get(ctx, ephemeral.NamespaceAuthCode, "code-1")
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)
	})

	t.Run("namespaces are isolated", func(t *testing.T) {
		h := newHarness(t)
		ctx := t.Context()

		require.NoError(t, h.Store.SetWithTTL(ctx, ephemeral.NamespaceAuthCode, "shared", "code-payload", time.Minute))
		require.NoError(t, h.Store.SetWithTTL(ctx, ephemeral.NamespaceSession, "shared", "session-email", time.Minute))

		got, err := h.Store.GetAndDelete(ctx, ephemeral.NamespaceAuthCode, "shared")
		require.NoError(t, err)
		assert.Equal(t, "code-payload", got)

		got, err = h.Store.Get(ctx, ephemeral.NamespaceSession, "shared")
		require.NoError(t, err)
		assert.Equal(t, "session-email", got)
	})

	t.Run("entries expire", func(t *testing.T) {
		h := newHarness(t)
		ctx := t.Context()

		require.NoError(t, h.Store.SetWithTTL(ctx, ephemeral.NamespaceAuthCode, "short", "v", 200*time.Millisecond))
		require.NoError(t, h.Store.SetWithTTL(ctx, ephemeral.NamespaceAuthCode, "long", "v", time.Hour))

		h.Advance(500 * time.Millisecond)

		_, err := h.Store.Get(ctx, ephemeral.NamespaceAuthCode, "short")
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)

		_, err = h.Store.GetAndDelete(ctx, ephemeral.NamespaceAuthCode, "short")
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)

		got, err := h.Store.GetAndDelete(ctx, ephemeral.NamespaceAuthCode, "long")
		require.NoError(t, err)
		assert.Equal(t, "v", got)
	})

	t.Run("concurrent get and delete succeeds once", func(t *testing.T) {
		const attempts = 32

		h := newHarness(t)
		ctx := t.Context()

		require.NoError(t, h.Store.SetWithTTL(ctx, ephemeral.NamespaceAuthCode, "race", "payload", time.Minute))

		var (
			wg        sync.WaitGroup
			successes atomic.Int32
			notFound  atomic.Int32
		)

		start := make(chan struct{})
		for range attempts {
			wg.Go(func() {
				<-start

				_, err := h.Store.GetAndDelete(ctx, ephemeral.NamespaceAuthCode, "race")
				switch {
				case err == nil:
					successes.Add(1)
				case assert.ErrorIs(t, err, serviceerr.ErrNotFound):
					notFound.Add(1)
				}
			})
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), successes.Load())
		assert.Equal(t, int32(attempts-1), notFound.Load())
	})
}
