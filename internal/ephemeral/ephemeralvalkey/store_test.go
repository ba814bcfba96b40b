package ephemeralvalkey_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go"

	"github.com/openkcm/oauth-server/internal/dbtest/valkeytest"
	"github.com/openkcm/oauth-server/internal/ephemeral"
	"github.com/openkcm/oauth-server/internal/ephemeral/ephemeraltest"
	"github.com/openkcm/oauth-server/internal/ephemeral/ephemeralvalkey"
)

var (
	instance     *valkeytest.Instance
	valkeyClient valkey.Client
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	instance = valkeytest.Start(ctx)
	valkeyClient = instance.Client

	code := m.Run()

	instance.Terminate(ctx)
	os.Exit(code)
}

func TestStore(t *testing.T) {
	ephemeraltest.RunStoreTests(t, func(t *testing.T) ephemeraltest.Harness {
		// A prefix per test keeps the subtests apart on the shared server.
		return ephemeraltest.Harness{
			Store:   ephemeralvalkey.NewStore(valkeyClient, t.Name()),
			Advance: time.Sleep,
		}
	})
}

func TestStore_KeyLayout(t *testing.T) {
	ctx := t.Context()
	store := ephemeralvalkey.NewStore(valkeyClient, "")

	require.NoError(t, store.SetWithTTL(ctx, ephemeral.NamespaceAuthCode, "layout-code", `{"state":"xyz"}`, 10*time.Minute))

	raw, err := valkeyClient.Do(ctx, valkeyClient.B().Get().Key("auth_code:layout-code").Build()).ToString()
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"xyz"}`, raw)

	ttl, err := valkeyClient.Do(ctx, valkeyClient.B().Pttl().Key("auth_code:layout-code").Build()).AsInt64()
	require.NoError(t, err)
	assert.Greater(t, ttl, int64(9*time.Minute/time.Millisecond))
	assert.LessOrEqual(t, ttl, int64(10*time.Minute/time.Millisecond))
}

func TestStore_PrefixedKeys(t *testing.T) {
	ctx := t.Context()
	store := ephemeralvalkey.NewStore(valkeyClient, "tenant-a:")

	require.NoError(t, store.SetWithTTL(ctx, ephemeral.NamespaceSession, "sid", "alice@example.com", time.Minute))
	require.NoError(t, store.SetWithTTL(ctx, ephemeral.NamespaceRefreshToken, "rt", "{}", time.Minute))

	keys, err := instance.Keys(ctx, "tenant-a:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant-a:cookie:sid", "tenant-a:refresh_token:rt"}, keys)

	_, err = store.GetAndDelete(ctx, ephemeral.NamespaceSession, "sid")
	require.NoError(t, err)

	keys, err = instance.Keys(ctx, "tenant-a:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant-a:refresh_token:rt"}, keys)
}
