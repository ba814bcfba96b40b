package server

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/oauth-server/internal/config"
)

func testConfig(address string) *config.Config {
	return &config.Config{
		BaseConfig: commoncfg.BaseConfig{
			Application: commoncfg.Application{
				Name: "test-app",
			},
		},
		HTTP: config.HTTPServer{
			Address:         address,
			ShutdownTimeout: 1 * time.Second,
		},
	}
}

func TestStartHTTPServer_ContextCancellation(t *testing.T) {
	t.Run("gracefully shuts down when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())

		cfg := testConfig("localhost:0")

		errChan := make(chan error, 1)
		go func() {
			errChan <- StartHTTPServer(ctx, cfg, Services{})
		}()

		// Give the server a moment to start
		time.Sleep(100 * time.Millisecond)

		cancel()

		select {
		case err := <-errChan:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Server did not shut down within timeout")
		}
	})

	t.Run("serves on a unix socket", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		socket := filepath.Join(t.TempDir(), "oauth.sock")
		cfg := testConfig("unix://" + socket)

		errChan := make(chan error, 1)
		go func() {
			errChan <- StartHTTPServer(ctx, cfg, Services{})
		}()

		client := &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return new(net.Dialer).DialContext(ctx, "unix", socket)
				},
			},
		}

		require.EventuallyWithT(t, func(c *assert.CollectT) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://oauth/health", nil)
			require.NoError(c, err)

			resp, err := client.Do(req)
			require.NoError(c, err)
			defer resp.Body.Close()

			assert.Equal(c, http.StatusOK, resp.StatusCode)
		}, 5*time.Second, 50*time.Millisecond)

		cancel()

		select {
		case err := <-errChan:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Server did not shut down within timeout")
		}
	})

	t.Run("fails on an unusable address", func(t *testing.T) {
		cfg := testConfig("localhost:-1")

		err := StartHTTPServer(t.Context(), cfg, Services{})
		assert.Error(t, err)
	})
}

func TestCreateHTTPServer(t *testing.T) {
	t.Run("creates HTTP server with default config", func(t *testing.T) {
		cfg := testConfig("localhost:8080")
		cfg.HTTP.ReadHeaderTimeout = 3 * time.Second

		server, err := createHTTPServer(t.Context(), cfg, Services{})

		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.Equal(t, "localhost:8080", server.Addr)
		assert.Equal(t, 3*time.Second, server.ReadHeaderTimeout)
		assert.NotNil(t, server.Handler)
	})

	t.Run("creates HTTP server with unix socket", func(t *testing.T) {
		cfg := testConfig("unix:///tmp/test.sock")

		server, err := createHTTPServer(t.Context(), cfg, Services{})

		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.Equal(t, "unix:///tmp/test.sock", server.Addr)
	})
}
