package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/oauth-server/internal/config"
	"github.com/openkcm/oauth-server/internal/discovery"
	"github.com/openkcm/oauth-server/internal/middleware/accesslog"
	"github.com/openkcm/oauth-server/internal/middleware/responsewriter"
	"github.com/openkcm/oauth-server/internal/serviceerr"
)

const (
	defaultMaxConcurrentRequests = 1024
	defaultMaxBodyBytes          = 2 << 20
)

// NewRouter returns the HTTP handler of the authorization server.
func NewRouter(ctx context.Context, cfg *config.Config, services Services, stats *Stats) (http.Handler, error) {
	if err := initMeters(ctx, cfg); err != nil {
		return nil, err
	}

	h := &handlers{
		services: services,
		stats:    stats,
		metadata: discovery.New(cfg.Token.Issuer),
	}
	traced := newTraceMiddleware(cfg)

	maxConcurrent := cfg.HTTP.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentRequests
	}
	maxBody := cfg.HTTP.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(
		responsewriter.ResponseWriterMiddleware,
		stats.Middleware,
		accesslog.Middleware,
		middleware.Recoverer,
		middleware.Throttle(maxConcurrent),
		middleware.RequestSize(maxBody),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(r.Context(), w, serviceerr.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusMethodNotAllowed, errorResponse{
			Error:       string(serviceerr.CodeInvalidRequest),
			Description: "method not allowed",
		})
	})

	r.Method(http.MethodPost, "/register", traced(h.registerUser, "RegisterUser"))
	r.Method(http.MethodPost, discovery.RegisterPath, traced(h.registerClient, "RegisterClient"))
	r.Method(http.MethodPost, "/login", traced(h.login, "Login"))
	r.Method(http.MethodGet, discovery.AuthorizePath, traced(h.authorize, "Authorize"))
	r.Method(http.MethodPost, discovery.TokenPath, traced(h.token, "Token"))
	r.Method(http.MethodPost, "/echo", traced(h.echo, "Echo"))
	r.Method(http.MethodGet, "/health", traced(h.health, "Health"))
	r.Method(http.MethodGet, discovery.Path, traced(h.wellKnown, "Discovery"))

	return r, nil
}

// createHTTPServer creates the API http server using the given config
func createHTTPServer(ctx context.Context, cfg *config.Config, services Services) (*http.Server, error) {
	handler, err := NewRouter(ctx, cfg, services, NewStats())
	if err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}, nil
}

// StartHTTPServer serves the API until ctx is cancelled and then shuts the
// server down gracefully.
func StartHTTPServer(ctx context.Context, cfg *config.Config, services Services) error {
	server, err := createHTTPServer(ctx, cfg, services)
	if err != nil {
		return err
	}

	slogctx.Info(ctx, "Starting a listener", "address", server.Addr)

	// Parse network if the address if provided in the format of network://address.
	// Otherwise use tcp network by default. Some integration tests are easier to implement
	// by binding a listener to a unix socket rather than a TCP port.
	network := "tcp"
	if idx := strings.IndexRune(server.Addr, ':'); idx != -1 && len(server.Addr) > idx+3 && server.Addr[idx:idx+3] == "://" {
		network = server.Addr[:idx]
		server.Addr = server.Addr[idx+3:]
	}

	listener, err := new(net.ListenConfig).Listen(ctx, network, server.Addr)
	if err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed to create a listener")
	}

	slogctx.Info(ctx, "A listener started", "address", listener.Addr().String())

	go func() {
		slogctx.Info(ctx, "Serving an HTTP server", "address", listener.Addr().String())
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogctx.Error(ctx, "Failed to serve an HTTP server", "error", err)
		}

		slogctx.Info(ctx, "Stopped an HTTP server")
	}()

	<-ctx.Done()

	shutdownCtx, shutdownRelease := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer shutdownRelease()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed shutting down HTTP server")
	}

	slogctx.Info(ctx, "Completed graceful shutdown of HTTP server")

	return nil
}
