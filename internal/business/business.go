package business

import (
	"context"
	"fmt"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/oauth-server/internal/authorize"
	"github.com/openkcm/oauth-server/internal/business/server"
	"github.com/openkcm/oauth-server/internal/config"
	"github.com/openkcm/oauth-server/internal/hasher"
	"github.com/openkcm/oauth-server/internal/registration"
	"github.com/openkcm/oauth-server/internal/session"
	"github.com/openkcm/oauth-server/internal/token"
)

// Main opens the stores and serves the HTTP API until ctx is cancelled.
func Main(ctx context.Context, cfg *config.Config) error {
	services, closeFn, err := initServices(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the services: %w", err)
	}

	defer closeFn()

	return server.StartHTTPServer(ctx, cfg, services)
}

func initServices(ctx context.Context, cfg *config.Config) (_ server.Services, closeFn func(), _ error) {
	h, err := hasher.New(hasher.Params{
		Memory:      cfg.Hasher.Memory,
		Iterations:  cfg.Hasher.Iterations,
		Parallelism: cfg.Hasher.Parallelism,
	})
	if err != nil {
		return server.Services{}, nil, fmt.Errorf("creating the hasher: %w", err)
	}

	repo, closeRepo, err := openCredentialStore(ctx, cfg)
	if err != nil {
		return server.Services{}, nil, err
	}

	store, closeStore, err := openEphemeralStore(ctx, cfg)
	if err != nil {
		closeRepo()
		return server.Services{}, nil, err
	}

	closeFn = func() {
		closeStore()
		closeRepo()
	}

	if cfg.Token.Issuer == "" {
		slogctx.Warn(ctx, "No token issuer configured, access tokens carry no iss claim")
	}

	services := server.Services{
		Registration: registration.NewService(repo, h),
		Sessions:     session.NewManager(repo, store, h, cfg.Session.TTL, cfg.Session.Cookie),
		Authorizer:   authorize.NewEngine(repo, store, cfg.Authorization.CodeTTL),
		Tokens: token.NewEngine(repo, store, h,
			token.WithIssuer(cfg.Token.Issuer),
			token.WithAccessTokenTTL(cfg.Token.AccessTokenTTL),
			token.WithRefreshTokenTTL(cfg.Token.RefreshTokenTTL),
		),
	}

	return services, closeFn, nil
}
