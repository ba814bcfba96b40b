package business

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/XSAM/otelsql"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/redis/go-redis/v9"
	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/openkcm/oauth-server/internal/config"
	"github.com/openkcm/oauth-server/internal/credentials"
	"github.com/openkcm/oauth-server/internal/credentials/credentialsql"
	"github.com/openkcm/oauth-server/internal/credentials/credentialsqlite"
	"github.com/openkcm/oauth-server/internal/ephemeral"
	"github.com/openkcm/oauth-server/internal/ephemeral/ephemeralmemory"
	"github.com/openkcm/oauth-server/internal/ephemeral/ephemeralredis"
	"github.com/openkcm/oauth-server/internal/ephemeral/ephemeralvalkey"
)

// openCredentialStore opens the configured users and clients repository.
// A SQLite database is migrated on open.
func openCredentialStore(ctx context.Context, cfg *config.Config) (credentials.Repository, func(), error) {
	switch cfg.Database.Driver {
	case config.DatabaseDriverPostgres, "":
		connStr, err := config.MakeConnStr(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("making dsn from config: %w", err)
		}

		poolCfg, err := pgxpool.ParseConfig(connStr)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing pgxpool config: %w", err)
		}
		poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

		db, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("initialising pgxpool connection: %w", err)
		}

		if err := otelpgx.RecordStats(db); err != nil {
			slogctx.Warn(ctx, "Failed to record pgxpool stats", "error", err)
		}

		return credentialsql.NewRepository(db), db.Close, nil
	case config.DatabaseDriverSQLite:
		db, err := otelsql.Open(credentialsqlite.DriverName, config.MakeSQLiteDSN(cfg.Database.SQLite),
			otelsql.WithAttributes(semconv.DBSystemNameSQLite))
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite database: %w", err)
		}

		if err := runMigrations(ctx, db, config.DatabaseDriverSQLite); err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		closeFn := func() {
			if err := db.Close(); err != nil {
				slogctx.Error(ctx, "Failed to close the sqlite database", "error", err)
			}
		}

		return credentialsqlite.NewRepository(db), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// openEphemeralStore opens the store holding sessions, authorization codes
// and refresh tokens.
func openEphemeralStore(ctx context.Context, cfg *config.Config) (ephemeral.Store, func(), error) {
	switch cfg.Ephemeral.Backend {
	case config.EphemeralBackendValkey, "":
		client, err := newValkeyClient(cfg.ValKey)
		if err != nil {
			return nil, nil, err
		}

		return ephemeralvalkey.NewStore(client, cfg.Ephemeral.Prefix), client.Close, nil
	case config.EphemeralBackendRedis:
		client, err := newRedisClient(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}

		closeFn := func() {
			if err := client.Close(); err != nil {
				slogctx.Error(ctx, "Failed to close the redis client", "error", err)
			}
		}

		return ephemeralredis.NewStore(client, cfg.Ephemeral.Prefix), closeFn, nil
	case config.EphemeralBackendMemory:
		slogctx.Warn(ctx, "Using the in-memory ephemeral store, state is lost on restart and not shared between replicas")

		return ephemeralmemory.NewStore(cfg.Ephemeral.Prefix, ephemeralmemory.DefaultCleanupInterval), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown ephemeral backend %q", cfg.Ephemeral.Backend)
	}
}

func newValkeyClient(cfg config.ValKey) (valkey.Client, error) {
	valkeyHost, err := commoncfg.LoadValueFromSourceRef(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("loading valkey host: %w", err)
	}

	valkeyUsername, err := commoncfg.LoadValueFromSourceRef(cfg.User)
	if err != nil {
		return nil, fmt.Errorf("loading valkey username: %w", err)
	}

	valkeyPassword, err := commoncfg.LoadValueFromSourceRef(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("loading valkey password: %w", err)
	}

	valkeyOpts := valkey.ClientOption{
		InitAddress: []string{string(valkeyHost)},
		Username:    string(valkeyUsername),
		Password:    string(valkeyPassword),
	}

	valkeyOpts.TLSConfig, err = loadTLSConfig(cfg.SecretRef)
	if err != nil {
		return nil, fmt.Errorf("loading valkey mTLS config from secret ref: %w", err)
	}

	client, err := valkey.NewClient(valkeyOpts)
	if err != nil {
		return nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	return client, nil
}

func newRedisClient(cfg config.Redis) (*redis.Client, error) {
	address, err := commoncfg.LoadValueFromSourceRef(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("loading redis address: %w", err)
	}

	username, err := commoncfg.LoadValueFromSourceRef(cfg.User)
	if err != nil {
		return nil, fmt.Errorf("loading redis username: %w", err)
	}

	password, err := commoncfg.LoadValueFromSourceRef(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("loading redis password: %w", err)
	}

	tlsConfig, err := loadTLSConfig(cfg.SecretRef)
	if err != nil {
		return nil, fmt.Errorf("loading redis mTLS config from secret ref: %w", err)
	}

	return redis.NewClient(&redis.Options{
		Addr:      string(address),
		Username:  string(username),
		Password:  string(password),
		DB:        cfg.DB,
		TLSConfig: tlsConfig,
	}), nil
}

// loadTLSConfig returns nil unless the secret ref holds mTLS material.
func loadTLSConfig(ref commoncfg.SecretRef) (*tls.Config, error) {
	if ref.Type != commoncfg.MTLSSecretType {
		return nil, nil
	}

	return commoncfg.LoadMTLSConfig(&ref.MTLS)
}
