package business

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/XSAM/otelsql"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"

	// Register pgx driver
	_ "github.com/jackc/pgx/v5/stdlib"

	slogctx "github.com/veqryn/slog-context"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/openkcm/oauth-server/internal/config"
	"github.com/openkcm/oauth-server/internal/credentials/credentialsqlite"
	migrations "github.com/openkcm/oauth-server/sql"
)

// gooseMu guards goose's package level base FS and dialect.
var gooseMu sync.Mutex

// MigrateMain starts the database migration
func MigrateMain(ctx context.Context, cfg *config.Config) error {
	driverName, dsn, dbSystemName, err := sqlDataSource(cfg.Database)
	if err != nil {
		return err
	}

	db, err := otelsql.Open(driverName, dsn, otelsql.WithAttributes(dbSystemName))
	if err != nil {
		return oops.In("main").Wrapf(err, "opening DB connection")
	}
	defer db.Close()

	reg, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(dbSystemName))
	if err != nil {
		return fmt.Errorf("registering db stats metrics: %w", err)
	}

	defer func() {
		err = reg.Unregister()
		if err != nil {
			slogctx.Error(ctx, "failed to unregister db stats metrics", "error", err)
		}
	}()

	return runMigrations(ctx, db, cfg.Database.Driver)
}

// sqlDataSource returns the database/sql driver, the data source name and
// the telemetry system name of the configured database.
func sqlDataSource(db config.Database) (string, string, attribute.KeyValue, error) {
	switch db.Driver {
	case config.DatabaseDriverPostgres, "":
		connStr, err := config.MakeConnStr(db)
		if err != nil {
			return "", "", attribute.KeyValue{}, fmt.Errorf("making connection string from config: %w", err)
		}
		return "pgx", connStr, semconv.DBSystemNamePostgreSQL, nil
	case config.DatabaseDriverSQLite:
		return credentialsqlite.DriverName, config.MakeSQLiteDSN(db.SQLite), semconv.DBSystemNameSQLite, nil
	default:
		return "", "", attribute.KeyValue{}, fmt.Errorf("unknown database driver %q", db.Driver)
	}
}

// runMigrations applies the embedded migrations of driver to db.
func runMigrations(ctx context.Context, db *sql.DB, driver string) error {
	dialect, dir := "pgx", migrations.DirPostgres
	if driver == config.DatabaseDriverSQLite {
		dialect, dir = "sqlite3", migrations.DirSQLite
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)

	err := goose.SetDialect(dialect)
	if err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	err = goose.UpContext(ctx, db, dir)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}
