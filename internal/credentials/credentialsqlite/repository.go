// Package credentialsqlite persists users and clients in an embedded SQLite
// database, for single-node deployments that run without PostgreSQL.
package credentialsqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/openkcm/oauth-server/internal/credentials"
	"github.com/openkcm/oauth-server/internal/serviceerr"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

type Repository struct {
	db *sql.DB
}

var _ = credentials.Repository(&Repository{})

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) CreateUser(ctx context.Context, user credentials.User) error {
	ctx, span := otel.GetTracerProvider().Tracer("").Start(ctx, "create_user_sqlite")
	defer span.End()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?);`,
		user.ID, user.Email, user.PasswordHash, user.CreatedAt.UnixMilli(),
	)
	if err != nil {
		span.RecordError(err)
		if err, ok := handleSQLiteError(err); ok {
			return err
		}

		return fmt.Errorf("inserting into users: %w", err)
	}

	return nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (credentials.User, error) {
	ctx, span := otel.GetTracerProvider().Tracer("").Start(ctx, "get_user_sqlite")
	defer span.End()

	var (
		user      credentials.User
		createdAt int64
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?;`, email,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return credentials.User{}, serviceerr.ErrNotFound
		}

		span.RecordError(err)
		return credentials.User{}, fmt.Errorf("scanning user: %w", err)
	}

	user.CreatedAt = time.UnixMilli(createdAt).UTC()

	return user, nil
}

func (r *Repository) CreateClient(ctx context.Context, client credentials.Client) error {
	ctx, span := otel.GetTracerProvider().Tracer("").Start(ctx, "create_client_sqlite")
	defer span.End()

	lists := make([][]byte, 0, 3)
	for _, list := range [][]string{client.RedirectURIs, client.Scopes, client.GrantTypes} {
		b, err := marshalList(list)
		if err != nil {
			return err
		}
		lists = append(lists, b)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, secret_hash, redirect_uris, scopes, grant_types, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?);`,
		client.ID, client.Name, client.SecretHash, string(lists[0]), string(lists[1]), string(lists[2]), client.CreatedAt.UnixMilli(),
	)
	if err != nil {
		span.RecordError(err)
		if err, ok := handleSQLiteError(err); ok {
			return err
		}

		return fmt.Errorf("inserting into clients: %w", err)
	}

	return nil
}

func (r *Repository) GetClient(ctx context.Context, clientID string) (credentials.Client, error) {
	ctx, span := otel.GetTracerProvider().Tracer("").Start(ctx, "get_client_sqlite")
	defer span.End()

	var (
		client                           credentials.Client
		redirectURIs, scopes, grantTypes string
		createdAt                        int64
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, secret_hash, redirect_uris, scopes, grant_types, created_at FROM clients WHERE id = ?;`, clientID,
	).Scan(&client.ID, &client.Name, &client.SecretHash, &redirectURIs, &scopes, &grantTypes, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return credentials.Client{}, serviceerr.ErrNotFound
		}

		span.RecordError(err)
		return credentials.Client{}, fmt.Errorf("scanning client: %w", err)
	}

	if err := json.Unmarshal([]byte(redirectURIs), &client.RedirectURIs); err != nil {
		return credentials.Client{}, fmt.Errorf("unmarshalling redirect uris: %w", err)
	}
	if err := json.Unmarshal([]byte(scopes), &client.Scopes); err != nil {
		return credentials.Client{}, fmt.Errorf("unmarshalling scopes: %w", err)
	}
	if err := json.Unmarshal([]byte(grantTypes), &client.GrantTypes); err != nil {
		return credentials.Client{}, fmt.Errorf("unmarshalling grant types: %w", err)
	}

	client.CreatedAt = time.UnixMilli(createdAt).UTC()

	return client, nil
}

func marshalList(list []string) ([]byte, error) {
	if list == nil {
		list = []string{}
	}

	b, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("marshaling json: %w", err)
	}

	return b, nil
}
