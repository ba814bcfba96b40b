// Package credentialsql persists users and clients in PostgreSQL through pgx.
package credentialsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"

	"github.com/openkcm/oauth-server/internal/credentials"
	"github.com/openkcm/oauth-server/internal/serviceerr"
)

type Repository struct {
	db *pgxpool.Pool
}

var _ = credentials.Repository(&Repository{})

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) CreateUser(ctx context.Context, user credentials.User) error {
	ctx, span := otel.GetTracerProvider().Tracer("").Start(ctx, "create_user_sql")
	defer span.End()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4);`,
		user.ID, user.Email, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		if err, ok := handlePgError(err); ok {
			return err
		}

		return fmt.Errorf("inserting into users: %w", err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (credentials.User, error) {
	ctx, span := otel.GetTracerProvider().Tracer("").Start(ctx, "get_user_sql")
	defer span.End()

	var user credentials.User

	err := r.db.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1;`, email,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return credentials.User{}, serviceerr.ErrNotFound
		}

		span.RecordError(err)
		return credentials.User{}, fmt.Errorf("scanning user: %w", err)
	}

	return user, nil
}

func (r *Repository) CreateClient(ctx context.Context, client credentials.Client) error {
	ctx, span := otel.GetTracerProvider().Tracer("").Start(ctx, "create_client_sql")
	defer span.End()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// The list values are optional, so we use COALESCE to default to an empty array if they are nil
	_, err = tx.Exec(ctx,
		`INSERT INTO clients (id, name, secret_hash, redirect_uris, scopes, grant_types, created_at)
			 VALUES ($1, $2, $3, COALESCE($4, '{}'::text[]), COALESCE($5, '{}'::text[]), COALESCE($6, '{}'::text[]), $7);`,
		client.ID, client.Name, client.SecretHash, client.RedirectURIs, client.Scopes, client.GrantTypes, client.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		if err, ok := handlePgError(err); ok {
			return err
		}

		return fmt.Errorf("inserting into clients: %w", err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (r *Repository) GetClient(ctx context.Context, clientID string) (credentials.Client, error) {
	ctx, span := otel.GetTracerProvider().Tracer("").Start(ctx, "get_client_sql")
	defer span.End()

	var client credentials.Client

	err := r.db.QueryRow(ctx,
		`SELECT id, name, secret_hash, redirect_uris, scopes, grant_types, created_at FROM clients WHERE id = $1;`, clientID,
	).Scan(&client.ID, &client.Name, &client.SecretHash, &client.RedirectURIs, &client.Scopes, &client.GrantTypes, &client.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return credentials.Client{}, serviceerr.ErrNotFound
		}

		span.RecordError(err)
		return credentials.Client{}, fmt.Errorf("scanning client: %w", err)
	}

	return client, nil
}
