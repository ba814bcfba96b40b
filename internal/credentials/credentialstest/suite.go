// Package credentialstest holds the behaviour every credentials.Repository
// implementation must show, as a reusable test suite.
package credentialstest

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/oauth-server/internal/credentials"
	"github.com/openkcm/oauth-server/internal/serviceerr"
)

var cmpOpts = []cmp.Option{
	cmpopts.EquateApproxTime(time.Millisecond),
	cmpopts.EquateEmpty(),
}

// RunRepositoryTests runs the suite. Repositories may be shared between
// subtests, every subtest uses fresh identifiers.
func RunRepositoryTests(t *testing.T, newRepo func(t *testing.T) credentials.Repository) {
	t.Helper()

	t.Run("create and get user", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()

		user := credentials.User{
			ID:           uuid.NewString(),
			Email:        uuid.NewString() + "@example.com",
			PasswordHash: "$argon2id$v=19$m=64,t=1,p=1$c2FsdA$aGFzaA",
			CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
		}
		require.NoError(t, repo.CreateUser(ctx, user))

		got, err := repo.GetUserByEmail(ctx, user.Email)
		require.NoError(t, err)
		if diff := cmp.Diff(user, got, cmpOpts...); diff != "" {
			t.Errorf("GetUserByEmail() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := newRepo(t)

		got, err := repo.GetUserByEmail(t.Context(), "nobody-"+uuid.NewString()+"@example.com")
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)
		assert.Zero(t, got)
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()
		email := uuid.NewString() + "@example.com"

		require.NoError(t, repo.CreateUser(ctx, credentials.User{ID: uuid.NewString(), Email: email, PasswordHash: "h", CreatedAt: time.Now()}))

		err := repo.CreateUser(ctx, credentials.User{ID: uuid.NewString(), Email: email, PasswordHash: "h", CreatedAt: time.Now()})
		assert.ErrorIs(t, err, serviceerr.ErrConflict)
	})

	t.Run("create and get client", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()

		client := credentials.Client{
			ID:           uuid.NewString(),
			Name:         "my app",
			SecretHash:   "$argon2id$v=19$m=64,t=1,p=1$c2FsdA$aGFzaA",
			RedirectURIs: []string{"https://app/cb", "https://app/cb2"},
			Scopes:       []string{"openid", "profile"},
			GrantTypes:   []string{credentials.GrantTypeAuthorizationCode},
			CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
		}
		require.NoError(t, repo.CreateClient(ctx, client))

		got, err := repo.GetClient(ctx, client.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(client, got, cmpOpts...); diff != "" {
			t.Errorf("GetClient() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("client without scopes", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()

		client := credentials.Client{
			ID:           uuid.NewString(),
			Name:         "no scopes",
			SecretHash:   "h",
			RedirectURIs: []string{"https://app/cb"},
			GrantTypes:   []string{credentials.GrantTypeAuthorizationCode},
			CreatedAt:    time.Now(),
		}
		require.NoError(t, repo.CreateClient(ctx, client))

		got, err := repo.GetClient(ctx, client.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Scopes)
		assert.False(t, got.AllowsScopes([]string{"openid"}))
	})

	t.Run("unknown client", func(t *testing.T) {
		repo := newRepo(t)

		got, err := repo.GetClient(t.Context(), uuid.NewString())
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)
		assert.Zero(t, got)
	})

	t.Run("duplicate client id", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()
		id := uuid.NewString()

		require.NoError(t, repo.CreateClient(ctx, credentials.Client{ID: id, Name: "a", SecretHash: "h", CreatedAt: time.Now()}))

		err := repo.CreateClient(ctx, credentials.Client{ID: id, Name: "b", SecretHash: "h", CreatedAt: time.Now()})
		assert.ErrorIs(t, err, serviceerr.ErrConflict)
	})
}
