// Package session authenticates users with their password and tracks the
// resulting browser sessions in the ephemeral store.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/oauth-server/internal/config"
	"github.com/openkcm/oauth-server/internal/credentials"
	"github.com/openkcm/oauth-server/internal/entropy"
	"github.com/openkcm/oauth-server/internal/ephemeral"
	"github.com/openkcm/oauth-server/internal/serviceerr"
)

const DefaultTTL = time.Hour

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (credentials.User, error)
}

type PasswordVerifier interface {
	Verify(plain, encoded string) bool
}

// Identity is the user behind a session.
type Identity struct {
	UserID string
	Email  string
}

type Manager struct {
	users    UserRepository
	sessions ephemeral.Store
	verifier PasswordVerifier
	source   entropy.Source

	ttl            time.Duration
	cookieTemplate config.CookieTemplate
}

func NewManager(
	users UserRepository,
	sessions ephemeral.Store,
	verifier PasswordVerifier,
	ttl time.Duration,
	cookieTemplate config.CookieTemplate,
) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Manager{
		users:          users,
		sessions:       sessions,
		verifier:       verifier,
		ttl:            ttl,
		cookieTemplate: cookieTemplate,
	}
}

// Login verifies the password of the user registered under email and opens a
// session for them. Unknown emails are verified against a dummy hash and fail
// with the same serviceerr.ErrInvalidCredentials as a wrong password.
func (m *Manager) Login(ctx context.Context, email, password string) (string, error) {
	email = credentials.NormalizeEmail(email)

	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, serviceerr.ErrNotFound) {
		return "", fmt.Errorf("getting user: %w", err)
	}

	// user is the zero value for unknown emails, so its hash is empty
	if !m.verifier.Verify(password, user.PasswordHash) {
		slogctx.Debug(ctx, "Login rejected")
		return "", serviceerr.ErrInvalidCredentials
	}

	sessionID := m.source.SessionID()
	if err := m.sessions.SetWithTTL(ctx, ephemeral.NamespaceSession, sessionID, user.Email, m.ttl); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}

	slogctx.Info(ctx, "User logged in", "userID", user.ID)

	return sessionID, nil
}

// Resolve returns the identity behind an open session. Missing, expired and
// orphaned sessions all return serviceerr.ErrUnauthorized.
func (m *Manager) Resolve(ctx context.Context, sessionID string) (Identity, error) {
	if sessionID == "" {
		return Identity{}, serviceerr.ErrUnauthorized
	}

	email, err := m.sessions.Get(ctx, ephemeral.NamespaceSession, sessionID)
	switch {
	case errors.Is(err, serviceerr.ErrNotFound):
		return Identity{}, serviceerr.ErrUnauthorized
	case err != nil:
		return Identity{}, fmt.Errorf("getting session: %w", err)
	}

	user, err := m.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, serviceerr.ErrNotFound):
		slogctx.Warn(ctx, "Session refers to a user that no longer exists")
		return Identity{}, serviceerr.ErrUnauthorized
	case err != nil:
		return Identity{}, fmt.Errorf("getting session user: %w", err)
	}

	return Identity{UserID: user.ID, Email: user.Email}, nil
}

// Cookie returns the session cookie for sessionID.
func (m *Manager) Cookie(sessionID string) *http.Cookie {
	return m.cookieTemplate.ToCookie(sessionID, m.ttl)
}

// CookieName is the name of the cookie carrying the session id.
func (m *Manager) CookieName() string {
	return m.cookieTemplate.Name
}
