// Package credentials holds the long-lived principals of the authorization
// server, users and OAuth clients, and the repository contract to persist them.
package credentials

import (
	"context"
	"slices"
	"strings"
	"time"
)

const GrantTypeAuthorizationCode = "authorization_code"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type Client struct {
	ID           string
	Name         string
	SecretHash   string
	RedirectURIs []string
	Scopes       []string
	GrantTypes   []string
	CreatedAt    time.Time
}

// NormalizeEmail is applied to every email before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasRedirectURI reports whether uri is registered, compared as exact strings.
func (c Client) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// AllowsScopes reports whether every requested scope is granted to the client.
func (c Client) AllowsScopes(scopes []string) bool {
	for _, scope := range scopes {
		if !slices.Contains(c.Scopes, scope) {
			return false
		}
	}

	return true
}

func (c Client) AllowsGrantType(grantType string) bool {
	return slices.Contains(c.GrantTypes, grantType)
}

// UserRepository looks up and stores users. Lookups return
// serviceerr.ErrNotFound for unknown users; duplicate emails fail with
// serviceerr.ErrConflict.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// ClientRepository looks up and stores OAuth clients with the same error
// conventions as UserRepository.
type ClientRepository interface {
	CreateClient(ctx context.Context, client Client) error
	GetClient(ctx context.Context, clientID string) (Client, error)
}

type Repository interface {
	UserRepository
	ClientRepository
}
