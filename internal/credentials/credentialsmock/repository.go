// Package credentialsmock provides an in-memory credentials.Repository with
// injectable errors for tests.
package credentialsmock

import (
	"context"
	"sync"

	"github.com/openkcm/oauth-server/internal/credentials"
	"github.com/openkcm/oauth-server/internal/serviceerr"
)

type RepositoryOption func(*Repository)

type Repository struct {
	mu      sync.RWMutex
	users   map[string]credentials.User
	clients map[string]credentials.Client

	createUserErr, getUserErr, createClientErr, getClientErr error

	getClientCalls int
}

func WithUser(user credentials.User) RepositoryOption {
	return func(r *Repository) { r.users[user.Email] = user }
}
func WithClient(client credentials.Client) RepositoryOption {
	return func(r *Repository) { r.clients[client.ID] = client }
}
func WithCreateUserError(err error) RepositoryOption {
	return func(r *Repository) { r.createUserErr = err }
}
func WithGetUserError(err error) RepositoryOption {
	return func(r *Repository) { r.getUserErr = err }
}
func WithCreateClientError(err error) RepositoryOption {
	return func(r *Repository) { r.createClientErr = err }
}
func WithGetClientError(err error) RepositoryOption {
	return func(r *Repository) { r.getClientErr = err }
}

var _ = credentials.Repository(&Repository{})

func NewInMemRepository(opts ...RepositoryOption) *Repository {
	r := &Repository{
		users:   make(map[string]credentials.User),
		clients: make(map[string]credentials.Client),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// TGetClient is a helper method for tests to read a stored client.
func (r *Repository) TGetClient(clientID string) (credentials.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[clientID]
	return c, ok
}

// TGetUser is a helper method for tests to read a stored user.
func (r *Repository) TGetUser(email string) (credentials.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[email]
	return u, ok
}

// TDeleteUser is a helper method for tests to remove a user.
func (r *Repository) TDeleteUser(email string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.users, email)
}

// TGetClientCalls is a helper method for tests to count client lookups.
func (r *Repository) TGetClientCalls() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.getClientCalls
}

func (r *Repository) CreateUser(_ context.Context, user credentials.User) error {
	if r.createUserErr != nil {
		return r.createUserErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.Email]; ok {
		return serviceerr.ErrConflict
	}
	r.users[user.Email] = user
	return nil
}

func (r *Repository) GetUserByEmail(_ context.Context, email string) (credentials.User, error) {
	if r.getUserErr != nil {
		return credentials.User{}, r.getUserErr
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if user, ok := r.users[email]; ok {
		return user, nil
	}
	return credentials.User{}, serviceerr.ErrNotFound
}

func (r *Repository) CreateClient(_ context.Context, client credentials.Client) error {
	if r.createClientErr != nil {
		return r.createClientErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[client.ID]; ok {
		return serviceerr.ErrConflict
	}
	r.clients[client.ID] = client
	return nil
}

func (r *Repository) GetClient(_ context.Context, clientID string) (credentials.Client, error) {
	r.mu.Lock()
	r.getClientCalls++
	r.mu.Unlock()

	if r.getClientErr != nil {
		return credentials.Client{}, r.getClientErr
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if client, ok := r.clients[clientID]; ok {
		return client, nil
	}
	return credentials.Client{}, serviceerr.ErrNotFound
}
