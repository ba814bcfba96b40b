// Package registration creates users and OAuth clients.
package registration

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/oauth-server/internal/credentials"
	"github.com/openkcm/oauth-server/internal/entropy"
	"github.com/openkcm/oauth-server/internal/serviceerr"
)

type Hasher interface {
	Hash(plain string) (string, error)
}

type ClientRegistration struct {
	Name         string
	RedirectURIs []string
	GrantTypes   []string
	Scopes       []string
}

// RegisteredClient carries the only copy of the plaintext secret.
type RegisteredClient struct {
	ID     string
	Name   string
	Secret string
}

type Service struct {
	repo   credentials.Repository
	hasher Hasher
	source entropy.Source
	now    func() time.Time
}

func NewService(repo credentials.Repository, hasher Hasher) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		now:    time.Now,
	}
}

// RegisterUser stores a new user and returns its id. Emails are normalised;
// registering an email twice fails with serviceerr.ErrConflict.
func (s *Service) RegisterUser(ctx context.Context, email, password string) (string, error) {
	email = credentials.NormalizeEmail(email)
	if email == "" || password == "" {
		return "", serviceerr.New(serviceerr.CodeInvalidRequest, "email and password are required")
	}
	if !strings.Contains(email, "@") {
		return "", serviceerr.New(serviceerr.CodeInvalidRequest, "email is malformed")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	user := credentials.User{
		ID:           s.source.ID(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return "", fmt.Errorf("creating user: %w", err)
	}

	slogctx.Info(ctx, "Registered user", "userID", user.ID)

	return user.ID, nil
}

// RegisterClient validates and stores a new client. The generated secret is
// stored hashed and returned in plaintext exactly once.
func (s *Service) RegisterClient(ctx context.Context, reg ClientRegistration) (RegisteredClient, error) {
	name := strings.TrimSpace(reg.Name)
	if name == "" {
		return RegisteredClient{}, serviceerr.New(serviceerr.CodeInvalidRequest, "client_name is required")
	}

	if err := validateRedirectURIs(reg.RedirectURIs); err != nil {
		return RegisteredClient{}, err
	}

	grantTypes, err := normalizeGrantTypes(reg.GrantTypes)
	if err != nil {
		return RegisteredClient{}, err
	}

	if err := validateScopes(reg.Scopes); err != nil {
		return RegisteredClient{}, err
	}

	secret := s.source.ClientSecret()
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return RegisteredClient{}, fmt.Errorf("hashing client secret: %w", err)
	}

	client := credentials.Client{
		ID:           s.source.ID(),
		Name:         name,
		SecretHash:   hash,
		RedirectURIs: slices.Clone(reg.RedirectURIs),
		Scopes:       dedupe(reg.Scopes),
		GrantTypes:   grantTypes,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateClient(ctx, client); err != nil {
		return RegisteredClient{}, fmt.Errorf("creating client: %w", err)
	}

	slogctx.Info(ctx, "Registered client", "clientID", client.ID, "redirectURIs", len(client.RedirectURIs))

	return RegisteredClient{
		ID:     client.ID,
		Name:   client.Name,
		Secret: secret,
	}, nil
}

func validateRedirectURIs(uris []string) error {
	if len(uris) == 0 {
		return serviceerr.New(serviceerr.CodeInvalidRequest, "at least one redirect_uri is required")
	}

	for _, raw := range uris {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return serviceerr.New(serviceerr.CodeInvalidRequest, "redirect_uri must be an absolute URL: "+raw)
		}
		if u.Fragment != "" || strings.Contains(raw, "#") {
			return serviceerr.New(serviceerr.CodeInvalidRequest, "redirect_uri must not contain a fragment: "+raw)
		}
	}

	return nil
}

func normalizeGrantTypes(grantTypes []string) ([]string, error) {
	if len(grantTypes) == 0 {
		return []string{credentials.GrantTypeAuthorizationCode}, nil
	}

	for _, gt := range grantTypes {
		if gt != credentials.GrantTypeAuthorizationCode {
			return nil, serviceerr.New(serviceerr.CodeInvalidRequest, "unsupported grant_type: "+gt)
		}
	}

	return []string{credentials.GrantTypeAuthorizationCode}, nil
}

// validateScopes rejects scope values that could not survive being joined
// into a space separated scope string.
func validateScopes(scopes []string) error {
	for _, scope := range scopes {
		if scope == "" || strings.ContainsAny(scope, " \t\r\n") {
			return serviceerr.New(serviceerr.CodeInvalidRequest, fmt.Sprintf("invalid scope %q", scope))
		}
	}

	return nil
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}

	return out
}
