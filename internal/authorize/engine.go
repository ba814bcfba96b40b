// Package authorize validates authorization requests and mints one-time
// authorization codes.
package authorize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/oauth-server/internal/credentials"
	"github.com/openkcm/oauth-server/internal/entropy"
	"github.com/openkcm/oauth-server/internal/ephemeral"
	"github.com/openkcm/oauth-server/internal/serviceerr"
)

const DefaultCodeTTL = 10 * time.Minute

type ClientRepository interface {
	GetClient(ctx context.Context, clientID string) (credentials.Client, error)
}

// Request is an authorization request of an already authenticated user.
type Request struct {
	ClientID    string
	RedirectURI string
	Scopes      []string
	UserID      string
	State       string
}

type Result struct {
	Code        string
	RedirectURI string
	State       string
}

// CodePayload is what an authorization code grants. It is stored as JSON
// under the code and read back by the token endpoint.
type CodePayload struct {
	ClientID    string   `json:"client_id"`
	UserID      string   `json:"user_id"`
	RedirectURI string   `json:"redirect_uri"`
	Scopes      []string `json:"scopes"`
	State       string   `json:"state,omitempty"`
}

type Engine struct {
	clients ClientRepository
	codes   ephemeral.Store
	source  entropy.Source
	codeTTL time.Duration
}

func NewEngine(clients ClientRepository, codes ephemeral.Store, codeTTL time.Duration) *Engine {
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}

	return &Engine{
		clients: clients,
		codes:   codes,
		codeTTL: codeTTL,
	}
}

// Authorize checks the request against the registered client and stores a new
// code for it. An unknown client, an unregistered redirect URI, a scope that
// was not granted and a client without the authorization_code grant all
// return the same serviceerr.ErrInvalidClientOrBinding, and nothing is stored.
func (e *Engine) Authorize(ctx context.Context, req Request) (Result, error) {
	client, err := e.clients.GetClient(ctx, req.ClientID)
	switch {
	case errors.Is(err, serviceerr.ErrNotFound):
		slogctx.Debug(ctx, "Authorization rejected", "reason", "unknown client")
		return Result{}, serviceerr.ErrInvalidClientOrBinding
	case err != nil:
		return Result{}, fmt.Errorf("getting client: %w", err)
	}

	if !client.HasRedirectURI(req.RedirectURI) ||
		!client.AllowsScopes(req.Scopes) ||
		!client.AllowsGrantType(credentials.GrantTypeAuthorizationCode) {
		slogctx.Debug(ctx, "Authorization rejected", "reason", "binding mismatch", "clientID", req.ClientID)
		return Result{}, serviceerr.ErrInvalidClientOrBinding
	}

	scopes := req.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	payload, err := json.Marshal(CodePayload{
		ClientID:    req.ClientID,
		UserID:      req.UserID,
		RedirectURI: req.RedirectURI,
		Scopes:      scopes,
		State:       req.State,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshalling code payload: %w", err)
	}

	code := e.source.AuthorizationCode()

	err = e.codes.SetWithTTL(ctx, ephemeral.NamespaceAuthCode, code, string(payload), e.codeTTL)
	if err != nil {
		return Result{}, fmt.Errorf("storing authorization code: %w", err)
	}

	return Result{
		Code:        code,
		RedirectURI: req.RedirectURI,
		State:       req.State,
	}, nil
}
