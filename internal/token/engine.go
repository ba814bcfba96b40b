// Package token redeems authorization codes for signed access tokens.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/oauth-server/internal/authorize"
	"github.com/openkcm/oauth-server/internal/credentials"
	"github.com/openkcm/oauth-server/internal/entropy"
	"github.com/openkcm/oauth-server/internal/ephemeral"
	"github.com/openkcm/oauth-server/internal/serviceerr"
)

const (
	TypeBearer = "Bearer"

	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

type ClientRepository interface {
	GetClient(ctx context.Context, clientID string) (credentials.Client, error)
}

type SecretVerifier interface {
	// Verify reports whether plain matches encoded. An empty encoded value
	// must still cost a full verification and return false.
	Verify(plain, encoded string) bool
}

type Request struct {
	Code         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

type Response struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	Scope        string
}

// RefreshTokenPayload is stored under every issued refresh token.
type RefreshTokenPayload struct {
	ClientID string   `json:"client_id"`
	UserID   string   `json:"user_id"`
	Scopes   []string `json:"scopes"`
}

type accessTokenClaims struct {
	jwt.Claims

	Scope string `json:"scope,omitempty"`
}

type Option func(*Engine)

func WithIssuer(issuer string) Option {
	return func(e *Engine) { e.issuer = issuer }
}

func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.accessTTL = ttl
		}
	}
}

func WithRefreshTokenTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.refreshTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type Engine struct {
	clients  ClientRepository
	store    ephemeral.Store
	verifier SecretVerifier
	source   entropy.Source

	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewEngine(clients ClientRepository, store ephemeral.Store, verifier SecretVerifier, opts ...Option) *Engine {
	e := &Engine{
		clients:    clients,
		store:      store,
		verifier:   verifier,
		accessTTL:  DefaultAccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Redeem exchanges an authorization code for an access token.
//
// The code is consumed before anything else is checked: a request that fails
// a later check still burns the code. The store's atomic get-and-delete is the
// only thing serialising concurrent redemptions of the same code.
func (e *Engine) Redeem(ctx context.Context, req Request) (Response, error) {
	raw, err := e.store.GetAndDelete(ctx, ephemeral.NamespaceAuthCode, req.Code)
	switch {
	case errors.Is(err, serviceerr.ErrNotFound):
		return Response{}, serviceerr.ErrInvalidGrant
	case err != nil:
		return Response{}, fmt.Errorf("redeeming authorization code: %w", err)
	}

	var payload authorize.CodePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Response{}, fmt.Errorf("unmarshalling code payload: %w", err)
	}

	if payload.RedirectURI != req.RedirectURI || payload.ClientID != req.ClientID {
		slogctx.Warn(ctx, "Authorization code presented with a different binding", "clientID", req.ClientID)
		return Response{}, serviceerr.ErrInvalidGrant
	}

	client, err := e.authenticateClient(ctx, req)
	if err != nil {
		return Response{}, err
	}

	now := e.now()
	scope := strings.Join(payload.Scopes, " ")

	accessToken, err := e.sign(client.ID, req.ClientSecret, payload.UserID, scope, now)
	if err != nil {
		slogctx.Error(ctx, "Failed to sign access token", "error", err)
		return Response{}, serviceerr.ErrTokenIssuanceFailed
	}

	refreshToken, err := e.issueRefreshToken(ctx, payload)
	if err != nil {
		return Response{}, err
	}

	slogctx.Info(ctx, "Issued access token", "clientID", client.ID)

	return Response{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    TypeBearer,
		ExpiresIn:    int64(e.accessTTL / time.Second),
		Scope:        scope,
	}, nil
}

func (e *Engine) authenticateClient(ctx context.Context, req Request) (credentials.Client, error) {
	client, err := e.clients.GetClient(ctx, req.ClientID)
	if err != nil && !errors.Is(err, serviceerr.ErrNotFound) {
		return credentials.Client{}, fmt.Errorf("getting client: %w", err)
	}

	// Unknown clients verify against an empty hash, which costs the same as a
	// real verification and always fails.
	hash := client.SecretHash
	if err != nil || !client.HasRedirectURI(req.RedirectURI) {
		hash = ""
	}

	if !e.verifier.Verify(req.ClientSecret, hash) {
		return credentials.Client{}, serviceerr.ErrTokenIssuanceFailed
	}

	return client, nil
}

func (e *Engine) sign(clientID, secret, userID, scope string, now time.Time) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte(secret)},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("creating signer: %w", err)
	}

	claims := accessTokenClaims{
		Claims: jwt.Claims{
			Issuer:   e.issuer,
			Subject:  userID,
			Audience: jwt.Audience{clientID},
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(now.Add(e.accessTTL)),
		},
		Scope: scope,
	}

	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("serializing token: %w", err)
	}

	return token, nil
}

func (e *Engine) issueRefreshToken(ctx context.Context, payload authorize.CodePayload) (string, error) {
	b, err := json.Marshal(RefreshTokenPayload{
		ClientID: payload.ClientID,
		UserID:   payload.UserID,
		Scopes:   payload.Scopes,
	})
	if err != nil {
		return "", fmt.Errorf("marshalling refresh token payload: %w", err)
	}

	refreshToken := e.source.RefreshToken()

	err = e.store.SetWithTTL(ctx, ephemeral.NamespaceRefreshToken, refreshToken, string(b), e.refreshTTL)
	if err != nil {
		return "", fmt.Errorf("storing refresh token: %w", err)
	}

	return refreshToken, nil
}
