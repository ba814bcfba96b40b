package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/oauth-server/internal/authorize"
	"github.com/openkcm/oauth-server/internal/credentials"
	"github.com/openkcm/oauth-server/internal/discovery"
	"github.com/openkcm/oauth-server/internal/registration"
	"github.com/openkcm/oauth-server/internal/serviceerr"
	"github.com/openkcm/oauth-server/internal/session"
	"github.com/openkcm/oauth-server/internal/token"
)

// Services are the engines behind the HTTP surface.
type Services struct {
	Registration *registration.Service
	Sessions     *session.Manager
	Authorizer   *authorize.Engine
	Tokens       *token.Engine
}

type handlers struct {
	services Services
	stats    *Stats
	metadata discovery.Metadata
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerUserResponse struct {
	UserID string `json:"user_id"`
}

type registerClientRequest struct {
	ClientName   string   `json:"client_name"`
	RedirectURIs []string `json:"redirect_uris"`
	GrantTypes   []string `json:"grant_types"`
	Scopes       []string `json:"scopes"`
}

type registerClientResponse struct {
	ClientID     string `json:"client_id"`
	ClientName   string `json:"client_name"`
	ClientSecret string `json:"client_secret"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type authorizeResponse struct {
	RedirectTo string `json:"redirect_to"`
	Code       string `json:"code"`
	State      string `json:"state,omitempty"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
	StatsSnapshot
}

type echoRequest struct {
	Data []int `json:"data"`
}

type echoResponse struct {
	Status string `json:"status"`
	Data   string `json:"data"`
}

func (h *handlers) registerUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	userID, err := h.services.Registration.RegisterUser(ctx, req.Email, req.Password)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusCreated, registerUserResponse{UserID: userID})
}

func (h *handlers) registerClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerClientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	client, err := h.services.Registration.RegisterClient(ctx, registration.ClientRegistration{
		Name:         req.ClientName,
		RedirectURIs: req.RedirectURIs,
		GrantTypes:   req.GrantTypes,
		Scopes:       req.Scopes,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusCreated, registerClientResponse{
		ClientID:     client.ID,
		ClientName:   client.Name,
		ClientSecret: client.Secret,
	})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(ctx, w, serviceerr.New(serviceerr.CodeInvalidRequest, "email and password are required"))
		return
	}

	sessionID, err := h.services.Sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	http.SetCookie(w, h.services.Sessions.Cookie(sessionID))
	writeJSON(ctx, w, http.StatusOK, statusResponse{Status: "ok"})
}

func (h *handlers) authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	switch responseType := q.Get("response_type"); responseType {
	case "":
		writeError(ctx, w, serviceerr.New(serviceerr.CodeInvalidRequest, "response_type is required"))
		return
	case discovery.ResponseTypeCode:
	default:
		writeError(ctx, w, serviceerr.ErrUnsupportedResponseType)
		return
	}

	clientID, redirectURI := q.Get("client_id"), q.Get("redirect_uri")
	if clientID == "" || redirectURI == "" {
		writeError(ctx, w, serviceerr.New(serviceerr.CodeInvalidRequest, "client_id and redirect_uri are required"))
		return
	}

	identity, err := h.resolveSession(ctx, r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	res, err := h.services.Authorizer.Authorize(ctx, authorize.Request{
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Scopes:      strings.Fields(q.Get("scope")),
		UserID:      identity.UserID,
		State:       q.Get("state"),
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	redirectTo, err := redirectLocation(res)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	w.Header().Set("Location", redirectTo)
	writeJSON(ctx, w, http.StatusFound, authorizeResponse{
		RedirectTo: redirectTo,
		Code:       res.Code,
		State:      res.State,
	})
}

func (h *handlers) resolveSession(ctx context.Context, r *http.Request) (session.Identity, error) {
	cookie, err := r.Cookie(h.services.Sessions.CookieName())
	if err != nil {
		return session.Identity{}, serviceerr.ErrUnauthorized
	}

	return h.services.Sessions.Resolve(ctx, cookie.Value)
}

// redirectLocation appends the code and, when present, the state to the
// registered redirect URI.
func redirectLocation(res authorize.Result) (string, error) {
	u, err := url.Parse(res.RedirectURI)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("code", res.Code)
	if res.State != "" {
		q.Set("state", res.State)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (h *handlers) token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// FormValue reads both the query string and a form encoded body.
	grantType := r.FormValue("grant_type")
	if grantType != "" && grantType != credentials.GrantTypeAuthorizationCode {
		writeError(ctx, w, serviceerr.ErrUnsupportedGrantType)
		return
	}

	req := token.Request{
		Code:         r.FormValue("code"),
		ClientID:     r.FormValue("client_id"),
		ClientSecret: r.FormValue("client_secret"),
		RedirectURI:  r.FormValue("redirect_uri"),
	}
	if req.Code == "" || req.ClientID == "" || req.ClientSecret == "" || req.RedirectURI == "" {
		writeError(ctx, w, serviceerr.New(serviceerr.CodeInvalidRequest,
			"code, client_id, client_secret and redirect_uri are required"))
		return
	}

	res, err := h.services.Tokens.Redeem(ctx, req)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(ctx, w, http.StatusOK, tokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    res.TokenType,
		ExpiresIn:    res.ExpiresIn,
		Scope:        res.Scope,
	})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, healthResponse{
		Status:        "ok",
		StatsSnapshot: h.stats.Snapshot(),
	})
}

func (h *handlers) wellKnown(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, h.metadata)
}

// echo returns the submitted bytes as text with an exclamation mark appended.
func (h *handlers) echo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req echoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	data := make([]byte, 0, len(req.Data)+1)
	for _, v := range req.Data {
		if v < 0 || v > 255 {
			writeError(ctx, w, serviceerr.New(serviceerr.CodeInvalidRequest, "data must be a list of bytes"))
			return
		}
		data = append(data, byte(v))
	}
	data = append(data, '!')

	if !utf8.Valid(data) {
		writeError(ctx, w, serviceerr.New(serviceerr.CodeInvalidRequest, "data is not valid UTF-8"))
		return
	}

	slogctx.Debug(ctx, "Echoing data", "bytes", len(req.Data))
	writeJSON(ctx, w, http.StatusOK, echoResponse{Status: "success", Data: string(data)})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return serviceerr.New(serviceerr.CodeInvalidRequest, "request body too large")
		}
		return serviceerr.New(serviceerr.CodeInvalidRequest, "malformed JSON body")
	}

	return nil
}

// writeError renders err in the OAuth error shape. Anything that is not a
// *serviceerr.Error is logged and reported as server_error.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var svcErr *serviceerr.Error
	if !errors.As(err, &svcErr) {
		slogctx.Error(ctx, "Request failed", "error", err)
		svcErr = serviceerr.ErrServerError
	}

	writeJSON(ctx, w, svcErr.HTTPStatus(), errorResponse{
		Error:       string(svcErr.Err),
		Description: svcErr.Description,
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slogctx.Error(ctx, "Failed to write response", "error", err)
	}
}
