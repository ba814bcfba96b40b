//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "http://oauth-server"

func unixClient(t *testing.T, socket string) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &http.Client{
		Jar: jar,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return new(net.Dialer).DialContext(ctx, "unix", socket)
			},
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Timeout: 5 * time.Second,
	}
}

func waitForHealth(t *testing.T, client *http.Client) {
	t.Helper()

	require.EventuallyWithT(t, func(c *assert.CollectT) {
		resp, err := client.Get(baseURL + "/health")
		if !assert.NoError(c, err) {
			return
		}
		defer resp.Body.Close()
		assert.Equal(c, http.StatusOK, resp.StatusCode)
	}, 30*time.Second, 100*time.Millisecond)
}

func postJSON(t *testing.T, client *http.Client, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := client.Post(baseURL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return resp, out
}

// runAuthorizationCodeFlow walks a user through registration, login,
// authorization and code redemption against a running server.
func runAuthorizationCodeFlow(t *testing.T, client *http.Client) {
	t.Helper()

	const redirectURI = "https://app.example.com/callback"

	resp, body := postJSON(t, client, "/register", map[string]any{
		"email": "alice@example.com", "password": "correct horse battery staple",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	userID := body["user_id"].(string)

	resp, body = postJSON(t, client, "/clients", map[string]any{
		"client_name":   "integration",
		"redirect_uris": []string{redirectURI},
		"scopes":        []string{"openid", "profile"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	clientID := body["client_id"].(string)
	clientSecret := body["client_secret"].(string)

	resp, body = postJSON(t, client, "/login", map[string]any{
		"email": "Alice@Example.com", "password": "correct horse battery staple",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	q := url.Values{
		"response_type": {"code"},
		"client_id":     {clientID},
		"redirect_uri":  {redirectURI},
		"scope":         {"openid"},
		"state":         {"xyz"},
	}
	authResp, err := client.Get(baseURL + "/authorize?" + q.Encode())
	require.NoError(t, err)
	defer authResp.Body.Close()
	require.Equal(t, http.StatusFound, authResp.StatusCode)

	location, err := url.Parse(authResp.Header.Get("Location"))
	require.NoError(t, err)
	code := location.Query().Get("code")
	require.NotEmpty(t, code)
	assert.Equal(t, "xyz", location.Query().Get("state"))

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"redirect_uri":  {redirectURI},
	}
	redeem := func() (*http.Response, map[string]any) {
		resp, err := client.PostForm(baseURL+"/token", form)
		require.NoError(t, err)
		defer resp.Body.Close()

		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp, out
	}

	resp, body = redeem()
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Bearer", body["token_type"])
	assert.Equal(t, "openid", body["scope"])
	assert.NotEmpty(t, body["refresh_token"])

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(body["access_token"].(string), claims, func(*jwt.Token) (any, error) {
		return []byte(clientSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithAudience(clientID))
	require.NoError(t, err)
	assert.Equal(t, userID, claims["sub"])

	// A code is good for one redemption only.
	resp, body = redeem()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_grant", body["error"])
}

func TestAPIServer(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, istat *infraStat)
	}{
		{
			name: "postgres and valkey",
			prepare: func(t *testing.T, istat *infraStat) {
				istat.PreparePostgres(t)
				istat.PrepareValKey(t)
			},
		},
		{
			name: "sqlite and memory",
			prepare: func(t *testing.T, istat *infraStat) {
				istat.PrepareSQLite(t)
				istat.PrepareMemoryStore(t)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const cmdName = "api-server"

			istat := initInfra(t, strings.ReplaceAll(tt.name, " ", "-"))
			defer istat.Close(context.WithoutCancel(t.Context()))

			tt.prepare(t, &istat)
			istat.PrepareConfig(t)
			istat.Start(t, cmdName)

			client := unixClient(t, istat.Socket)
			waitForHealth(t, client)

			runAuthorizationCodeFlow(t, client)
		})
	}
}
