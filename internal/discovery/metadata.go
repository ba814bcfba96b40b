// Package discovery builds the authorization server metadata document served
// at the well-known URL.
package discovery

import (
	"strings"

	"github.com/openkcm/oauth-server/internal/credentials"
)

const (
	Path = "/.well-known/oauth-authorization-server"

	AuthorizePath = "/authorize"
	TokenPath     = "/token"
	RegisterPath  = "/clients"

	ResponseTypeCode     = "code"
	AuthMethodSecretPost = "client_secret_post"
)

// Metadata is a subset of https://www.rfc-editor.org/rfc/rfc8414#section-2
type Metadata struct {
	Issuer                            string   `json:"issuer,omitempty"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
}

// New returns the metadata for a server reachable at issuer. Without an
// issuer the endpoints are relative paths.
func New(issuer string) Metadata {
	base := strings.TrimSuffix(issuer, "/")

	return Metadata{
		Issuer:                            issuer,
		AuthorizationEndpoint:             base + AuthorizePath,
		TokenEndpoint:                     base + TokenPath,
		RegistrationEndpoint:              base + RegisterPath,
		ResponseTypesSupported:            []string{ResponseTypeCode},
		GrantTypesSupported:               []string{credentials.GrantTypeAuthorizationCode},
		TokenEndpointAuthMethodsSupported: []string{AuthMethodSecretPost},
	}
}
