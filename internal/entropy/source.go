// Package entropy generates the random values handed out by the server:
// authorization codes, client secrets, refresh tokens and identifiers.
package entropy

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

// TokenBytes is the amount of randomness behind every opaque token (256 bits).
const TokenBytes = 32

type Source struct{}

func (s Source) randBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)

	return b
}

func (s Source) randToken() string {
	return base64.RawURLEncoding.EncodeToString(s.randBytes(TokenBytes))
}

// AuthorizationCode returns a URL-safe, unpadded code. It is only a lookup key.
func (s Source) AuthorizationCode() string {
	return s.randToken()
}

// ClientSecret returns a new plaintext client secret. It doubles as the HS256
// key of the client's access tokens, so it is never shorter than the hash output.
func (s Source) ClientSecret() string {
	return s.randToken()
}

func (s Source) RefreshToken() string {
	return s.randToken()
}

func (s Source) SessionID() string {
	return uuid.NewString()
}

func (s Source) ID() string {
	return uuid.NewString()
}
