// Package hasher hashes and verifies user passwords and client secrets with
// Argon2id, encoded in the PHC string format.
package hasher

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithm = "argon2id"
	saltLen   = 16
	keyLen    = 32
)

var ErrInvalidHash = errors.New("invalid argon2id hash")

type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
}

// DefaultParams are the OWASP recommended Argon2id parameters.
var DefaultParams = Params{
	Memory:      19456,
	Iterations:  2,
	Parallelism: 1,
}

type Hasher struct {
	params Params
	dummy  string
}

func New(params Params) (*Hasher, error) {
	if params.Memory < 8*uint32(params.Parallelism) || params.Iterations == 0 || params.Parallelism == 0 {
		return nil, fmt.Errorf("invalid argon2id parameters m=%d t=%d p=%d",
			params.Memory, params.Iterations, params.Parallelism)
	}

	h := &Hasher{params: params}

	dummy, err := h.Hash("dummy-password-for-unknown-principals")
	if err != nil {
		return nil, fmt.Errorf("hashing the dummy password: %w", err)
	}
	h.dummy = dummy

	return h, nil
}

// Hash returns the PHC string of plain under a fresh random salt.
func (h *Hasher) Hash(plain string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("reading salt: %w", err)
	}

	key := argon2.IDKey([]byte(plain), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, keyLen)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm, argon2.Version,
		h.params.Memory, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plain matches the encoded hash. The cost parameters
// are read from the hash itself.
//
// An empty encoded hash is checked against an internal dummy hash and always
// fails, so callers can spend the same time on unknown users and clients.
func (h *Hasher) Verify(plain, encoded string) bool {
	if encoded == "" {
		_ = h.verify(plain, h.dummy)
		return false
	}

	return h.verify(plain, encoded)
}

func (h *Hasher) verify(plain, encoded string) bool {
	params, salt, want, err := decode(encoded)
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(plain), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(want)))

	return subtle.ConstantTimeCompare(got, want) == 1
}

func decode(encoded string) (Params, []byte, []byte, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, hash
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithm {
		return Params{}, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Params{}, nil, nil, ErrInvalidHash
	}

	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if p.Iterations == 0 || p.Parallelism == 0 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	return p, salt, key, nil
}
