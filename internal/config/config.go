// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

const (
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverSQLite   = "sqlite"
)

const (
	EphemeralBackendValkey = "valkey"
	EphemeralBackendRedis  = "redis"
	EphemeralBackendMemory = "memory"
)

type CookieSameSite string

const (
	CookieSameSiteNone   CookieSameSite = "none"
	CookieSameSiteLax    CookieSameSite = "lax"
	CookieSameSiteStrict CookieSameSite = "strict"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	HTTP HTTPServer `yaml:"http"`

	Database  Database  `yaml:"database"`
	Ephemeral Ephemeral `yaml:"ephemeral"`
	ValKey    ValKey    `yaml:"valkey"`
	Redis     Redis     `yaml:"redis"`

	Hasher        Hasher        `yaml:"hasher"`
	Authorization Authorization `yaml:"authorization"`
	Token         Token         `yaml:"token"`
	Session       Session       `yaml:"session"`
}

type HTTPServer struct {
	Address               string        `yaml:"address" default:":8080"`
	ShutdownTimeout       time.Duration `yaml:"shutdownTimeout" default:"5s"`
	ReadHeaderTimeout     time.Duration `yaml:"readHeaderTimeout" default:"10s"`
	MaxConcurrentRequests int           `yaml:"maxConcurrentRequests" default:"1024"`
	MaxBodyBytes          int64         `yaml:"maxBodyBytes" default:"2097152"`
}

type Database struct {
	// Driver selects the credential store, either postgres or sqlite.
	Driver   string              `yaml:"driver" default:"postgres"`
	Name     string              `yaml:"name"`
	Port     string              `yaml:"port"`
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
	SSLMode  string              `yaml:"sslMode"`
	SQLite   SQLite              `yaml:"sqlite"`
}

type SQLite struct {
	Path string `yaml:"path" default:"oauth-server.db"`
}

type Ephemeral struct {
	// Backend selects the ephemeral state store: valkey, redis or memory.
	Backend string `yaml:"backend" default:"valkey"`
	Prefix  string `yaml:"prefix"`
}

type ValKey struct {
	Host      commoncfg.SourceRef `yaml:"host"`
	User      commoncfg.SourceRef `yaml:"user"`
	Password  commoncfg.SourceRef `yaml:"password"`
	SecretRef commoncfg.SecretRef `yaml:"secretRef"`
}

type Redis struct {
	Address   commoncfg.SourceRef `yaml:"address"`
	User      commoncfg.SourceRef `yaml:"user"`
	Password  commoncfg.SourceRef `yaml:"password"`
	DB        int                 `yaml:"db"`
	SecretRef commoncfg.SecretRef `yaml:"secretRef"`
}

// Hasher holds the Argon2id cost parameters used for new hashes.
// Existing hashes keep the parameters they were created with.
type Hasher struct {
	Memory      uint32 `yaml:"memory" default:"19456"`
	Iterations  uint32 `yaml:"iterations" default:"2"`
	Parallelism uint8  `yaml:"parallelism" default:"1"`
}

type Authorization struct {
	CodeTTL time.Duration `yaml:"codeTTL" default:"10m"`
}

type Token struct {
	Issuer          string        `yaml:"issuer"`
	AccessTokenTTL  time.Duration `yaml:"accessTokenTTL" default:"1h"`
	RefreshTokenTTL time.Duration `yaml:"refreshTokenTTL" default:"720h"`
}

type Session struct {
	TTL    time.Duration  `yaml:"ttl" default:"1h"`
	Cookie CookieTemplate `yaml:"cookie"`
}

type CookieTemplate struct {
	Name     string         `yaml:"name" default:"session_id"`
	MaxAge   int            `yaml:"maxAge"`
	Path     string         `yaml:"path" default:"/"`
	Domain   string         `yaml:"domain"`
	Secure   bool           `yaml:"secure"`
	HTTPOnly bool           `yaml:"httpOnly" default:"true"`
	SameSite CookieSameSite `yaml:"sameSite" default:"lax"`
}
