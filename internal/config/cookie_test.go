package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToCookie(t *testing.T) {
	tests := []struct {
		name     string
		template CookieTemplate
		value    string
		ttl      time.Duration
		want     *http.Cookie
	}{
		{
			name: "defaults",
			template: CookieTemplate{
				Name: "foo",
			},
			want: &http.Cookie{
				Name:     "foo",
				SameSite: http.SameSiteDefaultMode,
			},
		}, {
			name: "max age follows the session ttl",
			template: CookieTemplate{
				Name: "session_id",
			},
			ttl: 90 * time.Minute,
			want: &http.Cookie{
				Name:     "session_id",
				MaxAge:   5400,
				SameSite: http.SameSiteDefaultMode,
			},
		}, {
			name: "session",
			template: CookieTemplate{
				Name:     "session_id",
				MaxAge:   3600,
				Path:     "/",
				SameSite: CookieSameSiteLax,
				HTTPOnly: true,
			},
			value: "0b4f7e5c-1c36-4c31-9a5d-3f0f2d6a8d11",
			ttl:   time.Hour * 2,
			want: &http.Cookie{
				Name:     "session_id",
				Value:    "0b4f7e5c-1c36-4c31-9a5d-3f0f2d6a8d11",
				MaxAge:   3600,
				Path:     "/",
				SameSite: http.SameSiteLaxMode,
				HttpOnly: true,
			},
		}, {
			name: "strict on a domain",
			template: CookieTemplate{
				Name:     "session_id",
				Path:     "/",
				Domain:   "auth.example.com",
				Secure:   true,
				SameSite: CookieSameSiteStrict,
			},
			value: "abc",
			want: &http.Cookie{
				Name:     "session_id",
				Value:    "abc",
				Path:     "/",
				Domain:   "auth.example.com",
				Secure:   true,
				SameSite: http.SameSiteStrictMode,
			},
		}, {
			name: "none forces secure",
			template: CookieTemplate{
				Name:     "session_id",
				SameSite: CookieSameSiteNone,
			},
			want: &http.Cookie{
				Name:     "session_id",
				Secure:   true,
				SameSite: http.SameSiteNoneMode,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.template.ToCookie(tt.value, tt.ttl)
			assert.Equal(t, tt.want.Name, c.Name)
			assert.Equal(t, tt.want.Value, c.Value)
			assert.Equal(t, tt.want.MaxAge, c.MaxAge)
			assert.Equal(t, tt.want.Path, c.Path)
			assert.Equal(t, tt.want.Domain, c.Domain)
			assert.Equal(t, tt.want.Secure, c.Secure)
			assert.Equal(t, tt.want.SameSite, c.SameSite)
			assert.Equal(t, tt.want.HttpOnly, c.HttpOnly)
		})
	}
}
