package config

import (
	"net/http"
	"time"
)

func (s CookieSameSite) mode() http.SameSite {
	switch s {
	case CookieSameSiteNone:
		return http.SameSiteNoneMode
	case CookieSameSiteLax:
		return http.SameSiteLaxMode
	case CookieSameSiteStrict:
		return http.SameSiteStrictMode
	default:
		return http.SameSiteDefaultMode
	}
}

// ToCookie renders the template for a session. A template without MaxAge
// lives as long as the session; browsers drop SameSite=None cookies that are
// not Secure, so None always sets Secure.
func (ct *CookieTemplate) ToCookie(value string, sessionTTL time.Duration) *http.Cookie {
	maxAge := ct.MaxAge
	if maxAge == 0 {
		maxAge = int(sessionTTL / time.Second)
	}

	sameSite := ct.SameSite.mode()

	return &http.Cookie{
		Name:     ct.Name,
		Value:    value,
		MaxAge:   maxAge,
		Path:     ct.Path,
		Domain:   ct.Domain,
		Secure:   ct.Secure || sameSite == http.SameSiteNoneMode,
		HttpOnly: ct.HTTPOnly,
		SameSite: sameSite,
	}
}
