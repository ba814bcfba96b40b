// Package accesslog logs one line per HTTP request with credentials removed
// from the query string.
package accesslog

import (
	"net/http"
	"net/url"
	"slices"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/oauth-server/internal/middleware/responsewriter"
)

const redacted = "REDACTED"

// SensitiveParams are the query parameters whose values never reach the log.
var SensitiveParams = []string{"code", "client_secret", "password", "refresh_token", "access_token"}

// Middleware logs the request after the handler returned. It must run inside
// responsewriter.ResponseWriterMiddleware.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"query", ScrubQuery(r.URL.Query()),
			"remoteAddr", r.RemoteAddr,
			"duration", time.Since(start),
		}
		if ww, err := responsewriter.ResponseWriterFromContext(r.Context()); err == nil {
			attrs = append(attrs,
				"status", responsewriter.Status(ww),
				"bytes", ww.BytesWritten(),
			)
		}

		slogctx.Info(r.Context(), "HTTP request served", attrs...)
	})
}

// ScrubQuery encodes q with the values of SensitiveParams replaced.
func ScrubQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}

	scrubbed := make(url.Values, len(q))
	for key, values := range q {
		if slices.Contains(SensitiveParams, key) {
			values = slices.Repeat([]string{redacted}, len(values))
		}
		scrubbed[key] = values
	}

	return scrubbed.Encode()
}
