// Package responsewriter wraps the response writer of a request so the status
// code and body size can be read after the handler ran, and makes the wrapper
// available through the request context.
package responsewriter

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Using an unexported type prevents key collisions from other packages.
type responseWriterKey string

// ResponseWriterKey is the context key for the wrapped response writer.
const ResponseWriterKey responseWriterKey = "response-writer"

// ResponseWriterMiddleware wraps the response writer once and injects the
// wrapper into the context. Nested uses share the outermost wrapper.
func ResponseWriterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww, ok := w.(middleware.WrapResponseWriter)
		if !ok {
			ww = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		}

		ctx := context.WithValue(r.Context(), ResponseWriterKey, ww)
		next.ServeHTTP(ww, r.WithContext(ctx))
	})
}

// ResponseWriterFromContext returns the wrapper injected by
// ResponseWriterMiddleware.
func ResponseWriterFromContext(ctx context.Context) (middleware.WrapResponseWriter, error) {
	ww, ok := ctx.Value(ResponseWriterKey).(middleware.WrapResponseWriter)
	if !ok {
		return nil, errors.New("response writer not found in context")
	}
	return ww, nil
}

// Status returns the status code written so far, or 200 when the handler
// wrote a body without an explicit status.
func Status(ww middleware.WrapResponseWriter) int {
	if status := ww.Status(); status != 0 {
		return status
	}
	return http.StatusOK
}
