package responsewriter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/oauth-server/internal/middleware/responsewriter"
)

func TestResponseWriterMiddleware(t *testing.T) {
	var calledNextHandler bool

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	var injected middleware.WrapResponseWriter
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calledNextHandler = true

		var err error
		injected, err = responsewriter.ResponseWriterFromContext(r.Context())
		//nolint:testifylint
		require.NoError(t, err)
		assert.Same(t, injected, w, "the handler must write through the injected wrapper")

		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	handler := responsewriter.ResponseWriterMiddleware(next)
	handler.ServeHTTP(rec, req)

	require.True(t, calledNextHandler, "The next handler was not executed")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
	assert.Equal(t, http.StatusTeapot, responsewriter.Status(injected))
	assert.Equal(t, len("short and stout"), injected.BytesWritten())
}

func TestResponseWriterMiddleware_Nested(t *testing.T) {
	var outer, inner middleware.WrapResponseWriter

	innerHandler := responsewriter.ResponseWriterMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner, _ = responsewriter.ResponseWriterFromContext(r.Context())
		_, _ = w.Write([]byte("ok"))
	}))
	outerHandler := responsewriter.ResponseWriterMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outer, _ = responsewriter.ResponseWriterFromContext(r.Context())
		innerHandler.ServeHTTP(w, r)
	}))

	outerHandler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, outer)
	assert.Same(t, outer, inner)
	assert.Equal(t, 2, outer.BytesWritten())
	assert.Equal(t, http.StatusOK, responsewriter.Status(outer))
}

func TestResponseWriterFromContext(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ww := middleware.NewWrapResponseWriter(httptest.NewRecorder(), 1)
		ctx := context.WithValue(context.Background(), responsewriter.ResponseWriterKey, ww)

		retrieved, err := responsewriter.ResponseWriterFromContext(ctx)
		require.NoError(t, err)
		assert.Same(t, ww, retrieved)
	})

	t.Run("Failure_KeyNotFound", func(t *testing.T) {
		_, err := responsewriter.ResponseWriterFromContext(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found in context")
	})

	t.Run("Failure_WrongType", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), responsewriter.ResponseWriterKey, httptest.NewRecorder())

		_, err := responsewriter.ResponseWriterFromContext(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found in context")
	})
}

func TestStatus(t *testing.T) {
	t.Run("nothing written", func(t *testing.T) {
		ww := middleware.NewWrapResponseWriter(httptest.NewRecorder(), 1)
		assert.Equal(t, http.StatusOK, responsewriter.Status(ww))
	})

	t.Run("explicit status", func(t *testing.T) {
		ww := middleware.NewWrapResponseWriter(httptest.NewRecorder(), 1)
		ww.WriteHeader(http.StatusFound)
		assert.Equal(t, http.StatusFound, responsewriter.Status(ww))
	})
}
