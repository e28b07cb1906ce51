package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/server/identity"
)

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{name: "success", status: http.StatusOK, wantLevel: "level=INFO"},
		{name: "client error", status: http.StatusNotFound, wantLevel: "level=WARN"},
		{name: "server error", status: http.StatusServiceUnavailable, wantLevel: "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := Logging(bufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}))

			req := httptest.NewRequest(http.MethodGet, "/task", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			out := buf.String()
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, "method=GET")
			assert.Contains(t, out, "path=/task")
			assert.Contains(t, out, "bytes_written=4")
		})
	}
}

func TestLogging_SkipPaths(t *testing.T) {
	var buf bytes.Buffer
	handler := Logging(bufferLogger(&buf), "/health", "/metrics")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health", "/metrics"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Empty(t, buf.String())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/quest", nil))
	assert.Contains(t, buf.String(), "path=/quest")
}

func TestLogging_RecordsCaller(t *testing.T) {
	var buf bytes.Buffer
	// Имитируем Gate: identity появляется внутри цепочки
	attach := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := identity.WithIdentity(r.Context(), models.Identity{UserPublic: alice})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := Logging(bufferLogger(&buf))(attach(RecordCaller(final)))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/user/me", nil))
	assert.Contains(t, buf.String(), "user_id="+alice.UUID)
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/auth/activate/abc123", want: "/auth/activate/***"},
		{path: "/auth/activate/", want: "/auth/activate/"},
		{path: "/auth/login", want: "/auth/login"},
		{path: "/task", want: "/task"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizePath(tt.path))
		})
	}
}

func TestLogging_MasksActivationCode(t *testing.T) {
	var buf bytes.Buffer
	handler := Logging(bufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/auth/activate/secret-code", nil))
	assert.NotContains(t, buf.String(), "secret-code")
}

func TestResponseWriter_CapturesStatusAndBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusCreated)
	n, err := rw.Write([]byte("hello"))

	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusCreated, rw.statusCode)
	assert.Equal(t, int64(5), rw.written)
	assert.Equal(t, http.StatusCreated, rec.Code)
}
