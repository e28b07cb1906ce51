package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/questline/internal/server/identity"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the number of bytes written
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Logging создает middleware для логирования HTTP запросов.
// Пути из skipPaths (health, metrics) не логируются.
// Токены, пароли и коды активации в лог не попадают.
func Logging(logger *slog.Logger, skipPaths ...string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			// Gate кладет identity в копию запроса, поэтому читаем ее через ловушку
			holder := &callerHolder{}
			next.ServeHTTP(wrapped, r.WithContext(withCallerHolder(r.Context(), holder)))

			level := slog.LevelInfo
			switch {
			case wrapped.statusCode >= http.StatusInternalServerError:
				level = slog.LevelError
			case wrapped.statusCode >= http.StatusBadRequest:
				level = slog.LevelWarn
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", sanitizePath(r.URL.Path)),
				slog.String("ip", ClientIP(r)),
				slog.String("user_agent", r.UserAgent()),
				slog.Int("status", wrapped.statusCode),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.Int64("bytes_written", wrapped.written),
			}
			if holder.userID != "" {
				attrs = append(attrs, slog.String("user_id", holder.userID))
			}

			logger.LogAttrs(r.Context(), level, "HTTP request", attrs...)
		})
	}
}

// RecordCaller remembers the authenticated caller for the request log line.
// It runs after Gate.
func RecordCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if holder := callerHolderFrom(r.Context()); holder != nil {
			if id, ok := identity.FromContext(r.Context()); ok {
				holder.userID = id.UUID
			}
		}
		next.ServeHTTP(w, r)
	})
}

// sanitizePath маскирует код активации в /auth/activate/{code}
func sanitizePath(path string) string {
	const prefix = "/auth/activate/"
	if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
		return prefix + "***"
	}
	return path
}
