package shield

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
)

// RequestID tags each request with a short random ID, echoed in the
// X-Request-ID header, and stores a logger carrying it in the context.
// An incoming X-Request-ID is reused.
func RequestID(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" || len(id) > 64 {
				buf := make([]byte, 4)
				rand.Read(buf)
				id = hex.EncodeToString(buf)
			}
			w.Header().Set("X-Request-ID", id)

			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)
			logger.Debug("shield: request", "remote_addr", r.RemoteAddr)

			ctx := context.WithValue(r.Context(), LoggerKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
