package recovery

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Middleware intercepts panics from downstream handlers, logs details, and returns HTTP 500.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						"panic", rec,
						"method", r.Method,
						"url", r.URL.String(),
						"remote", r.RemoteAddr,
						"stack", string(debug.Stack()))

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"An internal error occurred.","category":"internal"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
