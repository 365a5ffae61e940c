package httpx

import (
	"log/slog"
	"net/http"
	"time"
)

// slowRequestAfter is when an access log line is promoted to a warning.
const slowRequestAfter = 2 * time.Second

type statusCapturingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusCapturingResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusCapturingResponseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

// WithAccessLog emits one structured line per request. Slot generation is
// expected to stay well under slowRequestAfter; anything over it logs as a
// warning so slow calendar loads surface without tracing.
func WithAccessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusCapturingResponseWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			elapsed := time.Since(start)
			level := slog.LevelInfo
			msg := "http request"
			if elapsed > slowRequestAfter {
				level = slog.LevelWarn
				msg = "slow http request"
			}
			logger.Log(r.Context(), level, msg,
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"bytes", sw.bytes,
				"duration_ms", elapsed.Milliseconds(),
			)
		})
	}
}
