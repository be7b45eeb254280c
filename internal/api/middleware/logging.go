package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// slowRequestThreshold flags requests that took unusually long. The parse
// endpoint blocks on OCR, so these warnings are the first sign of a slow
// provider.
const slowRequestThreshold = 30 * time.Second

// LoggingMiddleware logs one line per handled request. Health probes are
// skipped to keep the log stream readable.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		elapsed := time.Since(start)
		event := log.Info()
		if elapsed > slowRequestThreshold {
			event = log.Warn().Bool("slow", true)
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Dur("duration", elapsed).
			Msg("request handled")
	})
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *loggingResponseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *loggingResponseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
