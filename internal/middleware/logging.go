package middleware

import (
	"net/http"
	"time"

	"tiercache/internal/common/logging"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs all HTTP requests with method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		fields := []logging.Field{
			{Key: "method", Value: r.Method},
			{Key: "path", Value: r.URL.Path},
			{Key: "status", Value: wrapped.statusCode},
			{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
			{Key: "remote_addr", Value: r.RemoteAddr},
		}

		switch {
		case wrapped.statusCode >= 500:
			logging.Error("HTTP request completed", nil, fields...)
		case wrapped.statusCode >= 400:
			logging.Warn("HTTP request completed", fields...)
		default:
			logging.Info("HTTP request completed", fields...)
		}
	})
}
