package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/tempoguard/pkg/metrics"
)

// MetricsMiddleware records request counts and latency per route pattern.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		durationMs := float64(time.Since(start).Microseconds()) / 1000
		statusCode := strconv.Itoa(wrapped.statusCode)

		metrics.RecordHTTPRequest(endpoint, r.Method, statusCode)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCode, durationMs)
		if wrapped.statusCode >= http.StatusBadRequest {
			metrics.RecordErrorByComponent("http", errorType(wrapped.statusCode))
		}
	})
}

// errorType returns a standardized error type based on HTTP status code.
func errorType(statusCode int) string {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return "server_error"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limit"
	case statusCode == http.StatusNotFound:
		return "not_found"
	default:
		return "client_error"
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}
