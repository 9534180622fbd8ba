package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const requestIDKey contextKey = "request_id"

// maxBodySize bounds request bodies to keep a misbehaving client from
// exhausting memory
const maxBodySize = 10 * 1024 * 1024

// Metrics holds simple in-memory request counters
type Metrics struct {
	totalRequests   atomic.Int64
	totalErrors     atomic.Int64
	requestDuration atomic.Int64 // cumulative nanoseconds
}

// Snapshot returns the current totals and the average duration in ms
func (m *Metrics) Snapshot() (total, errors, avgDurationMs int64) {
	total = m.totalRequests.Load()
	errors = m.totalErrors.Load()
	if total > 0 {
		avgDurationMs = (m.requestDuration.Load() / total) / int64(time.Millisecond)
	}
	return
}

var globalMetrics = &Metrics{}

// GetGlobalMetrics returns the process-wide request metrics
func GetGlobalMetrics() (total, errors, avgDurationMs int64) {
	return globalMetrics.Snapshot()
}

// withMiddleware wraps the handler with the middleware chain. Wrapping
// order is inside out: the last wrap runs first, so panic recovery is
// outermost and the request id exists before anything logs it.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	handler := next
	handler = s.bodySizeLimitMiddleware(handler)
	handler = MetricsMiddleware()(handler)
	handler = RequestLogger(s.logger)(handler)
	handler = RequestID()(handler)
	handler = PanicRecovery(s.logger)(handler)
	return handler
}

// bodySizeLimitMiddleware caps request body size
func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		next.ServeHTTP(w, r)
	})
}

// RequestID returns middleware that tags each request with a unique id.
// An X-Request-ID supplied by the client is preserved; otherwise a
// fresh UUID is generated. The id is stored in the request context and
// echoed back in the response headers.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}

			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger returns middleware that logs each request with
// structured fields once the handler finishes
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			logger.Info("HTTP request completed",
				"request_id", GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds(),
				"user_agent", r.UserAgent(),
				"remote_addr", getClientIP(r))
		})
	}
}

// PanicRecovery returns middleware that converts handler panics into
// 500 responses so one bad request cannot take the server down
func PanicRecovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered in HTTP handler",
						"error", err,
						"request_id", GetRequestID(r.Context()),
						"method", r.Method,
						"path", r.URL.Path,
						"remote_addr", getClientIP(r))

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte(`{"error":"internal_server_error","error_description":"An internal error occurred"}`))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// MetricsMiddleware returns middleware that tracks request counts,
// error counts (status >= 400), and cumulative duration
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			globalMetrics.totalRequests.Add(1)
			globalMetrics.requestDuration.Add(int64(time.Since(start)))
			if wrapped.statusCode >= 400 {
				globalMetrics.totalErrors.Add(1)
			}
		})
	}
}

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// getClientIP extracts the client IP, preferring proxy headers
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	return r.RemoteAddr
}
