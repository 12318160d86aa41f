package rest

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/seatshield/ticket-fraud-backend/internal/metrics"
)

// Middleware wraps an http.Handler with additional behavior
type Middleware func(http.Handler) http.Handler

type contextKey string

const (
	contextKeyRequestMeta contextKey = "request_meta"
	contextKeyUserID      contextKey = "user_id"
)

// RequestMeta contains metadata about the current request
type RequestMeta struct {
	RequestID string
	UserID    string
	ClientIP  string
	UserAgent string
}

// RequestMetaFromContext retrieves request metadata, if any
func RequestMetaFromContext(ctx context.Context) *RequestMeta {
	meta, _ := ctx.Value(contextKeyRequestMeta).(*RequestMeta)
	return meta
}

// requestIDMiddleware adds a unique request ID to the context
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		meta := &RequestMeta{
			RequestID: requestID,
			ClientIP:  getClientIP(r),
			UserAgent: r.UserAgent(),
		}

		ctx := context.WithValue(r.Context(), contextKeyRequestMeta, meta)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each request with method, path, status and duration
func loggingMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &basicResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.status),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000.0),
				slog.String("remote_addr", getClientIP(r)),
				slog.String("user_agent", r.UserAgent()),
			}
			if meta := RequestMetaFromContext(r.Context()); meta != nil {
				attrs = append(attrs, slog.String("request_id", meta.RequestID))
			}

			logger.InfoContext(r.Context(), "http_request", attrs...)
		})
	}
}

// recoveryMiddleware recovers from panics and returns a 500
func recoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.ErrorContext(r.Context(), "panic recovered",
						slog.Any("panic", rec),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())),
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte(`{"error":{"code":"INTERNAL_ERROR","message":"Internal server error"}}`))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// tracingMiddleware starts a span per request and records the outcome
func tracingMiddleware() Middleware {
	tracer := otel.Tracer("api.rest")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.target", r.URL.Path),
				),
			)
			defer span.End()

			rw := &basicResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.status_code", rw.status))
		})
	}
}

// metricsMiddleware records request duration and counts for every route
func metricsMiddleware(registry *metrics.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &basicResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			path := routePattern(r)
			durationMs := float64(duration.Microseconds()) / 1000.0

			registry.RecordAPIRequest(r.Context(), durationMs, r.Method, path, rw.status)
			observeHTTPRequest(r.Method, path, rw.status, duration)
		})
	}
}

// routePattern returns the matched route pattern so metrics don't
// explode into per-ID series. Falls back to the raw path for routes
// the mux didn't match.
func routePattern(r *http.Request) string {
	if pattern := r.Pattern; pattern != "" {
		// Patterns look like "POST /assessments"; keep only the path part.
		if idx := strings.IndexByte(pattern, ' '); idx != -1 {
			return pattern[idx+1:]
		}
		return pattern
	}
	return r.URL.Path
}

// timeoutMiddleware enforces a request deadline. Upgraded connections
// are exempt, they outlive any sensible request deadline.
func timeoutMiddleware(timeout time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isUpgradeRequest(r) {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			done := make(chan struct{})
			panicChan := make(chan interface{}, 1)

			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicChan <- p
					}
				}()
				next.ServeHTTP(w, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
			case p := <-panicChan:
				panic(p)
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					w.Write([]byte(`{"error":{"code":"REQUEST_TIMEOUT","message":"Request timed out"}}`))
				}
			}
		})
	}
}

// corsMiddleware handles cross-origin requests from the ops dashboard
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", getAllowedOrigin(r))
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getAllowedOrigin returns the allowed origin for CORS
func getAllowedOrigin(r *http.Request) string {
	origin := r.Header.Get("Origin")

	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"https://ops.seatshield.com",
	}

	for _, allowed := range allowedOrigins {
		if origin == allowed {
			return origin
		}
	}

	return allowedOrigins[0]
}

// isUpgradeRequest reports whether the request asks for a protocol
// upgrade (WebSocket)
func isUpgradeRequest(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// basicResponseWriter wraps http.ResponseWriter to capture the status code
type basicResponseWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (rw *basicResponseWriter) WriteHeader(status int) {
	if !rw.written {
		rw.status = status
		rw.ResponseWriter.WriteHeader(status)
		rw.written = true
	}
}

func (rw *basicResponseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Hijack lets upgrade handlers take over the connection through the
// wrapper. The live feed sits behind the same middleware chain as the
// JSON routes.
func (rw *basicResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying ResponseWriter does not support hijacking")
	}
	return hj.Hijack()
}

func (rw *basicResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// getClientIP extracts the client IP, honoring proxy headers
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if colon := strings.LastIndex(ip, ":"); colon != -1 {
		ip = ip[:colon]
	}

	return ip
}
