package rest

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/seatshield/ticket-fraud-backend/internal/infrastructure/cache"
)

// RateLimiterMiddleware enforces per-caller request limits backed by
// the shared Redis window, so the limit holds across replicas. When
// Redis is unreachable it degrades to a process-local limiter instead
// of failing open entirely.
type RateLimiterMiddleware struct {
	limiter  cache.RateLimiter
	fallback *rate.Limiter
	limit    int
	window   time.Duration
	logger   *slog.Logger
}

// NewRateLimiterMiddleware creates rate limiting middleware. The limit
// applies per caller per window.
func NewRateLimiterMiddleware(limiter cache.RateLimiter, limit, burst int, window time.Duration, logger *slog.Logger) *RateLimiterMiddleware {
	if limit <= 0 {
		limit = 100
	}
	if burst <= 0 {
		burst = limit
	}
	if window <= 0 {
		window = time.Minute
	}

	perSecond := float64(limit) / window.Seconds()

	return &RateLimiterMiddleware{
		limiter:  limiter,
		fallback: rate.NewLimiter(rate.Limit(perSecond), burst),
		limit:    limit,
		window:   window,
		logger:   logger,
	}
}

// Middleware returns the http middleware function
func (m *RateLimiterMiddleware) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := m.getRateLimitKey(r)

			allowed, err := m.limiter.Allow(r.Context(), key, m.limit, m.window)
			if err != nil {
				// Shared limiter unreachable. Local token bucket keeps a
				// ceiling on this replica until Redis comes back.
				m.logger.WarnContext(r.Context(), "rate limiter unavailable, using local fallback",
					slog.Any("error", err))
				if !m.fallback.Allow() {
					m.writeRateLimited(w, 0)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			remaining, remErr := m.limiter.Remaining(r.Context(), key, m.limit, m.window)
			if remErr != nil {
				remaining = 0
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(m.window).Unix(), 10))

			if !allowed {
				m.writeRateLimited(w, remaining)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getRateLimitKey buckets by authenticated user when present, by
// client IP otherwise
func (m *RateLimiterMiddleware) getRateLimitKey(r *http.Request) string {
	if userID := userIDFromContext(r.Context()); userID != "" {
		return fmt.Sprintf("%suser:%s", cache.RateLimitPrefix, userID)
	}
	return fmt.Sprintf("%sip:%s", cache.RateLimitPrefix, getClientIP(r))
}

func (m *RateLimiterMiddleware) writeRateLimited(w http.ResponseWriter, remaining int) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("Retry-After", strconv.Itoa(int(m.window.Seconds())))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":{"code":"RATE_LIMIT_EXCEEDED","message":"Too many requests"}}`))
}
