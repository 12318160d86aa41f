package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/seatshield/ticket-fraud-backend/internal/infrastructure/cache"
	"github.com/seatshield/ticket-fraud-backend/internal/infrastructure/database"
)

// HealthStatus represents the health of a dependency
type HealthStatus string

const (
	HealthStatusPass HealthStatus = "pass"
	HealthStatusFail HealthStatus = "fail"
)

// HealthChecker checks the health of one dependency
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) HealthCheckResult
}

// HealthCheckResult is one dependency's health probe outcome
type HealthCheckResult struct {
	Status       HealthStatus  `json:"status"`
	Error        string        `json:"error,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
}

// HealthResponse is the overall health report
type HealthResponse struct {
	Status        HealthStatus                 `json:"status"`
	Version       string                       `json:"version"`
	UptimeSeconds float64                      `json:"uptime_seconds"`
	Checks        map[string]HealthCheckResult `json:"checks,omitempty"`
}

// HealthService answers liveness and readiness probes
type HealthService struct {
	checkers  []HealthChecker
	version   string
	timeout   time.Duration
	startTime time.Time
}

// NewHealthService creates a health service
func NewHealthService(version string) *HealthService {
	return &HealthService{
		version:   version,
		timeout:   5 * time.Second,
		startTime: time.Now(),
	}
}

// RegisterChecker adds a dependency to the readiness probe
func (h *HealthService) RegisterChecker(checker HealthChecker) {
	h.checkers = append(h.checkers, checker)
}

// LivenessHandler reports that the process is up
func (h *HealthService) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.writeResponse(w, http.StatusOK, HealthResponse{
			Status:        HealthStatusPass,
			Version:       h.version,
			UptimeSeconds: time.Since(h.startTime).Seconds(),
		})
	}
}

// ReadinessHandler probes every registered dependency and fails the
// whole check when any of them does
func (h *HealthService) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		response := HealthResponse{
			Status:        HealthStatusPass,
			Version:       h.version,
			UptimeSeconds: time.Since(h.startTime).Seconds(),
			Checks:        make(map[string]HealthCheckResult, len(h.checkers)),
		}

		status := http.StatusOK
		for _, checker := range h.checkers {
			result := checker.Check(ctx)
			response.Checks[checker.Name()] = result
			if result.Status == HealthStatusFail {
				response.Status = HealthStatusFail
				status = http.StatusServiceUnavailable
			}
		}

		h.writeResponse(w, status, response)
	}
}

func (h *HealthService) writeResponse(w http.ResponseWriter, status int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/health+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// databaseChecker probes the Postgres pool
type databaseChecker struct {
	db *database.ConnectionPool
}

func (c *databaseChecker) Name() string { return "database" }

func (c *databaseChecker) Check(ctx context.Context) HealthCheckResult {
	start := time.Now()
	if err := c.db.HealthCheck(ctx); err != nil {
		return HealthCheckResult{
			Status:       HealthStatusFail,
			Error:        err.Error(),
			ResponseTime: time.Since(start),
		}
	}
	return HealthCheckResult{Status: HealthStatusPass, ResponseTime: time.Since(start)}
}

// redisChecker probes the cache connection
type redisChecker struct {
	cache *cache.CacheManager
}

func (c *redisChecker) Name() string { return "redis" }

func (c *redisChecker) Check(ctx context.Context) HealthCheckResult {
	start := time.Now()
	if err := c.cache.HealthCheck(ctx); err != nil {
		return HealthCheckResult{
			Status:       HealthStatusFail,
			Error:        err.Error(),
			ResponseTime: time.Since(start),
		}
	}
	return HealthCheckResult{Status: HealthStatusPass, ResponseTime: time.Since(start)}
}
