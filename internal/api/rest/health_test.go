package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name   string
	result HealthCheckResult
}

func (c *stubChecker) Name() string                                { return c.name }
func (c *stubChecker) Check(ctx context.Context) HealthCheckResult { return c.result }

func TestHealthService_Liveness(t *testing.T) {
	svc := NewHealthService("1.4.2")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	svc.LivenessHandler()(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/health+json", rec.Header().Get("Content-Type"))

	var response HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, HealthStatusPass, response.Status)
	assert.Equal(t, "1.4.2", response.Version)
}

func TestHealthService_Readiness(t *testing.T) {
	t.Run("all dependencies healthy", func(t *testing.T) {
		svc := NewHealthService("dev")
		svc.RegisterChecker(&stubChecker{name: "database", result: HealthCheckResult{Status: HealthStatusPass}})
		svc.RegisterChecker(&stubChecker{name: "redis", result: HealthCheckResult{Status: HealthStatusPass}})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		svc.ReadinessHandler()(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var response HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(t, HealthStatusPass, response.Status)
		assert.Len(t, response.Checks, 2)
	})

	t.Run("one failing dependency fails readiness", func(t *testing.T) {
		svc := NewHealthService("dev")
		svc.RegisterChecker(&stubChecker{name: "database", result: HealthCheckResult{Status: HealthStatusPass}})
		svc.RegisterChecker(&stubChecker{name: "redis", result: HealthCheckResult{
			Status: HealthStatusFail,
			Error:  "connection refused",
		}})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		svc.ReadinessHandler()(rec, req)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var response HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(t, HealthStatusFail, response.Status)
		assert.Equal(t, "connection refused", response.Checks["redis"].Error)
		assert.Equal(t, HealthStatusPass, response.Checks["database"].Status)
	})

	t.Run("no checkers registered passes", func(t *testing.T) {
		svc := NewHealthService("dev")

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		svc.ReadinessHandler()(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
