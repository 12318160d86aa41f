package instrumentation

import (
	"context"
	"time"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
	"github.com/seatshield/ticket-fraud-backend/internal/infrastructure/telemetry"
	"github.com/seatshield/ticket-fraud-backend/internal/service/fraud"
)

// FraudTracedService wraps the fraud engine with OpenTelemetry spans.
// Metrics stay inside the engine itself; this layer only adds tracing,
// so stacking it never double-counts.
type FraudTracedService struct {
	service fraud.Service
	tracer  telemetry.TracerInterface
}

// NewFraudTracedService creates an instrumented fraud service
func NewFraudTracedService(service fraud.Service, tracer telemetry.TracerInterface) *FraudTracedService {
	return &FraudTracedService{
		service: service,
		tracer:  tracer,
	}
}

// AssessSession instruments one session assessment
func (s *FraudTracedService) AssessSession(ctx context.Context, sessionID, userID string) (*risk.Assessment, error) {
	ctx, span := s.tracer.StartSpanWithAttributes(ctx, "fraud.AssessSession", map[string]interface{}{
		"session.id": sessionID,
		"span.kind":  "internal",
		"component":  "fraud",
	})
	defer span.End()

	startTime := time.Now()

	assessment, err := s.service.AssessSession(ctx, sessionID, userID)

	latencyMS := float64(time.Since(startTime).Microseconds()) / 1000.0

	if err != nil {
		s.tracer.RecordError(span, err, "Session assessment failed")
		return nil, err
	}

	s.tracer.SetAttributes(span, map[string]interface{}{
		"risk.score":            assessment.TotalRiskScore,
		"risk.level":            assessment.RiskLevel.String(),
		"risk.indicators":       len(assessment.Indicators),
		"assessment.degraded":   assessment.Degraded,
		"assessment.latency_ms": latencyMS,
	})

	if assessment.Flagged() {
		s.tracer.AddEvent(span, "session_flagged", map[string]interface{}{
			"session.id": sessionID,
			"risk.score": assessment.TotalRiskScore,
			"risk.level": assessment.RiskLevel.String(),
		})
	}

	return assessment, nil
}

// DetectScalpingNetworks instruments one scalping scan
func (s *FraudTracedService) DetectScalpingNetworks(ctx context.Context, eventID string, window time.Duration) (*risk.ScalpingReport, error) {
	ctx, span := s.tracer.StartSpanWithAttributes(ctx, "fraud.DetectScalpingNetworks", map[string]interface{}{
		"event.id":       eventID,
		"window.minutes": int(window.Minutes()),
		"span.kind":      "internal",
		"component":      "fraud",
	})
	defer span.End()

	report, err := s.service.DetectScalpingNetworks(ctx, eventID, window)
	if err != nil {
		s.tracer.RecordError(span, err, "Scalping scan failed")
		return nil, err
	}

	s.tracer.SetAttributes(span, map[string]interface{}{
		"networks.count":  report.TotalNetworks,
		"networks.max":    report.MaxNetworkRisk,
		"risk.level":      report.RiskLevel.String(),
		"report.degraded": report.Degraded,
	})

	if report.TotalNetworks > 0 {
		s.tracer.AddEvent(span, "scalping_networks_detected", map[string]interface{}{
			"event.id":       eventID,
			"networks.count": report.TotalNetworks,
		})
	}

	return report, nil
}
