package fraud

import (
	"context"
	"fmt"
	"math"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/behavior"
	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// targetingDetector flags sessions sweeping many events at once, the
// shape of inventory scanning rather than a fan picking a show.
type targetingDetector struct {
	cfg TargetingConfig
}

func newTargetingDetector(cfg TargetingConfig) *targetingDetector {
	return &targetingDetector{cfg: cfg}
}

func (d *targetingDetector) Name() string {
	return "event_targeting"
}

func (d *targetingDetector) Evaluate(_ context.Context, snap *SessionSnapshot) ([]risk.Indicator, error) {
	seen := make(map[string]struct{})
	var events []string
	for _, a := range snap.Actions {
		switch a.Type {
		case behavior.ActionTypeSearch, behavior.ActionTypeView, behavior.ActionTypeAddToCart:
		default:
			continue
		}
		if a.EventID == "" {
			continue
		}
		if _, ok := seen[a.EventID]; ok {
			continue
		}
		seen[a.EventID] = struct{}{}
		events = append(events, a.EventID)
	}

	if len(events) <= d.cfg.EventLimit {
		return nil, nil
	}

	sample := events
	if len(sample) > d.cfg.EvidenceMax {
		sample = sample[:d.cfg.EvidenceMax]
	}
	return []risk.Indicator{{
		Name:        risk.IndicatorMultipleEventTargeting,
		Score:       d.cfg.Base + math.Min(float64(len(events))*d.cfg.PerEvent, d.cfg.Cap),
		Description: fmt.Sprintf("Targeting %d different events", len(events)),
		Evidence: map[string]interface{}{
			"event_count": len(events),
			"events":      sample,
		},
	}}, nil
}
