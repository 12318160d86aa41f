package fraud

import (
	"context"
	"fmt"
	"math"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/behavior"
	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// quantityDetector flags ticket grabs: single add-to-cart actions over
// the per-action limit, and sessions whose summed cart quantity exceeds
// the cumulative limit.
type quantityDetector struct {
	cfg QuantityConfig
}

func newQuantityDetector(cfg QuantityConfig) *quantityDetector {
	return &quantityDetector{cfg: cfg}
}

func (d *quantityDetector) Name() string {
	return "high_quantity"
}

func (d *quantityDetector) Evaluate(_ context.Context, snap *SessionSnapshot) ([]risk.Indicator, error) {
	var (
		indicators    []risk.Indicator
		totalQuantity int
	)
	uniqueEvents := make(map[string]struct{})

	for _, a := range snap.Actions {
		if a.EventID != "" {
			uniqueEvents[a.EventID] = struct{}{}
		}
		if a.Type != behavior.ActionTypeAddToCart {
			continue
		}
		totalQuantity += a.Quantity
		if a.Quantity > d.cfg.SingleLimit {
			indicators = append(indicators, risk.Indicator{
				Name:        risk.IndicatorHighQuantitySingle,
				Score:       d.cfg.SingleBase + math.Min(float64(a.Quantity)*d.cfg.SingleFactor, d.cfg.SingleCap),
				Description: fmt.Sprintf("Attempted to purchase %d tickets in a single action", a.Quantity),
				Evidence: map[string]interface{}{
					"quantity":  a.Quantity,
					"event_id":  a.EventID,
					"timestamp": a.Timestamp,
				},
			})
		}
	}

	if totalQuantity > d.cfg.CumulativeLimit {
		indicators = append(indicators, risk.Indicator{
			Name:        risk.IndicatorHighQuantityCumulative,
			Score:       d.cfg.CumulativeBase + math.Min(float64(totalQuantity), d.cfg.CumulativeCap),
			Description: fmt.Sprintf("Attempted to purchase %d total tickets", totalQuantity),
			Evidence: map[string]interface{}{
				"total_quantity": totalQuantity,
				"unique_events":  len(uniqueEvents),
			},
		})
	}
	return indicators, nil
}
