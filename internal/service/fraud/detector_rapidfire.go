package fraud

import (
	"context"
	"fmt"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// rapidFireDetector flags sessions that act faster than a person
// browsing a ticket page. Two tiers: rapid (automation-assisted) and
// superhuman (no human produces these gaps at all).
type rapidFireDetector struct {
	cfg RapidFireConfig
}

func newRapidFireDetector(cfg RapidFireConfig) *rapidFireDetector {
	return &rapidFireDetector{cfg: cfg}
}

func (d *rapidFireDetector) Name() string {
	return "rapid_fire"
}

func (d *rapidFireDetector) Evaluate(_ context.Context, snap *SessionSnapshot) ([]risk.Indicator, error) {
	gaps := snap.TimeGaps()
	if len(gaps) == 0 {
		return nil, nil
	}

	var (
		rapidCount      int
		superhumanCount int
		sum             float64
		minGap          = gaps[0]
	)
	for _, gap := range gaps {
		if gap < d.cfg.RapidGap {
			rapidCount++
		}
		if gap < d.cfg.SuperhumanGap {
			superhumanCount++
		}
		sum += gap
		if gap < minGap {
			minGap = gap
		}
	}

	var indicators []risk.Indicator
	if rapidCount > d.cfg.RapidCount {
		indicators = append(indicators, risk.Indicator{
			Name:        risk.IndicatorRapidFireClicks,
			Score:       d.cfg.RapidScore,
			Description: fmt.Sprintf("Detected %d rapid-fire actions (< %gs intervals)", rapidCount, d.cfg.RapidGap),
			Evidence: map[string]interface{}{
				"rapid_action_count": rapidCount,
				"avg_gap":            sum / float64(len(gaps)),
				"min_gap":            minGap,
			},
		})
	}
	if superhumanCount > d.cfg.SuperhumanCount {
		indicators = append(indicators, risk.Indicator{
			Name:        risk.IndicatorSuperhumanSpeed,
			Score:       d.cfg.SuperhumanScore,
			Description: fmt.Sprintf("Detected %d actions faster than humanly possible", superhumanCount),
			Evidence: map[string]interface{}{
				"superhuman_count": superhumanCount,
				"fastest_action":   minGap,
			},
		})
	}
	return indicators, nil
}
