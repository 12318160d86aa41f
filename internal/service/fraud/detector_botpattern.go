package fraud

import (
	"context"
	"fmt"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// botPatternDetector looks for automation signatures: metronomic
// inter-action timing, and sessions missing the incidental actions
// organic browsing always produces.
type botPatternDetector struct {
	cfg BotPatternConfig
}

func newBotPatternDetector(cfg BotPatternConfig) *botPatternDetector {
	return &botPatternDetector{cfg: cfg}
}

func (d *botPatternDetector) Name() string {
	return "bot_pattern"
}

func (d *botPatternDetector) Evaluate(_ context.Context, snap *SessionSnapshot) ([]risk.Indicator, error) {
	var indicators []risk.Indicator

	gaps := snap.TimeGaps()
	if len(gaps) > d.cfg.TimingMinGaps {
		mean, variance := meanAndVariance(gaps)
		if variance < d.cfg.TimingMaxVariance && mean < d.cfg.TimingMaxMean {
			indicators = append(indicators, risk.Indicator{
				Name:        risk.IndicatorConsistentTimingPattern,
				Score:       d.cfg.TimingScore,
				Description: "Suspiciously consistent timing between actions",
				Evidence: map[string]interface{}{
					"avg_gap":      mean,
					"variance":     variance,
					"action_count": len(snap.Actions),
				},
			})
		}
	}

	if len(snap.Actions) > d.cfg.MissingMinActions {
		observed := make(map[string]struct{})
		var present []string
		for _, a := range snap.Actions {
			name := a.Type.String()
			if _, ok := observed[name]; ok {
				continue
			}
			observed[name] = struct{}{}
			present = append(present, name)
		}
		var missing []string
		for _, want := range d.cfg.HumanBehaviors {
			if _, ok := observed[want]; !ok {
				missing = append(missing, want)
			}
		}
		if len(missing) >= d.cfg.MissingMin {
			indicators = append(indicators, risk.Indicator{
				Name:        risk.IndicatorMissingHumanBehaviors,
				Score:       d.cfg.MissingScore,
				Description: fmt.Sprintf("Missing typical human behaviors: %d of %d absent", len(missing), len(d.cfg.HumanBehaviors)),
				Evidence: map[string]interface{}{
					"missing_behaviors": missing,
					"present_behaviors": present,
				},
			})
		}
	}

	return indicators, nil
}

// meanAndVariance returns the arithmetic mean and the population
// variance of the gaps.
func meanAndVariance(gaps []float64) (float64, float64) {
	var sum float64
	for _, g := range gaps {
		sum += g
	}
	mean := sum / float64(len(gaps))
	var sq float64
	for _, g := range gaps {
		d := g - mean
		sq += d * d
	}
	return mean, sq / float64(len(gaps))
}
