package fraud

import (
	"context"
	"fmt"
	"math"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// ipActivityDetector checks how many distinct sessions the session's
// first recorded IP has opened recently. Shared NATs score some
// baseline sessions; ticket bots rotating sessions behind one address
// blow well past the limit.
type ipActivityDetector struct {
	cfg   IPActivityConfig
	store BehaviorStore
}

func newIPActivityDetector(cfg IPActivityConfig, store BehaviorStore) *ipActivityDetector {
	return &ipActivityDetector{cfg: cfg, store: store}
}

func (d *ipActivityDetector) Name() string {
	return "ip_activity"
}

func (d *ipActivityDetector) Evaluate(ctx context.Context, snap *SessionSnapshot) ([]risk.Indicator, error) {
	ip := snap.FirstIP()
	if ip == "" {
		return nil, nil
	}

	activity, err := d.store.IPActivity(ctx, ip, d.cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("ip activity lookup for %s: %w", ip, err)
	}
	if activity == nil || activity.SessionCount <= d.cfg.SessionLimit {
		return nil, nil
	}

	return []risk.Indicator{{
		Name:        risk.IndicatorHighIPActivity,
		Score:       d.cfg.Base + math.Min(float64(activity.SessionCount)*d.cfg.PerSession, d.cfg.Cap),
		Description: fmt.Sprintf("High activity from IP: %d sessions in %v", activity.SessionCount, d.cfg.Window),
		Evidence: map[string]interface{}{
			"ip_address":    ip,
			"session_count": activity.SessionCount,
			"user_count":    activity.UserCount,
		},
	}}, nil
}
