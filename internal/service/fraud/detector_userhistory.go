package fraud

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// userHistoryDetector fetches the user's historical activity baseline,
// excluding the most recent day so the session under assessment cannot
// skew its own comparison. Deviation scoring is not wired up yet: the
// aggregates are retrieved and logged, and the detector contributes no
// indicators.
//
// TODO: score deviation from the baseline once weights are agreed with
// the trust team.
type userHistoryDetector struct {
	cfg    UserHistoryConfig
	store  BehaviorStore
	logger *zap.Logger
}

func newUserHistoryDetector(cfg UserHistoryConfig, store BehaviorStore, logger *zap.Logger) *userHistoryDetector {
	return &userHistoryDetector{cfg: cfg, store: store, logger: logger}
}

func (d *userHistoryDetector) Name() string {
	return "user_history"
}

func (d *userHistoryDetector) Evaluate(ctx context.Context, snap *SessionSnapshot) ([]risk.Indicator, error) {
	if snap.UserID == "" {
		return nil, nil
	}

	now := risk.Now()
	from := now.Add(-d.cfg.Window)
	to := now.Add(-d.cfg.Exclusion)
	summary, err := d.store.UserActivitySummary(ctx, snap.UserID, from, to)
	if err != nil {
		return nil, fmt.Errorf("user activity summary for %s: %w", snap.UserID, err)
	}
	if summary == nil {
		return nil, nil
	}

	d.logger.Debug("user history baseline",
		zap.String("user_id", snap.UserID),
		zap.Int("session_count", summary.SessionCount),
		zap.Int("action_count", summary.ActionCount),
		zap.Float64("avg_quantity", summary.AvgQuantity))
	return nil, nil
}
