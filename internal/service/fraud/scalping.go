package fraud

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/behavior"
	"github.com/seatshield/ticket-fraud-backend/internal/domain/errors"
	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// DetectScalpingNetworks scans one event's recent activity for
// coordinated buying: many accounts funneling through one IP, or one
// automation fingerprint purchasing from many IPs. When the aggregates
// cannot be read the report comes back degraded with level UNKNOWN so
// operators never mistake a blind scan for a clean one.
func (s *service) DetectScalpingNetworks(ctx context.Context, eventID string, window time.Duration) (*risk.ScalpingReport, error) {
	if eventID == "" {
		return nil, errors.NewValidationError("INVALID_EVENT_ID", "event id is required")
	}
	if window <= 0 {
		window = s.cfg.Scalping.DefaultWindow
	}
	since := risk.Now().Add(-window)

	readCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	ipGroups, err := s.behaviorStore.EventActivityByIP(readCtx, eventID, since)
	if err != nil {
		s.logger.Error("scalping scan degraded: ip aggregates unavailable",
			zap.String("event_id", eventID),
			zap.Error(err))
		s.recordStoreError(ctx, "behavior")
		return s.degradedScalpingReport(ctx, eventID), nil
	}
	agentGroups, err := s.behaviorStore.EventActivityByAgent(readCtx, eventID, since)
	if err != nil {
		s.logger.Error("scalping scan degraded: user agent aggregates unavailable",
			zap.String("event_id", eventID),
			zap.Error(err))
		s.recordStoreError(ctx, "behavior")
		return s.degradedScalpingReport(ctx, eventID), nil
	}

	networks := s.ipNetworks(ipGroups)
	networks = append(networks, s.agentNetworks(agentGroups)...)

	report := risk.NewScalpingReport(eventID, networks, s.cfg.Scalping.Thresholds)
	if s.metrics != nil {
		s.metrics.RecordScalpingScan(ctx, report.RiskLevel.String(), report.TotalNetworks)
	}
	s.logger.Debug("scalping scan complete",
		zap.String("event_id", eventID),
		zap.Int("networks", report.TotalNetworks),
		zap.String("risk_level", report.RiskLevel.String()))
	return report, nil
}

func (s *service) degradedScalpingReport(ctx context.Context, eventID string) *risk.ScalpingReport {
	report := risk.NewDegradedScalpingReport(eventID)
	if s.metrics != nil {
		s.metrics.RecordScalpingScan(ctx, report.RiskLevel.String(), 0)
	}
	return report
}

// ipNetworks flags IPs where both the distinct-user count and the
// summed ticket quantity clear their limits. Score grows with the
// product of the two, capped.
func (s *service) ipNetworks(groups []behavior.EventIPActivity) []risk.ScalpingNetwork {
	cfg := s.cfg.Scalping
	var networks []risk.ScalpingNetwork
	for _, g := range groups {
		if g.UniqueUsers <= cfg.IPUserLimit || g.TotalQuantity <= cfg.IPQuantityLimit {
			continue
		}
		networks = append(networks, risk.ScalpingNetwork{
			Type:       risk.NetworkTypeIPBased,
			Identifier: g.IPAddress,
			RiskScore:  math.Min(float64(g.UniqueUsers)*float64(g.TotalQuantity)/cfg.IPDivisor, cfg.ScoreCap),
			Evidence: map[string]interface{}{
				"unique_users":   g.UniqueUsers,
				"total_quantity": g.TotalQuantity,
				"user_agents":    g.UserAgents,
			},
		})
	}
	return networks
}

// agentNetworks flags user agent strings purchasing through many IPs,
// the fingerprint of one tool driving a distributed pool.
func (s *service) agentNetworks(groups []behavior.EventAgentActivity) []risk.ScalpingNetwork {
	cfg := s.cfg.Scalping
	var networks []risk.ScalpingNetwork
	for _, g := range groups {
		if g.UniqueIPs <= cfg.AgentIPLimit || g.TotalPurchases <= cfg.AgentPurchaseLimit {
			continue
		}
		networks = append(networks, risk.ScalpingNetwork{
			Type:       risk.NetworkTypeUserAgentBased,
			Identifier: g.UserAgent,
			RiskScore:  math.Min(float64(g.UniqueIPs)*float64(g.TotalPurchases)/cfg.AgentDivisor, cfg.ScoreCap),
			Evidence: map[string]interface{}{
				"unique_ips":      g.UniqueIPs,
				"total_purchases": g.TotalPurchases,
			},
		})
	}
	return networks
}
