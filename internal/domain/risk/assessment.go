// Package risk holds the fraud-assessment domain model: scored
// indicators, per-session assessments, scalping networks, and the
// threat-dashboard shapes built from persisted assessments.
package risk

import (
	"time"

	"github.com/google/uuid"
)

// Stable indicator identifiers. Evidence keys and scoring live with the
// detectors; these names are the contract with storage and dashboards.
const (
	IndicatorRapidFireClicks         = "rapid_fire_clicks"
	IndicatorSuperhumanSpeed         = "superhuman_speed"
	IndicatorHighQuantitySingle      = "high_quantity_single"
	IndicatorHighQuantityCumulative  = "high_quantity_cumulative"
	IndicatorMultipleEventTargeting  = "multiple_event_targeting"
	IndicatorConsistentTimingPattern = "consistent_timing_pattern"
	IndicatorMissingHumanBehaviors   = "missing_human_behaviors"
	IndicatorHighIPActivity          = "high_ip_activity"
)

// Indicator is a single scored signal of suspicious behavior. Produced
// fresh per assessment and never mutated afterward.
type Indicator struct {
	Name        string                 `json:"indicator"`
	Score       float64                `json:"score"`
	Description string                 `json:"description"`
	Evidence    map[string]interface{} `json:"evidence,omitempty"`
}

// Assessment is the immutable result of one risk evaluation of a
// session. TotalRiskScore is the exact sum of indicator scores with no
// clamping; RiskLevel and RecommendedAction derive from it.
type Assessment struct {
	ID                uuid.UUID         `json:"id"`
	SessionID         string            `json:"session_id"`
	UserID            string            `json:"user_id,omitempty"`
	TotalRiskScore    float64           `json:"total_risk_score"`
	RiskLevel         Level             `json:"risk_level"`
	Indicators        []Indicator       `json:"risk_indicators"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
	IPAddress         string            `json:"ip_address,omitempty"`
	Degraded          bool              `json:"degraded,omitempty"`
	DegradeReason     string            `json:"degrade_reason,omitempty"`
	AssessedAt        time.Time         `json:"timestamp"`
}

// Flagged reports whether the assessment warrants operator attention.
// Flagged assessments feed the dashboard breakdowns and the live feed.
func (a *Assessment) Flagged() bool {
	return a.RiskLevel == LevelHigh || a.RiskLevel == LevelCritical
}

// NewAssessment assembles an assessment from evaluated indicators.
func NewAssessment(sessionID, userID string, indicators []Indicator, t Thresholds) *Assessment {
	var total float64
	for _, ind := range indicators {
		total += ind.Score
	}

	level := LevelForScore(total, t)
	return &Assessment{
		ID:                uuid.New(),
		SessionID:         sessionID,
		UserID:            userID,
		TotalRiskScore:    total,
		RiskLevel:         level,
		Indicators:        indicators,
		RecommendedAction: ActionForLevel(level),
		AssessedAt:        clock.Now(),
	}
}

// NewNoDataAssessment is the defined floor for sessions with no recorded
// actions: LOW, score zero, and the ALLOW disposition reserved for this
// case alone.
func NewNoDataAssessment(sessionID, userID string) *Assessment {
	return &Assessment{
		ID:                uuid.New(),
		SessionID:         sessionID,
		UserID:            userID,
		TotalRiskScore:    0,
		RiskLevel:         LevelLow,
		Indicators:        []Indicator{},
		RecommendedAction: ActionAllow,
		AssessedAt:        clock.Now(),
	}
}

// NewDegradedAssessment marks an evaluation that could not run because
// the session store was unreachable. It scores LOW/MONITOR but carries
// the degrade marker so it is never mistaken for a genuinely quiet
// session.
func NewDegradedAssessment(sessionID, userID, reason string) *Assessment {
	return &Assessment{
		ID:                uuid.New(),
		SessionID:         sessionID,
		UserID:            userID,
		TotalRiskScore:    0,
		RiskLevel:         LevelLow,
		Indicators:        []Indicator{},
		RecommendedAction: ActionMonitor,
		AssessedAt:        clock.Now(),
		Degraded:          true,
		DegradeReason:     reason,
	}
}
