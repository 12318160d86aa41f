package risk

import "time"

// ThreatDashboard is the rolled-up view of recently persisted
// assessments. It is a pure read-side report: an empty window produces
// zeroed counts and an empty timeline, never an error.
type ThreatDashboard struct {
	CurrentThreatLevel Level            `json:"current_threat_level"`
	CountsByLevel      map[string]int   `json:"counts_by_level"`
	ActiveThreats      ActiveThreats    `json:"active_threats"`
	BlockedIPs         int              `json:"blocked_ips"`
	ThreatTimeline     []TimelineBucket `json:"threat_timeline"`
	GeneratedAt        time.Time        `json:"generated_at"`
}

// ActiveThreats summarizes flagged (HIGH/CRITICAL) assessments in the
// window, broken down by the indicators that fired on them.
type ActiveThreats struct {
	TotalFlagged int              `json:"total_flagged"`
	ByType       []IndicatorCount `json:"by_type"`
}

// IndicatorCount pairs an indicator name with how many times it fired
// across flagged assessments.
type IndicatorCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// TimelineBucket is one fixed-width slice of the dashboard window.
type TimelineBucket struct {
	Timestamp      time.Time `json:"timestamp"`
	TotalEvents    int       `json:"total_events"`
	HighRiskEvents int       `json:"high_risk_events"`
}
