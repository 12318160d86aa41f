package risk

import "encoding/json"

// Level is the discretized bucket derived from summed indicator scores.
// Unknown only appears on degraded scalping reports where the backing
// store could not be read.
type Level int

const (
	LevelUnknown Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "LOW"
	case LevelMedium:
		return "MEDIUM"
	case LevelHigh:
		return "HIGH"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func ParseLevel(s string) Level {
	switch s {
	case "LOW":
		return LevelLow
	case "MEDIUM":
		return LevelMedium
	case "HIGH":
		return LevelHigh
	case "CRITICAL":
		return LevelCritical
	default:
		return LevelUnknown
	}
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = ParseLevel(s)
	return nil
}

// RecommendedAction is the terminal disposition derived from a risk
// level. ActionAllow is reserved for the zero-action floor and is never
// produced by threshold mapping.
type RecommendedAction int

const (
	ActionMonitor RecommendedAction = iota
	ActionAddFriction
	ActionRequireVerification
	ActionBlockImmediately
	ActionAllow
)

func (a RecommendedAction) String() string {
	switch a {
	case ActionAddFriction:
		return "ADD_FRICTION"
	case ActionRequireVerification:
		return "REQUIRE_VERIFICATION"
	case ActionBlockImmediately:
		return "BLOCK_IMMEDIATELY"
	case ActionAllow:
		return "ALLOW"
	default:
		return "MONITOR"
	}
}

func ParseRecommendedAction(s string) RecommendedAction {
	switch s {
	case "ADD_FRICTION":
		return ActionAddFriction
	case "REQUIRE_VERIFICATION":
		return ActionRequireVerification
	case "BLOCK_IMMEDIATELY":
		return ActionBlockImmediately
	case "ALLOW":
		return ActionAllow
	default:
		return ActionMonitor
	}
}

func (a RecommendedAction) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *RecommendedAction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = ParseRecommendedAction(s)
	return nil
}

// Thresholds are the inclusive lower bounds for assessment levels.
type Thresholds struct {
	Medium   float64 `json:"medium" koanf:"medium"`
	High     float64 `json:"high" koanf:"high"`
	Critical float64 `json:"critical" koanf:"critical"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Medium: 50, High: 75, Critical: 90}
}

// LevelForScore maps a total risk score to its level. Boundaries are
// inclusive at the lower edge: a score exactly at a threshold takes the
// higher level.
func LevelForScore(total float64, t Thresholds) Level {
	switch {
	case total >= t.Critical:
		return LevelCritical
	case total >= t.High:
		return LevelHigh
	case total >= t.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// ActionForLevel maps a risk level to its disposition.
func ActionForLevel(level Level) RecommendedAction {
	switch level {
	case LevelCritical:
		return ActionBlockImmediately
	case LevelHigh:
		return ActionRequireVerification
	case LevelMedium:
		return ActionAddFriction
	default:
		return ActionMonitor
	}
}
