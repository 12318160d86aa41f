package risk

import "encoding/json"

// NetworkType distinguishes how a scalping cluster was keyed.
type NetworkType int

const (
	NetworkTypeIPBased NetworkType = iota
	NetworkTypeUserAgentBased
)

func (t NetworkType) String() string {
	switch t {
	case NetworkTypeUserAgentBased:
		return "user_agent_based"
	default:
		return "ip_based"
	}
}

func (t NetworkType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *NetworkType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "user_agent_based" {
		*t = NetworkTypeUserAgentBased
	} else {
		*t = NetworkTypeIPBased
	}
	return nil
}

// ScalpingNetwork is one cluster of sessions sharing a network
// identifier (IP or device signature) that exceeded the
// coordinated-buying thresholds. RiskScore is capped at 100 by the
// detector.
type ScalpingNetwork struct {
	Type       NetworkType            `json:"type"`
	Identifier string                 `json:"identifier"`
	Evidence   map[string]interface{} `json:"evidence"`
	RiskScore  float64                `json:"risk_score"`
}

// ScalpingThresholds are the strict lower bounds for bucketing a
// detection run by its highest network score. Unlike assessment
// thresholds these are exclusive: a max score exactly at a bound stays
// in the lower bucket.
type ScalpingThresholds struct {
	Medium   float64 `json:"medium" koanf:"medium"`
	High     float64 `json:"high" koanf:"high"`
	Critical float64 `json:"critical" koanf:"critical"`
}

func DefaultScalpingThresholds() ScalpingThresholds {
	return ScalpingThresholds{Medium: 25, High: 50, Critical: 75}
}

// LevelForNetworkRisk buckets the maximum network score for a detection
// run. Strictly greater-than on every bound.
func LevelForNetworkRisk(max float64, t ScalpingThresholds) Level {
	switch {
	case max > t.Critical:
		return LevelCritical
	case max > t.High:
		return LevelHigh
	case max > t.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// ScalpingReport is the result of one scalping detection run against an
// event window.
type ScalpingReport struct {
	EventID        string            `json:"event_id"`
	Networks       []ScalpingNetwork `json:"networks_detected"`
	RiskLevel      Level             `json:"risk_level"`
	TotalNetworks  int               `json:"total_networks"`
	MaxNetworkRisk float64           `json:"max_network_risk"`
	Degraded       bool              `json:"degraded,omitempty"`
}

// NewScalpingReport assembles a report from detected networks. An empty
// network list yields LOW with a zero max score.
func NewScalpingReport(eventID string, networks []ScalpingNetwork, t ScalpingThresholds) *ScalpingReport {
	var max float64
	for _, n := range networks {
		if n.RiskScore > max {
			max = n.RiskScore
		}
	}

	if networks == nil {
		networks = []ScalpingNetwork{}
	}
	return &ScalpingReport{
		EventID:        eventID,
		Networks:       networks,
		RiskLevel:      LevelForNetworkRisk(max, t),
		TotalNetworks:  len(networks),
		MaxNetworkRisk: max,
	}
}

// NewDegradedScalpingReport is returned when the behavior store could
// not be read: no networks, level UNKNOWN, degrade marker set.
func NewDegradedScalpingReport(eventID string) *ScalpingReport {
	return &ScalpingReport{
		EventID:   eventID,
		Networks:  []ScalpingNetwork{},
		RiskLevel: LevelUnknown,
		Degraded:  true,
	}
}
