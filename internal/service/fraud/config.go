package fraud

import (
	"time"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// DetectionConfig carries every tunable the detectors and the scalping
// scan read. Scores and cutoffs live here rather than in the detectors
// so a deployment can retune them without touching detection code.
type DetectionConfig struct {
	RapidFire   RapidFireConfig
	Quantity    QuantityConfig
	Targeting   TargetingConfig
	BotPattern  BotPatternConfig
	IPActivity  IPActivityConfig
	UserHistory UserHistoryConfig
	Scalping    ScalpingConfig

	// Thresholds maps a summed risk score to a level.
	Thresholds risk.Thresholds

	// StoreTimeout bounds every store read issued during an assessment.
	StoreTimeout time.Duration
	// PersistTimeout bounds the background assessment write.
	PersistTimeout time.Duration
}

// RapidFireConfig tunes the action-speed checks.
type RapidFireConfig struct {
	// RapidGap is the inter-action gap, in seconds, under which an
	// action counts as rapid.
	RapidGap float64
	// RapidCount is the rapid-action count the session must exceed.
	RapidCount int
	RapidScore float64

	// SuperhumanGap catches gaps no human produces.
	SuperhumanGap   float64
	SuperhumanCount int
	SuperhumanScore float64
}

// QuantityConfig tunes the per-action and whole-session quantity checks.
type QuantityConfig struct {
	// SingleLimit is the per-action ticket count an add-to-cart must
	// exceed to flag.
	SingleLimit  int
	SingleBase   float64
	SingleFactor float64
	SingleCap    float64

	// CumulativeLimit is the summed ticket count the session must exceed.
	CumulativeLimit int
	CumulativeBase  float64
	CumulativeCap   float64
}

// TargetingConfig tunes the distinct-event spread check.
type TargetingConfig struct {
	// EventLimit is the distinct event count the session must exceed.
	EventLimit  int
	Base        float64
	PerEvent    float64
	Cap         float64
	// EvidenceMax caps how many event IDs the indicator carries.
	EvidenceMax int
}

// BotPatternConfig tunes the automation-signature checks.
type BotPatternConfig struct {
	// TimingMinGaps is the gap count the session must exceed before the
	// regularity check applies.
	TimingMinGaps     int
	TimingMaxVariance float64
	TimingMaxMean     float64
	TimingScore       float64

	// HumanBehaviors lists action types organic browsing produces.
	HumanBehaviors []string
	// MissingMin is how many of those must be absent to flag.
	MissingMin int
	// MissingMinActions is the session size the absence check requires.
	MissingMinActions int
	MissingScore      float64
}

// IPActivityConfig tunes the shared-IP session check.
type IPActivityConfig struct {
	// SessionLimit is the distinct session count the IP must exceed.
	SessionLimit int
	Window       time.Duration
	Base         float64
	PerSession   float64
	Cap          float64
}

// UserHistoryConfig frames the historical baseline read.
type UserHistoryConfig struct {
	// Window is how far back the baseline reaches.
	Window time.Duration
	// Exclusion trims the most recent span so the session under
	// assessment does not pollute its own baseline.
	Exclusion time.Duration
}

// ScalpingConfig tunes the coordinated-buying scan.
type ScalpingConfig struct {
	// DefaultWindow applies when the caller passes no window.
	DefaultWindow time.Duration

	// IPUserLimit and IPQuantityLimit gate the per-IP cluster: both the
	// distinct-user count and the summed quantity must exceed them.
	IPUserLimit     int
	IPQuantityLimit int
	IPDivisor       float64

	// AgentIPLimit and AgentPurchaseLimit gate the per-user-agent
	// cluster the same way.
	AgentIPLimit       int
	AgentPurchaseLimit int
	AgentDivisor       float64

	// ScoreCap bounds every network score.
	ScoreCap float64

	Thresholds risk.ScalpingThresholds
}

// DefaultDetectionConfig returns the production tuning.
func DefaultDetectionConfig() *DetectionConfig {
	return &DetectionConfig{
		RapidFire: RapidFireConfig{
			RapidGap:        2.0,
			RapidCount:      5,
			RapidScore:      30.0,
			SuperhumanGap:   0.5,
			SuperhumanCount: 3,
			SuperhumanScore: 50.0,
		},
		Quantity: QuantityConfig{
			SingleLimit:     10,
			SingleBase:      25.0,
			SingleFactor:    2.0,
			SingleCap:       50.0,
			CumulativeLimit: 20,
			CumulativeBase:  20.0,
			CumulativeCap:   60.0,
		},
		Targeting: TargetingConfig{
			EventLimit:  5,
			Base:        15.0,
			PerEvent:    3.0,
			Cap:         45.0,
			EvidenceMax: 10,
		},
		BotPattern: BotPatternConfig{
			TimingMinGaps:     5,
			TimingMaxVariance: 0.5,
			TimingMaxMean:     5.0,
			TimingScore:       35.0,
			HumanBehaviors:    []string{"scroll", "hover", "back_button", "page_refresh"},
			MissingMin:        3,
			MissingMinActions: 10,
			MissingScore:      25.0,
		},
		IPActivity: IPActivityConfig{
			SessionLimit: 10,
			Window:       time.Hour,
			Base:         20.0,
			PerSession:   2.0,
			Cap:          40.0,
		},
		UserHistory: UserHistoryConfig{
			Window:    30 * 24 * time.Hour,
			Exclusion: 24 * time.Hour,
		},
		Scalping: ScalpingConfig{
			DefaultWindow:      time.Hour,
			IPUserLimit:        3,
			IPQuantityLimit:    20,
			IPDivisor:          10.0,
			AgentIPLimit:       5,
			AgentPurchaseLimit: 15,
			AgentDivisor:       5.0,
			ScoreCap:           100.0,
			Thresholds:         risk.DefaultScalpingThresholds(),
		},
		Thresholds:     risk.DefaultThresholds(),
		StoreTimeout:   5 * time.Second,
		PersistTimeout: 10 * time.Second,
	}
}
