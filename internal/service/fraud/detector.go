package fraud

import (
	"context"
	"sort"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/behavior"
	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// Detector is one independent fraud check. Detectors read the snapshot,
// never mutate it, and may return zero, one, or several indicators.
// An error marks the detector degraded for this assessment; the others
// still count.
type Detector interface {
	Name() string
	Evaluate(ctx context.Context, snap *SessionSnapshot) ([]risk.Indicator, error)
}

// SessionSnapshot is the immutable view of one session the detectors
// share. Actions are sorted oldest first; actions whose timestamp could
// not be parsed sort ahead of the rest and are excluded from timing math.
type SessionSnapshot struct {
	SessionID string
	UserID    string
	Actions   []behavior.Action
}

func newSessionSnapshot(sessionID, userID string, actions []behavior.Action) *SessionSnapshot {
	sorted := make([]behavior.Action, len(actions))
	copy(sorted, actions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return &SessionSnapshot{
		SessionID: sessionID,
		UserID:    userID,
		Actions:   sorted,
	}
}

// TimedActions returns the actions that carry a usable timestamp,
// preserving chronological order.
func (s *SessionSnapshot) TimedActions() []behavior.Action {
	timed := make([]behavior.Action, 0, len(s.Actions))
	for _, a := range s.Actions {
		if a.HasTimestamp() {
			timed = append(timed, a)
		}
	}
	return timed
}

// TimeGaps returns the successive inter-action gaps in seconds over the
// timestamped actions. Fewer than two timestamped actions yield no gaps.
// Each caller gets a fresh slice.
func (s *SessionSnapshot) TimeGaps() []float64 {
	timed := s.TimedActions()
	if len(timed) < 2 {
		return nil
	}
	gaps := make([]float64, 0, len(timed)-1)
	for i := 1; i < len(timed); i++ {
		gaps = append(gaps, timed[i].Timestamp.Sub(timed[i-1].Timestamp).Seconds())
	}
	return gaps
}

// FirstIP returns the IP of the session's first recorded action, or ""
// when the session carries none.
func (s *SessionSnapshot) FirstIP() string {
	if len(s.Actions) == 0 {
		return ""
	}
	return s.Actions[0].IPAddress
}
