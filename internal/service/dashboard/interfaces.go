// Package dashboard is the read side of the fraud pipeline: it rolls
// persisted assessments up into the operator threat view and answers
// per-session assessment lookups. It never writes assessments.
package dashboard

import (
	"context"
	"time"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// Service defines the threat reporting interface
type Service interface {
	// Threats aggregates the trailing window of persisted assessments
	// into the dashboard view. An empty window yields zeroed counts and
	// an empty timeline; a store outage is served from the last cached
	// snapshot when one exists.
	Threats(ctx context.Context) (*risk.ThreatDashboard, error)
	// LatestAssessment returns the most recent persisted assessment for
	// a session.
	LatestAssessment(ctx context.Context, sessionID string) (*risk.Assessment, error)
}

// AssessmentReader is the query surface the dashboard needs from the
// assessment store.
type AssessmentReader interface {
	// RecentAssessments returns assessments recorded at or after since,
	// newest first, capped at limit.
	RecentAssessments(ctx context.Context, since time.Time, limit int) ([]*risk.Assessment, error)
	LatestBySession(ctx context.Context, sessionID string) (*risk.Assessment, error)
}

// SnapshotCache holds the last built dashboard so a store outage
// degrades to stale data instead of a blank screen. May be nil.
type SnapshotCache interface {
	Snapshot(ctx context.Context) (*risk.ThreatDashboard, error)
	StoreSnapshot(ctx context.Context, dashboard *risk.ThreatDashboard) error
}

// AssessmentCache answers repeated per-session lookups without a store
// round trip. Latest returns nil with no error on a miss.
type AssessmentCache interface {
	Latest(ctx context.Context, sessionID string) (*risk.Assessment, error)
	StoreLatest(ctx context.Context, assessment *risk.Assessment) error
}

// MetricsRecorder receives dashboard read outcomes for instrumentation.
type MetricsRecorder interface {
	RecordDashboardCache(ctx context.Context, result string)
}
