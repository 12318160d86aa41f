package fraud

import (
	"context"
	"time"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/behavior"
	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// Service defines the fraud assessment engine interface
type Service interface {
	// AssessSession evaluates one session's recorded behavior and returns
	// a scored assessment. Store failures degrade the result instead of
	// erroring; only invalid input produces an error.
	AssessSession(ctx context.Context, sessionID, userID string) (*risk.Assessment, error)
	// DetectScalpingNetworks clusters recent activity on an event by
	// shared IP and shared user agent and flags coordinated buying.
	// A non-positive window selects the configured default.
	DetectScalpingNetworks(ctx context.Context, eventID string, window time.Duration) (*risk.ScalpingReport, error)
}

// BehaviorStore is the read side of the session store: ordered action
// history plus the aggregate shapes the detectors need.
type BehaviorStore interface {
	// SessionActions returns the session's recorded actions, oldest
	// first, capped by the store's configured history limit.
	SessionActions(ctx context.Context, sessionID string) ([]behavior.Action, error)
	// IPActivity returns distinct session/user counts seen from an IP
	// within the trailing window.
	IPActivity(ctx context.Context, ip string, window time.Duration) (*behavior.IPActivity, error)
	// UserActivitySummary aggregates a user's behavior between from and to.
	UserActivitySummary(ctx context.Context, userID string, from, to time.Time) (*behavior.UserActivitySummary, error)
	// EventActivityByIP returns per-IP aggregates for one event since the
	// given instant.
	EventActivityByIP(ctx context.Context, eventID string, since time.Time) ([]behavior.EventIPActivity, error)
	// EventActivityByAgent returns per-user-agent aggregates for one
	// event since the given instant.
	EventActivityByAgent(ctx context.Context, eventID string, since time.Time) ([]behavior.EventAgentActivity, error)
}

// AssessmentStore is the write side for completed assessments. Writes
// happen off the scoring path and are best-effort.
type AssessmentStore interface {
	Insert(ctx context.Context, assessment *risk.Assessment) error
}

// AssessmentPublisher receives flagged assessments for live delivery.
// Implementations must not block; slow consumers are their problem.
type AssessmentPublisher interface {
	PublishAssessment(assessment *risk.Assessment)
}

// MetricsRecorder receives engine outcomes for instrumentation.
type MetricsRecorder interface {
	RecordAssessment(ctx context.Context, level string, score float64, duration time.Duration)
	RecordIndicator(ctx context.Context, name string)
	RecordScalpingScan(ctx context.Context, level string, networks int)
	RecordStoreError(ctx context.Context, store string)
}
