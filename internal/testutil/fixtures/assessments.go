package fixtures

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// AssessmentBuilder builds stored risk assessments for tests
type AssessmentBuilder struct {
	t          *testing.T
	assessment risk.Assessment
}

// NewAssessmentBuilder creates a new AssessmentBuilder with defaults
func NewAssessmentBuilder(t *testing.T) *AssessmentBuilder {
	t.Helper()

	return &AssessmentBuilder{
		t: t,
		assessment: risk.Assessment{
			ID:                uuid.New(),
			SessionID:         "sess-test",
			RiskLevel:         risk.LevelLow,
			RecommendedAction: risk.ActionMonitor,
			AssessedAt:        time.Now().UTC().Truncate(time.Millisecond),
		},
	}
}

// WithID sets the assessment ID
func (b *AssessmentBuilder) WithID(id uuid.UUID) *AssessmentBuilder {
	b.assessment.ID = id
	return b
}

// WithSession sets the session ID
func (b *AssessmentBuilder) WithSession(sessionID string) *AssessmentBuilder {
	b.assessment.SessionID = sessionID
	return b
}

// WithUser sets the user ID
func (b *AssessmentBuilder) WithUser(userID string) *AssessmentBuilder {
	b.assessment.UserID = userID
	return b
}

// WithScore sets the total risk score and derives level and action from
// the default thresholds
func (b *AssessmentBuilder) WithScore(score float64) *AssessmentBuilder {
	b.assessment.TotalRiskScore = score
	b.assessment.RiskLevel = risk.LevelForScore(score, risk.DefaultThresholds())
	b.assessment.RecommendedAction = risk.ActionForLevel(b.assessment.RiskLevel)
	return b
}

// WithIndicators sets the triggered indicators
func (b *AssessmentBuilder) WithIndicators(indicators ...risk.Indicator) *AssessmentBuilder {
	b.assessment.Indicators = indicators
	return b
}

// WithIP sets the session's first recorded IP
func (b *AssessmentBuilder) WithIP(ip string) *AssessmentBuilder {
	b.assessment.IPAddress = ip
	return b
}

// WithAssessedAt sets when the assessment was taken
func (b *AssessmentBuilder) WithAssessedAt(at time.Time) *AssessmentBuilder {
	b.assessment.AssessedAt = at
	return b
}

// WithDegraded marks the assessment as degraded
func (b *AssessmentBuilder) WithDegraded(reason string) *AssessmentBuilder {
	b.assessment.Degraded = true
	b.assessment.DegradeReason = reason
	return b
}

// Build returns the assessment
func (b *AssessmentBuilder) Build() *risk.Assessment {
	a := b.assessment
	return &a
}

// InsertAssessment seeds one stored assessment
func InsertAssessment(t *testing.T, db *sql.DB, a *risk.Assessment) {
	t.Helper()

	indicators, err := json.Marshal(a.Indicators)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO fraud_assessments (
			id, session_id, user_id, total_risk_score, risk_level,
			recommended_action, indicators, ip_address, flagged,
			degraded, degrade_reason, assessed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, a.ID, a.SessionID, nullString(a.UserID), a.TotalRiskScore,
		a.RiskLevel.String(), a.RecommendedAction.String(), indicators,
		nullString(a.IPAddress), a.Flagged(), a.Degraded,
		nullString(a.DegradeReason), a.AssessedAt)
	require.NoError(t, err)
}
