package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/errors"
	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// AssessmentRepository persists completed risk assessments and serves
// them back to the threat dashboard. It implements the fraud service's
// AssessmentStore and the dashboard's AssessmentReader.
type AssessmentRepository struct {
	db *pgxpool.Pool
}

// NewAssessmentRepository creates a PostgreSQL assessment repository.
func NewAssessmentRepository(db *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Insert stores one assessment. Assessments are immutable; there is no
// update path.
func (r *AssessmentRepository) Insert(ctx context.Context, assessment *risk.Assessment) error {
	indicators, err := json.Marshal(assessment.Indicators)
	if err != nil {
		return errors.NewInternalError("failed to marshal indicators").WithCause(err)
	}

	var userID sql.NullString
	if assessment.UserID != "" {
		userID = sql.NullString{String: assessment.UserID, Valid: true}
	}

	var ipAddress sql.NullString
	if assessment.IPAddress != "" {
		ipAddress = sql.NullString{String: assessment.IPAddress, Valid: true}
	}

	var degradeReason sql.NullString
	if assessment.DegradeReason != "" {
		degradeReason = sql.NullString{String: assessment.DegradeReason, Valid: true}
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO fraud_assessments (
			id, session_id, user_id, total_risk_score, risk_level,
			recommended_action, indicators, ip_address, flagged,
			degraded, degrade_reason, assessed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, assessment.ID, assessment.SessionID, userID, assessment.TotalRiskScore,
		assessment.RiskLevel.String(), assessment.RecommendedAction.String(),
		indicators, ipAddress, assessment.Flagged(),
		assessment.Degraded, degradeReason, assessment.AssessedAt)

	if err != nil {
		return errors.NewInternalError("failed to insert assessment").WithCause(err)
	}

	return nil
}

// RecentAssessments returns assessments taken at or after since, newest
// first, capped at limit.
func (r *AssessmentRepository) RecentAssessments(ctx context.Context, since time.Time, limit int) ([]*risk.Assessment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, user_id, total_risk_score, risk_level,
		       recommended_action, indicators, ip_address,
		       degraded, degrade_reason, assessed_at
		FROM fraud_assessments
		WHERE assessed_at >= $1
		ORDER BY assessed_at DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, errors.NewInternalError("failed to query recent assessments").WithCause(err)
	}
	defer rows.Close()

	var assessments []*risk.Assessment
	for rows.Next() {
		assessment, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, assessment)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to read recent assessments").WithCause(err)
	}

	return assessments, nil
}

// LatestBySession returns the most recent assessment for a session, or
// nil when the session has never been assessed.
func (r *AssessmentRepository) LatestBySession(ctx context.Context, sessionID string) (*risk.Assessment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, session_id, user_id, total_risk_score, risk_level,
		       recommended_action, indicators, ip_address,
		       degraded, degrade_reason, assessed_at
		FROM fraud_assessments
		WHERE session_id = $1
		ORDER BY assessed_at DESC
		LIMIT 1
	`, sessionID)

	assessment, err := scanAssessment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Not found, but not an error
		}
		return nil, err
	}

	return assessment, nil
}

func scanAssessment(row pgx.Row) (*risk.Assessment, error) {
	var (
		a             risk.Assessment
		userID        sql.NullString
		level         string
		action        string
		indicators    []byte
		ipAddress     sql.NullString
		degradeReason sql.NullString
	)

	err := row.Scan(&a.ID, &a.SessionID, &userID, &a.TotalRiskScore, &level,
		&action, &indicators, &ipAddress, &a.Degraded, &degradeReason, &a.AssessedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, errors.NewInternalError("failed to scan assessment").WithCause(err)
	}

	a.UserID = userID.String
	a.RiskLevel = risk.ParseLevel(level)
	a.RecommendedAction = risk.ParseRecommendedAction(action)
	a.IPAddress = ipAddress.String
	a.DegradeReason = degradeReason.String

	if err := json.Unmarshal(indicators, &a.Indicators); err != nil {
		return nil, errors.NewInternalError("failed to unmarshal indicators").WithCause(err)
	}

	return &a, nil
}
