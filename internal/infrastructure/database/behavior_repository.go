package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/behavior"
	"github.com/seatshield/ticket-fraud-backend/internal/domain/errors"
)

const (
	defaultMaxSessionActions = 100
	eventIPGroupLimit        = 100
	eventAgentGroupLimit     = 50
)

// BehaviorRepository reads recorded session actions and their aggregates
// from PostgreSQL. It implements the fraud service's BehaviorStore.
//
// Actions are written by the ingestion pipeline; this repository is
// read-only and must stay cheap enough to sit on the assessment path.
type BehaviorRepository struct {
	db                *pgxpool.Pool
	maxSessionActions int
}

// NewBehaviorRepository creates a PostgreSQL behavior store.
// maxSessionActions bounds how much history one assessment reads;
// values <= 0 select the default.
func NewBehaviorRepository(db *pgxpool.Pool, maxSessionActions int) *BehaviorRepository {
	if maxSessionActions <= 0 {
		maxSessionActions = defaultMaxSessionActions
	}
	return &BehaviorRepository{db: db, maxSessionActions: maxSessionActions}
}

// SessionActions returns the most recent actions for a session in
// chronological order. Actions whose timestamp could not be parsed at
// ingest are stored with a NULL occurred_at and surface first with a
// zero Timestamp.
func (r *BehaviorRepository) SessionActions(ctx context.Context, sessionID string) ([]behavior.Action, error) {
	rows, err := r.db.Query(ctx, `
		SELECT session_id, user_id, action_type, occurred_at,
		       event_id, quantity, price, ip_address, user_agent
		FROM behavior_actions
		WHERE session_id = $1
		ORDER BY occurred_at DESC NULLS LAST, id DESC
		LIMIT $2
	`, sessionID, r.maxSessionActions)
	if err != nil {
		return nil, errors.NewInternalError("failed to query session actions").WithCause(err)
	}
	defer rows.Close()

	var actions []behavior.Action
	for rows.Next() {
		var (
			a          behavior.Action
			actionType string
			userID     sql.NullString
			occurredAt sql.NullTime
			eventID    sql.NullString
			price      decimal.NullDecimal
			ipAddress  sql.NullString
			userAgent  sql.NullString
		)
		err := rows.Scan(&a.SessionID, &userID, &actionType, &occurredAt,
			&eventID, &a.Quantity, &price, &ipAddress, &userAgent)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan session action").WithCause(err)
		}

		a.Type = behavior.ParseActionType(actionType)
		a.UserID = userID.String
		a.EventID = eventID.String
		a.IPAddress = ipAddress.String
		a.UserAgent = userAgent.String
		if occurredAt.Valid {
			a.Timestamp = occurredAt.Time
		}
		if price.Valid {
			a.Price = price.Decimal
		}

		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to read session actions").WithCause(err)
	}

	// Newest-first read with LIMIT keeps the window bounded; callers
	// want oldest-first.
	for i, j := 0, len(actions)-1; i < j; i, j = i+1, j-1 {
		actions[i], actions[j] = actions[j], actions[i]
	}

	return actions, nil
}

// IPActivity counts distinct sessions and users seen from an IP within
// the trailing window.
func (r *BehaviorRepository) IPActivity(ctx context.Context, ip string, window time.Duration) (*behavior.IPActivity, error) {
	since := time.Now().UTC().Add(-window)

	activity := &behavior.IPActivity{IPAddress: ip}
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(DISTINCT session_id),
		       COUNT(DISTINCT user_id) FILTER (WHERE user_id IS NOT NULL AND user_id <> '')
		FROM behavior_actions
		WHERE ip_address = $1 AND occurred_at >= $2
	`, ip, since).Scan(&activity.SessionCount, &activity.UserCount)
	if err != nil {
		return nil, errors.NewInternalError("failed to aggregate ip activity").WithCause(err)
	}

	return activity, nil
}

// UserActivitySummary aggregates a user's recorded behavior between from
// and to. Average quantity only considers add_to_cart actions.
func (r *BehaviorRepository) UserActivitySummary(ctx context.Context, userID string, from, to time.Time) (*behavior.UserActivitySummary, error) {
	summary := &behavior.UserActivitySummary{UserID: userID, From: from, To: to}
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(DISTINCT session_id),
		       COUNT(*),
		       COALESCE(AVG(quantity) FILTER (WHERE action_type = 'add_to_cart'), 0)
		FROM behavior_actions
		WHERE user_id = $1 AND occurred_at >= $2 AND occurred_at < $3
	`, userID, from, to).Scan(&summary.SessionCount, &summary.ActionCount, &summary.AvgQuantity)
	if err != nil {
		return nil, errors.NewInternalError("failed to aggregate user activity").WithCause(err)
	}

	return summary, nil
}

// EventActivityByIP groups an event's recent actions by source IP. Groups
// are ordered by ticket volume so the heaviest candidates survive the
// group limit. Up to five distinct user agents are sampled per IP.
func (r *BehaviorRepository) EventActivityByIP(ctx context.Context, eventID string, since time.Time) ([]behavior.EventIPActivity, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ip_address,
		       COUNT(DISTINCT user_id) FILTER (WHERE user_id IS NOT NULL AND user_id <> ''),
		       COALESCE(SUM(quantity), 0),
		       COALESCE((array_remove(array_agg(DISTINCT user_agent), NULL))[1:5], '{}')
		FROM behavior_actions
		WHERE event_id = $1 AND occurred_at >= $2
		  AND ip_address IS NOT NULL AND ip_address <> ''
		GROUP BY ip_address
		ORDER BY COALESCE(SUM(quantity), 0) DESC, ip_address
		LIMIT $3
	`, eventID, since, eventIPGroupLimit)
	if err != nil {
		return nil, errors.NewInternalError("failed to aggregate event activity by ip").WithCause(err)
	}
	defer rows.Close()

	var groups []behavior.EventIPActivity
	for rows.Next() {
		var g behavior.EventIPActivity
		if err := rows.Scan(&g.IPAddress, &g.UniqueUsers, &g.TotalQuantity, &g.UserAgents); err != nil {
			return nil, errors.NewInternalError("failed to scan ip activity group").WithCause(err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to read ip activity groups").WithCause(err)
	}

	return groups, nil
}

// EventActivityByAgent groups an event's recent actions by user agent
// string, ordered by summed ticket quantity.
func (r *BehaviorRepository) EventActivityByAgent(ctx context.Context, eventID string, since time.Time) ([]behavior.EventAgentActivity, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_agent,
		       COUNT(DISTINCT ip_address) FILTER (WHERE ip_address IS NOT NULL AND ip_address <> ''),
		       COALESCE(SUM(quantity), 0)
		FROM behavior_actions
		WHERE event_id = $1 AND occurred_at >= $2
		  AND user_agent IS NOT NULL AND user_agent <> ''
		GROUP BY user_agent
		ORDER BY COALESCE(SUM(quantity), 0) DESC, user_agent
		LIMIT $3
	`, eventID, since, eventAgentGroupLimit)
	if err != nil {
		return nil, errors.NewInternalError("failed to aggregate event activity by agent").WithCause(err)
	}
	defer rows.Close()

	var groups []behavior.EventAgentActivity
	for rows.Next() {
		var g behavior.EventAgentActivity
		if err := rows.Scan(&g.UserAgent, &g.UniqueIPs, &g.TotalPurchases); err != nil {
			return nil, errors.NewInternalError("failed to scan agent activity group").WithCause(err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to read agent activity groups").WithCause(err)
	}

	return groups, nil
}
