package fixtures

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/behavior"
)

// ActionBuilder builds recorded session actions for tests
type ActionBuilder struct {
	t      *testing.T
	action behavior.Action
}

// NewActionBuilder creates a new ActionBuilder with defaults
func NewActionBuilder(t *testing.T) *ActionBuilder {
	t.Helper()

	return &ActionBuilder{
		t: t,
		action: behavior.Action{
			SessionID: "sess-test",
			Type:      behavior.ActionTypeView,
			Timestamp: time.Now().UTC().Truncate(time.Millisecond),
			Quantity:  1,
			IPAddress: "203.0.113.7",
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64)",
		},
	}
}

// WithSession sets the session ID
func (b *ActionBuilder) WithSession(sessionID string) *ActionBuilder {
	b.action.SessionID = sessionID
	return b
}

// WithUser sets the user ID
func (b *ActionBuilder) WithUser(userID string) *ActionBuilder {
	b.action.UserID = userID
	return b
}

// WithType sets the action type
func (b *ActionBuilder) WithType(t behavior.ActionType) *ActionBuilder {
	b.action.Type = t
	return b
}

// WithTimestamp sets when the action occurred
func (b *ActionBuilder) WithTimestamp(at time.Time) *ActionBuilder {
	b.action.Timestamp = at
	return b
}

// WithoutTimestamp clears the timestamp, modeling an action whose
// recorded time failed to parse at ingest
func (b *ActionBuilder) WithoutTimestamp() *ActionBuilder {
	b.action.Timestamp = time.Time{}
	return b
}

// WithEvent sets the target event ID
func (b *ActionBuilder) WithEvent(eventID string) *ActionBuilder {
	b.action.EventID = eventID
	return b
}

// WithQuantity sets the ticket quantity
func (b *ActionBuilder) WithQuantity(quantity int) *ActionBuilder {
	b.action.Quantity = quantity
	return b
}

// WithPrice sets the ticket price
func (b *ActionBuilder) WithPrice(price string) *ActionBuilder {
	b.t.Helper()
	d, err := decimal.NewFromString(price)
	require.NoError(b.t, err)
	b.action.Price = d
	return b
}

// WithIP sets the source IP address
func (b *ActionBuilder) WithIP(ip string) *ActionBuilder {
	b.action.IPAddress = ip
	return b
}

// WithUserAgent sets the user agent string
func (b *ActionBuilder) WithUserAgent(agent string) *ActionBuilder {
	b.action.UserAgent = agent
	return b
}

// Build returns the action
func (b *ActionBuilder) Build() behavior.Action {
	return b.action
}

// InsertAction seeds one recorded action. Empty optional fields are
// stored as NULL the way the ingestion pipeline stores them.
func InsertAction(t *testing.T, db *sql.DB, a behavior.Action) {
	t.Helper()

	var occurredAt interface{}
	if a.HasTimestamp() {
		occurredAt = a.Timestamp
	}

	var price interface{}
	if !a.Price.IsZero() {
		price = a.Price.String()
	}

	_, err := db.Exec(`
		INSERT INTO behavior_actions (
			session_id, user_id, action_type, occurred_at, event_id,
			quantity, price, ip_address, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.SessionID, nullString(a.UserID), a.Type.String(), occurredAt,
		nullString(a.EventID), a.Quantity, price,
		nullString(a.IPAddress), nullString(a.UserAgent))
	require.NoError(t, err)
}

// InsertActions seeds recorded actions in order
func InsertActions(t *testing.T, db *sql.DB, actions ...behavior.Action) {
	t.Helper()
	for _, a := range actions {
		InsertAction(t, db, a)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
