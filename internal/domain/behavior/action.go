// Package behavior holds the immutable user-interaction facts the fraud
// engine consumes. Actions are owned by the session store; this package
// never mutates them.
package behavior

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ActionType classifies a single recorded user interaction. Beyond the
// purchase-funnel types, stores may record passive interaction types
// (scroll, hover, ...) which only matter to behavioral detectors.
type ActionType int

const (
	ActionTypeUnknown ActionType = iota
	ActionTypeSearch
	ActionTypeView
	ActionTypeAddToCart
	ActionTypeRemoveFromCart
	ActionTypePurchase
	ActionTypeScroll
	ActionTypeHover
	ActionTypeBackButton
	ActionTypePageRefresh
)

func (t ActionType) String() string {
	switch t {
	case ActionTypeSearch:
		return "search"
	case ActionTypeView:
		return "view"
	case ActionTypeAddToCart:
		return "add_to_cart"
	case ActionTypeRemoveFromCart:
		return "remove_from_cart"
	case ActionTypePurchase:
		return "purchase"
	case ActionTypeScroll:
		return "scroll"
	case ActionTypeHover:
		return "hover"
	case ActionTypeBackButton:
		return "back_button"
	case ActionTypePageRefresh:
		return "page_refresh"
	default:
		return "unknown"
	}
}

// ParseActionType maps a stored type string to its enum value. Unrecognized
// strings map to ActionTypeUnknown rather than erroring; the store is free
// to record interaction types this engine does not score.
func ParseActionType(s string) ActionType {
	switch s {
	case "search":
		return ActionTypeSearch
	case "view":
		return ActionTypeView
	case "add_to_cart":
		return ActionTypeAddToCart
	case "remove_from_cart":
		return ActionTypeRemoveFromCart
	case "purchase":
		return ActionTypePurchase
	case "scroll":
		return ActionTypeScroll
	case "hover":
		return ActionTypeHover
	case "back_button":
		return ActionTypeBackButton
	case "page_refresh":
		return ActionTypePageRefresh
	default:
		return ActionTypeUnknown
	}
}

func (t ActionType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *ActionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = ParseActionType(s)
	return nil
}

// Action is one recorded user interaction within a session.
type Action struct {
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id,omitempty"`
	Type      ActionType      `json:"action_type"`
	Timestamp time.Time       `json:"timestamp"`
	EventID   string          `json:"event_id,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price,omitempty"`
	IPAddress string          `json:"ip_address,omitempty"`
	UserAgent string          `json:"user_agent,omitempty"`
}

// HasTimestamp reports whether the action carries a usable timestamp.
// Actions whose recorded timestamp could not be parsed arrive with the
// zero value and are skipped by gap-based detectors only.
func (a Action) HasTimestamp() bool {
	return !a.Timestamp.IsZero()
}
