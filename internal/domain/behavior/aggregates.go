package behavior

import "time"

// IPActivity summarizes distinct session and user fan-out seen from a
// single IP over a time window.
type IPActivity struct {
	IPAddress    string `json:"ip_address"`
	SessionCount int    `json:"session_count"`
	UserCount    int    `json:"user_count"`
}

// UserActivitySummary aggregates a user's historical behavior over a
// window. Consumed by the user-anomaly comparison.
type UserActivitySummary struct {
	UserID       string    `json:"user_id"`
	SessionCount int       `json:"session_count"`
	ActionCount  int       `json:"action_count"`
	AvgQuantity  float64   `json:"avg_quantity"`
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
}

// EventIPActivity is the per-IP aggregate for one event's recent actions:
// how many distinct users acted from the IP and how many tickets they
// touched. UserAgents carries the top agents seen, capped by the store.
type EventIPActivity struct {
	IPAddress     string   `json:"ip_address"`
	UniqueUsers   int      `json:"unique_users"`
	TotalQuantity int      `json:"total_quantity"`
	UserAgents    []string `json:"user_agents,omitempty"`
}

// EventAgentActivity is the per-user-agent aggregate for one event's
// recent actions: distinct source IPs and the summed ticket quantity
// across everything the agent touched.
type EventAgentActivity struct {
	UserAgent      string `json:"user_agent"`
	UniqueIPs      int    `json:"unique_ips"`
	TotalPurchases int    `json:"total_purchases"`
}
