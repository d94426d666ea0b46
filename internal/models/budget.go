package models

import "time"

// DateLayout is the wire format for calendar dates. last_reset_date is a
// calendar date in UTC, never a datetime, so daily resets compare whole days.
const DateLayout = "2006-01-02"

// AgentBudget is the mutable financial state for one agent. All monetary
// fields are integer minor-currency units (cents); floating point never
// represents a balance or limit.
//
// Invariant: CurrentBalance == TotalEarned - TotalSpent after every mutation.
type AgentBudget struct {
	AgentID           string    `json:"agent_id" db:"agent_id"`
	CurrentBalance    int64     `json:"current_balance" db:"current_balance"`
	TotalEarned       int64     `json:"total_earned" db:"total_earned"`
	TotalSpent        int64     `json:"total_spent" db:"total_spent"`
	DailySpent        int64     `json:"daily_spent" db:"daily_spent"`
	DailyLimit        int64     `json:"daily_limit" db:"daily_limit"`
	PerActionLimit    int64     `json:"per_action_limit" db:"per_action_limit"`
	LastResetDate     string    `json:"last_reset_date" db:"last_reset_date"`
	IsFrozen          bool      `json:"is_frozen" db:"is_frozen"`
	PerformanceScore  float64   `json:"performance_score" db:"performance_score"`
	TotalTransactions int64     `json:"total_transactions" db:"total_transactions"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// CheckResult is the structured outcome of a spend authorization. Rejections
// are results, not errors, so the orchestrator's tool-execution path can
// branch on Approved without exception handling.
type CheckResult struct {
	Approved            bool   `json:"approved"`
	Reason              string `json:"reason,omitempty"`
	AgentID             string `json:"agent_id"`
	RequestedCents      int64  `json:"requested_cents"`
	CurrentBalance      int64  `json:"current_balance,omitempty"`
	DailySpent          int64  `json:"daily_spent,omitempty"`
	DailyLimit          int64  `json:"daily_limit,omitempty"`
	PerActionLimit      int64  `json:"per_action_limit,omitempty"`
	ProjectedBalance    int64  `json:"projected_balance,omitempty"`
	ProjectedDailySpent int64  `json:"projected_daily_spent,omitempty"`
}
