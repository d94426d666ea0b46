package models

import "time"

// AgentPerformance is one row in the analytics performer rankings.
type AgentPerformance struct {
	AgentID        string  `json:"agent_id"`
	Score          float64 `json:"score"`
	CurrentBalance int64   `json:"current_balance"`
}

// EconomicAnalytics is a derived, system-wide snapshot recomputed on demand
// from the live budget set. Never persisted as source of truth.
type EconomicAnalytics struct {
	TotalAgents       int                `json:"total_agents"`
	ActiveAgents      int                `json:"active_agents"`
	FrozenAgents      int                `json:"frozen_agents"`
	TotalBalance      int64              `json:"total_balance"`
	TotalEarned       int64              `json:"total_earned"`
	TotalSpent        int64              `json:"total_spent"`
	TotalTransactions int64              `json:"total_transactions"`
	SystemROI         float64            `json:"system_roi"`
	TopPerformers     []AgentPerformance `json:"top_performers"`
	PoorPerformers    []AgentPerformance `json:"poor_performers"`
	GeneratedAt       time.Time          `json:"generated_at"`
}

// ROIAdjustment reports the outcome of a performance review over a trailing
// window. Adjusted is false when the agent had no spending in the window
// (ROI undefined, no mutation) or the agent is unknown.
type ROIAdjustment struct {
	AgentID        string  `json:"agent_id"`
	PeriodDays     int     `json:"period_days"`
	EarnedCents    int64   `json:"earned_cents"`
	SpentCents     int64   `json:"spent_cents"`
	ROI            float64 `json:"roi"`
	Tier           string  `json:"tier"`
	Multiplier     float64 `json:"multiplier"`
	OldDailyLimit  int64   `json:"old_daily_limit,omitempty"`
	NewDailyLimit  int64   `json:"new_daily_limit,omitempty"`
	OldActionLimit int64   `json:"old_action_limit,omitempty"`
	NewActionLimit int64   `json:"new_action_limit,omitempty"`
	Adjusted       bool    `json:"adjusted"`
	Reason         string  `json:"reason,omitempty"`
}
