package models

import "time"

// TransactionType categorizes an economic event.
type TransactionType string

const (
	TypeSeedFunding     TransactionType = "SEED_FUNDING"
	TypeEarning         TransactionType = "EARNING"
	TypeSpending        TransactionType = "SPENDING"
	TypeROIAdjustment   TransactionType = "ROI_ADJUSTMENT"
	TypePenalty         TransactionType = "PENALTY"
	TypeRefund          TransactionType = "REFUND"
	TypeEmergencyFreeze TransactionType = "EMERGENCY_FREEZE"
	TypeLimitAdjustment TransactionType = "LIMIT_ADJUSTMENT"
)

// ROIData is the optional attribution payload for a transaction: the
// revenue/cost of the action that generated it.
type ROIData struct {
	RevenueCents int64   `json:"revenue_cents"`
	CostCents    int64   `json:"cost_cents"`
	ROIPercent   float64 `json:"roi_percent"`
}

// Transaction is one immutable ledger record. AmountCents is signed:
// positive credits the agent, negative debits it.
//
// Invariant: BalanceAfter == BalanceBefore + AmountCents.
type Transaction struct {
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	AgentID       string          `json:"agent_id" db:"agent_id"`
	AmountCents   int64           `json:"amount_cents" db:"amount_cents"`
	Type          TransactionType `json:"transaction_type" db:"transaction_type"`
	Description   string          `json:"description" db:"description"`
	BalanceBefore int64           `json:"balance_before" db:"balance_before"`
	BalanceAfter  int64           `json:"balance_after" db:"balance_after"`
	ROIData       *ROIData        `json:"roi_data,omitempty" db:"-"`
	Timestamp     time.Time       `json:"timestamp" db:"timestamp"`
	ProcessedBy   string          `json:"processed_by" db:"processed_by"`
}

// AgentTotals is a convenience read view over an agent's full history,
// recomputed on every call.
type AgentTotals struct {
	AgentID            string `json:"agent_id"`
	TotalRevenue       int64  `json:"total_revenue"`
	TotalExpenses      int64  `json:"total_expenses"`
	NetEarnings        int64  `json:"net_earnings"`
	TransactionCount   int    `json:"transaction_count"`
	AverageTransaction int64  `json:"average_transaction"`
}
