// Package rest exposes the treasury over HTTP for the orchestrator and for
// operator tooling.
package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/kip-platform/kip-treasury/internal/models"
	"github.com/kip-platform/kip-treasury/internal/treasury"
)

// Handler holds the treasury core and serves all API routes.
type Handler struct {
	treasury *treasury.Treasury
	log      *slog.Logger
}

// NewHandler creates a new REST handler.
func NewHandler(t *treasury.Treasury, log *slog.Logger) *Handler {
	return &Handler{treasury: t, log: log}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

type initializeBudgetRequest struct {
	AgentID          string `json:"agent_id"`
	SeedCents        int64  `json:"seed_cents,omitempty"`
	DailyLimitCents  int64  `json:"daily_limit_cents,omitempty"`
	ActionLimitCents int64  `json:"action_limit_cents,omitempty"`
}

// InitializeBudget handles POST /api/v1/budgets.
func (h *Handler) InitializeBudget(w http.ResponseWriter, r *http.Request) {
	var req initializeBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	budget, err := h.treasury.InitializeAgentBudget(r.Context(), req.AgentID, treasury.SeedOptions{
		SeedCents:        req.SeedCents,
		DailyLimitCents:  req.DailyLimitCents,
		ActionLimitCents: req.ActionLimitCents,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, budget)
}

// GetBudget handles GET /api/v1/budgets/{agentId}.
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agentId"]
	budget, err := h.treasury.GetBudget(r.Context(), agentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if budget == nil {
		respondError(w, http.StatusNotFound, "No budget found for agent")
		return
	}
	respondJSON(w, http.StatusOK, budget)
}

type checkFundsRequest struct {
	AgentID     string `json:"agent_id"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
}

// CheckFunds handles POST /api/v1/treasury/check-funds. Rejections are
// 200s with approved=false; only infrastructure failures are 5xx.
func (h *Handler) CheckFunds(w http.ResponseWriter, r *http.Request) {
	var req checkFundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.treasury.CheckFunds(r.Context(), req.AgentID, req.AmountCents, req.Description)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type recordTransactionRequest struct {
	AgentID     string          `json:"agent_id"`
	AmountCents int64           `json:"amount_cents"`
	Description string          `json:"description"`
	Type        string          `json:"transaction_type"`
	ROIData     *models.ROIData `json:"roi_data,omitempty"`
}

// RecordTransaction handles POST /api/v1/treasury/transactions.
func (h *Handler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req recordTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.treasury.RecordTransaction(r.Context(), req.AgentID, req.AmountCents, req.Description,
		models.TransactionType(req.Type), req.ROIData)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tx == nil {
		respondError(w, http.StatusUnprocessableEntity, "Transaction not recorded")
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

// GetTransactionHistory handles GET /api/v1/treasury/transactions/{agentId}.
// Query params: limit (default 50), offset.
func (h *Handler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agentId"]
	q := r.URL.Query()

	limit := int64(50)
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	var offset int64
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			offset = n
		}
	}

	txs, err := h.treasury.GetTransactionHistory(r.Context(), agentID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if txs == nil {
		txs = []*models.Transaction{}
	}
	respondJSON(w, http.StatusOK, txs)
}

// GetAgentTotals handles GET /api/v1/treasury/transactions/{agentId}/totals.
func (h *Handler) GetAgentTotals(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agentId"]
	totals, err := h.treasury.CalculateAgentTotals(r.Context(), agentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, totals)
}

// GetAnalytics handles GET /api/v1/treasury/analytics.
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.treasury.GetEconomicAnalytics(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, analytics)
}

// ROIAdjustment handles POST /api/v1/treasury/agents/{agentId}/roi-adjustment.
// Query param: period_days (default 7).
func (h *Handler) ROIAdjustment(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agentId"]
	periodDays := 7
	if v := r.URL.Query().Get("period_days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			periodDays = n
		}
	}

	report, err := h.treasury.CalculateROIAdjustment(r.Context(), agentID, periodDays)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, "No budget found for agent")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

type freezeRequest struct {
	Reason string `json:"reason"`
}

// EmergencyFreeze handles POST /api/v1/admin/freeze.
func (h *Handler) EmergencyFreeze(w http.ResponseWriter, r *http.Request) {
	var req freezeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Reason == "" {
		respondError(w, http.StatusBadRequest, "A reason is required")
		return
	}

	count, err := h.treasury.EmergencyFreezeAll(r.Context(), req.Reason)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"frozen": count, "emergency_freeze_active": true})
}

// EmergencyUnfreeze handles POST /api/v1/admin/unfreeze.
func (h *Handler) EmergencyUnfreeze(w http.ResponseWriter, r *http.Request) {
	var req freezeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Reason == "" {
		respondError(w, http.StatusBadRequest, "A reason is required")
		return
	}

	count, err := h.treasury.EmergencyUnfreezeAll(r.Context(), req.Reason)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"unfrozen": count, "emergency_freeze_active": false})
}
