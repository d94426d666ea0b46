package rest

import "github.com/gorilla/mux"

// SetupRoutes registers all treasury routes on the given subrouter.
func SetupRoutes(router *mux.Router, h *Handler) {
	router.HandleFunc("/budgets", h.InitializeBudget).Methods("POST")
	router.HandleFunc("/budgets/{agentId}", h.GetBudget).Methods("GET")

	router.HandleFunc("/treasury/check-funds", h.CheckFunds).Methods("POST")
	router.HandleFunc("/treasury/transactions", h.RecordTransaction).Methods("POST")
	router.HandleFunc("/treasury/transactions/{agentId}", h.GetTransactionHistory).Methods("GET")
	router.HandleFunc("/treasury/transactions/{agentId}/totals", h.GetAgentTotals).Methods("GET")
	router.HandleFunc("/treasury/analytics", h.GetAnalytics).Methods("GET")
	router.HandleFunc("/treasury/agents/{agentId}/roi-adjustment", h.ROIAdjustment).Methods("POST")

	router.HandleFunc("/admin/freeze", h.EmergencyFreeze).Methods("POST")
	router.HandleFunc("/admin/unfreeze", h.EmergencyUnfreeze).Methods("POST")
}
