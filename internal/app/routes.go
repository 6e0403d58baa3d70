package app

import (
	"net/http"

	"github.com/clipperhq/growthcore/pkg/user"
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// User
	r.HandleFunc("/api/user/current", deps.UserHandler.CurrentUser).Methods("GET")

	// Budget control (admin only)
	b := r.PathPrefix("/api/budget").Subrouter()
	b.Use(requireRole(user.RoleAdmin))
	b.HandleFunc("/cycle/current", deps.BudgetHandler.GetCurrentCycle).Methods("GET")
	b.HandleFunc("/cycle/current/status", deps.BudgetHandler.UpdateCycleStatus).Methods("PUT")
	b.HandleFunc("/cycle/current/limits", deps.BudgetHandler.UpdateCycleLimits).Methods("PATCH")
	b.HandleFunc("/cycle/current/segments", deps.BudgetHandler.ListCurrentSegmentCycles).Methods("GET")
	b.HandleFunc("/segment-cycle/{id}/status", deps.BudgetHandler.UpdateSegmentCycleStatus).Methods("PUT")
	b.HandleFunc("/segment", deps.BudgetHandler.ListSegments).Methods("GET")
	b.HandleFunc("/segment", deps.BudgetHandler.CreateSegment).Methods("POST")
	b.HandleFunc("/segment/{id}", deps.BudgetHandler.UpdateSegment).Methods("PUT")
	b.HandleFunc("/segment/{id}", deps.BudgetHandler.DeleteSegment).Methods("DELETE")
	b.HandleFunc("/segment/{id}/member", deps.BudgetHandler.ListMembers).Methods("GET")
	b.HandleFunc("/segment/{id}/member", deps.BudgetHandler.AssignMember).Methods("POST")
	b.HandleFunc("/member/{id}", deps.BudgetHandler.RemoveMember).Methods("DELETE")
	b.HandleFunc("/simulate", deps.BudgetHandler.Simulate).Methods("POST")
	b.HandleFunc("/spend/actual", deps.BudgetHandler.GetActualSpend).Methods("GET")
	b.HandleFunc("/event", deps.BudgetHandler.ListEvents).Methods("GET")

	// SMS send is called by other backends and browsers, so it is public and CORS-enabled
	r.Handle("/api/sms/send", deps.SmsCORS.Handler(http.HandlerFunc(deps.SmsHandler.Send))).Methods("POST", "OPTIONS")

	s := r.PathPrefix("/api/sms").Subrouter()
	s.Use(requireRole(user.RoleAdmin))
	s.HandleFunc("/template", deps.SmsHandler.ListTemplates).Methods("GET")
	s.HandleFunc("/audit", deps.SmsHandler.ListAuditRecords).Methods("GET")
	s.HandleFunc("/delivery", deps.SmsHandler.ListDeliveryRecords).Methods("GET")
}
