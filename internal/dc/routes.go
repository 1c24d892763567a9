package dc

import (
	"github.com/go-chi/chi/v5"

	"github.com/challan-erp/challan-erp/internal/rbac"
	"github.com/challan-erp/challan-erp/internal/shared"
)

// MountRoutes registers challan routes. Role gates mirror the edge table;
// the lifecycle re-checks roles on every transition regardless.
func (h *Handler) MountRoutes(r chi.Router, mw rbac.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireActor)

		r.Get("/challans", h.listChallans)
		r.Get("/challans/{id}", h.getChallan)
		r.Get("/challans/ref/{ref}", h.getChallanByRef)
		r.Get("/challans/{id}/approvals", h.listApprovals)

		r.Group(func(r chi.Router) {
			r.Use(mw.Require(shared.RoleEmployee, shared.RoleCoordinator, shared.RoleAdmin))
			r.Post("/challans", h.createChallan)
			r.Patch("/challans/{id}", h.updateChallan)
			r.Post("/challans/{id}/submit-po", h.transitionTo(StatusPOSubmitted))
			r.Post("/challans/{id}/request", h.transitionTo(StatusRequested))
			r.Post("/challans/{id}/send-to-manager", h.transitionTo(StatusSentToManager))
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.Require(shared.RoleCoordinator, shared.RoleAdmin))
			r.Post("/challans/{id}/accept", h.transitionTo(StatusAccepted))
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.Require(shared.RoleSeniorCoordinator, shared.RoleAdmin))
			r.Post("/challans/{id}/take-review", h.transitionTo(StatusPendingDC))
			r.Post("/challans/{id}/release-to-warehouse", h.transitionTo(StatusWarehouseProcessing))
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.Require(shared.RoleManager, shared.RoleAdmin))
			r.Post("/challans/{id}/derive-availability", h.refreshAvailability)
			r.Post("/challans/{id}/complete", h.transitionTo(StatusCompleted))
			r.Post("/challans/{id}/hold", h.transitionTo(StatusHold))
			r.Post("/challans/{id}/resume", h.transitionTo(StatusWarehouseProcessing))
		})
	})
}
