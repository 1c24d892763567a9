package leads

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/challan-erp/challan-erp/internal/dc"
	"github.com/challan-erp/challan-erp/internal/platform/httpx"
	"github.com/challan-erp/challan-erp/internal/rbac"
	"github.com/challan-erp/challan-erp/internal/shared"
)

// Handler manages lead endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes registers lead routes.
func (h *Handler) MountRoutes(r chi.Router, mw rbac.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireActor)
		r.Get("/leads", h.listLeads)
		r.Get("/leads/{id}", h.getLead)

		r.Group(func(r chi.Router) {
			r.Use(mw.Require(shared.RoleEmployee, shared.RoleCoordinator, shared.RoleAdmin))
			r.Post("/leads", h.createLead)
			r.Post("/leads/{id}/close", h.closeLead)
			r.Post("/leads/{id}/convert", h.convertLead)
		})
	})
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
	case errors.Is(err, dc.ErrInvalidTransition):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err))
	default:
		h.logger.Error("lead request failed", "path", r.URL.Path, "error", err)
		httpx.RespondError(w, err)
	}
}

func (h *Handler) leadID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid lead id", httpx.ErrValidation)
	}
	return id, nil
}

func (h *Handler) createLead(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	lead, err := h.service.CreateLead(r.Context(), req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lead)
}

func (h *Handler) getLead(w http.ResponseWriter, r *http.Request) {
	id, err := h.leadID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lead, err := h.service.GetLead(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) listLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListLeadsRequest{Limit: 20}
	if page, _ := strconv.Atoi(q.Get("page")); page > 1 {
		req.Offset = (page - 1) * req.Limit
	}
	if status := q.Get("status"); status != "" {
		st := LeadStatus(status)
		if !st.IsValid() {
			httpx.RespondError(w, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, status))
			return
		}
		req.Status = &st
	}
	if emp := q.Get("assigned_to"); emp != "" {
		if id, err := strconv.ParseInt(emp, 10, 64); err == nil {
			req.AssignedTo = &id
		}
	}
	if search := q.Get("search"); search != "" {
		req.Search = &search
	}

	items, total, err := h.service.ListLeads(r.Context(), req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) closeLead(w http.ResponseWriter, r *http.Request) {
	id, err := h.leadID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lead, err := h.service.CloseLead(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

// convertLead turns a closed lead into a challan; the response body is the
// new challan.
func (h *Handler) convertLead(w http.ResponseWriter, r *http.Request) {
	id, err := h.leadID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req dc.CreateChallanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	a, _ := shared.ActorFromContext(r.Context())
	challan, err := h.service.ConvertToClient(r.Context(), id, req, a)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, challan)
}
