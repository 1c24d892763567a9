package dc

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/challan-erp/challan-erp/internal/platform/httpx"
	"github.com/challan-erp/challan-erp/internal/shared"
)

// Handler manages delivery challan endpoints.
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

// respondErr translates lifecycle errors onto problem responses. Invalid
// transitions and lost compare-and-swaps come back as 409 so callers know to
// re-fetch and retry.
func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
	case errors.Is(err, ErrUnauthorizedActor):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrForbidden, err))
	case errors.Is(err, ErrMissingReference):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStaleChallan), errors.Is(err, ErrInconsistentQuantity):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err))
	default:
		h.logger.Error("challan request failed", "path", r.URL.Path, "error", err)
		httpx.RespondError(w, err)
	}
}

func (h *Handler) challanID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid challan id", httpx.ErrValidation)
	}
	return id, nil
}

func actor(r *http.Request) shared.Actor {
	a, _ := shared.ActorFromContext(r.Context())
	return a
}

// createChallan handles POST /challans.
func (h *Handler) createChallan(w http.ResponseWriter, r *http.Request) {
	var req CreateChallanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	challan, err := h.service.CreateChallan(r.Context(), req, actor(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, challan)
}

// updateChallan handles PATCH /challans/{id}.
func (h *Handler) updateChallan(w http.ResponseWriter, r *http.Request) {
	id, err := h.challanID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateChallanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	challan, err := h.service.UpdateChallan(r.Context(), id, req, actor(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, challan)
}

// getChallan handles GET /challans/{id}.
func (h *Handler) getChallan(w http.ResponseWriter, r *http.Request) {
	id, err := h.challanID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	challan, err := h.service.GetChallan(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, challan)
}

// getChallanByRef handles GET /challans/ref/{ref}.
func (h *Handler) getChallanByRef(w http.ResponseWriter, r *http.Request) {
	ref, err := uuid.Parse(chi.URLParam(r, "ref"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid challan ref", httpx.ErrValidation))
		return
	}
	challan, err := h.service.GetChallanByRef(r.Context(), ref)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, challan)
}

// listChallans handles GET /challans.
func (h *Handler) listChallans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListChallansRequest{Limit: 20}

	if page, _ := strconv.Atoi(q.Get("page")); page > 1 {
		req.Offset = (page - 1) * req.Limit
	}
	if status := q.Get("status"); status != "" {
		st := DCStatus(status)
		if !st.IsValid() {
			httpx.RespondError(w, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, status))
			return
		}
		req.Status = &st
	}
	if emp := q.Get("employee_id"); emp != "" {
		if id, err := strconv.ParseInt(emp, 10, 64); err == nil {
			req.EmployeeID = &id
		}
	}
	if lead := q.Get("lead_order_id"); lead != "" {
		if id, err := strconv.ParseInt(lead, 10, 64); err == nil {
			req.LeadOrderID = &id
		}
	}
	if search := q.Get("search"); search != "" {
		req.Search = &search
	}
	if from := q.Get("date_from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			req.DateFrom = &t
		}
	}
	if to := q.Get("date_to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			req.DateTo = &t
		}
	}

	items, total, err := h.service.ListChallans(r.Context(), req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListChallansResponse{Items: items, Total: total})
}

// listApprovals handles GET /challans/{id}/approvals.
func (h *Handler) listApprovals(w http.ResponseWriter, r *http.Request) {
	id, err := h.challanID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	logs, err := h.service.ListApprovals(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": logs})
}

// transitionTo builds a handler that moves the challan to a fixed target
// status. The edge table decides legality from whatever status the challan
// is actually in.
func (h *Handler) transitionTo(target DCStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := h.challanID(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		var req TransitionRequest
		if r.ContentLength > 0 {
			if err := httpx.DecodeJSON(r, &req); err != nil {
				httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
				return
			}
			if err := h.validate.Struct(req); err != nil {
				httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
				return
			}
		}

		idemKey := r.Header.Get("Idempotency-Key")
		challan, err := h.service.ApplyTransition(r.Context(), id, target, actor(r), req, idemKey)
		if err != nil {
			h.respondErr(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, challan)
	}
}

// refreshAvailability handles POST /challans/{id}/derive-availability.
func (h *Handler) refreshAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := h.challanID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	challan, err := h.service.RefreshAvailability(r.Context(), id, actor(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, challan)
}
