package warehouse

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/challan-erp/challan-erp/internal/platform/httpx"
	"github.com/challan-erp/challan-erp/internal/rbac"
	"github.com/challan-erp/challan-erp/internal/shared"
)

// Handler manages warehouse inventory endpoints.
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

// MountRoutes registers warehouse routes. Reads are open to any actor in the
// pipeline; writes belong to managers and admins.
func (h *Handler) MountRoutes(r chi.Router, mw rbac.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireActor)
		r.Get("/warehouse/items", h.listItems)
		r.Get("/warehouse/items/{id}", h.getItem)

		r.Group(func(r chi.Router) {
			r.Use(mw.Require(shared.RoleManager, shared.RoleAdmin))
			r.Put("/warehouse/items", h.upsertItem)
			r.Post("/warehouse/items/{id}/adjust", h.adjustStock)
		})
	})
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
		return
	}
	h.logger.Error("warehouse request failed", "path", r.URL.Path, "error", err)
	httpx.RespondError(w, err)
}

func (h *Handler) itemID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid item id", httpx.ErrValidation)
	}
	return id, nil
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListItemsRequest{Limit: 50}
	if page, _ := strconv.Atoi(q.Get("page")); page > 1 {
		req.Offset = (page - 1) * req.Limit
	}
	if cat := q.Get("category"); cat != "" {
		req.Category = &cat
	}
	if search := q.Get("search"); search != "" {
		req.Search = &search
	}

	items, total, err := h.service.ListItems(r.Context(), req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := h.itemID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) upsertItem(w http.ResponseWriter, r *http.Request) {
	var req UpsertItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	item, err := h.service.UpsertItem(r.Context(), req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := h.itemID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req AdjustStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	item, err := h.service.AdjustStock(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}
