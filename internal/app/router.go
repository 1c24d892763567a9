package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/challan-erp/challan-erp/internal/auth"
	"github.com/challan-erp/challan-erp/internal/dc"
	"github.com/challan-erp/challan-erp/internal/leads"
	"github.com/challan-erp/challan-erp/internal/observability"
	"github.com/challan-erp/challan-erp/internal/platform/httpx"
	"github.com/challan-erp/challan-erp/internal/rbac"
	"github.com/challan-erp/challan-erp/internal/warehouse"
	"github.com/challan-erp/challan-erp/jobs"
)

// RouterParams bundles everything NewRouter needs to assemble the HTTP surface.
type RouterParams struct {
	Config    *Config
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	Verifier  *auth.TokenVerifier
	Actors    rbac.Middleware
	Challans  *dc.Handler
	Warehouse *warehouse.Handler
	Leads     *leads.Handler
	Jobs      *jobs.Handler
}

// NewRouter builds the chi router with the full middleware stack and all
// module routes mounted under /api/v1.
func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	MiddlewareStack(r, p.Config, p.Logger, p.Metrics, p.Verifier, p.Actors)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		p.Challans.MountRoutes(api, p.Actors)
		p.Warehouse.MountRoutes(api, p.Actors)
		p.Leads.MountRoutes(api, p.Actors)
		if p.Jobs != nil {
			api.Route("/jobs", p.Jobs.MountRoutes)
		}
	})

	return r
}
