package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/challan-erp/challan-erp/internal/auth"
	"github.com/challan-erp/challan-erp/internal/observability"
	"github.com/challan-erp/challan-erp/internal/rbac"
)

// MiddlewareStack wires the shared HTTP middleware chain onto the router.
// Order matters: request identity and recovery come first, then rate limiting
// and security headers, then metrics, then actor resolution.
func MiddlewareStack(r chi.Router, cfg *Config, logger *slog.Logger, metrics *observability.Metrics, verifier *auth.TokenVerifier, actors rbac.Middleware) {
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.AppRequestTimeout))
	r.Use(chimw.Compress(5))

	r.Use(httprate.Limit(
		120,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		}),
	))

	secureMW := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		IsDevelopment:         !cfg.IsProduction(),
	})
	r.Use(secureMW.Handler)

	if metrics != nil {
		r.Use(metrics.Middleware)
	}
	if verifier.Enabled() {
		r.Use(verifier.Middleware)
	}
	r.Use(actors.WithActor)

	if !cfg.IsProduction() {
		r.Use(requestLogger(logger))
	}
}

// requestLogger logs completed requests with slog at debug level. Kept as a
// separate middleware so production can leave it off the chain.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}
