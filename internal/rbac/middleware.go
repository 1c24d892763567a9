// Package rbac resolves the acting user from request headers and gates
// routes by role. Authentication itself belongs to the upstream identity
// service; by the time a request reaches us it carries a verified
// X-Actor-Id / X-Actor-Role pair.
package rbac

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/challan-erp/challan-erp/internal/platform/httpx"
	"github.com/challan-erp/challan-erp/internal/shared"
)

const (
	headerActorID   = "X-Actor-Id"
	headerActorRole = "X-Actor-Role"
)

// Middleware provides actor extraction and role gates.
type Middleware struct {
	Logger *slog.Logger
}

// WithActor parses the actor headers into the request context. Requests
// without a valid pair pass through anonymous; RequireActor or a role gate
// rejects them where it matters.
func (m Middleware) WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(headerActorID), 10, 64)
		role := shared.Role(r.Header.Get(headerActorRole))
		if err == nil && id > 0 && role.IsValid() {
			ctx := shared.ContextWithActor(r.Context(), shared.Actor{ID: id, Role: role})
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActor rejects requests that did not resolve an actor.
func (m Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.ActorFromContext(r.Context()); !ok {
			httpx.RespondError(w, fmt.Errorf("%w: actor identity required", httpx.ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Require allows only the listed roles through.
func (m Middleware) Require(roles ...shared.Role) func(http.Handler) http.Handler {
	allowed := make(map[shared.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, fmt.Errorf("%w: actor identity required", httpx.ErrUnauthorized))
				return
			}
			if _, ok := allowed[actor.Role]; !ok {
				httpx.RespondError(w, fmt.Errorf("%w: role %q not permitted", httpx.ErrForbidden, actor.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
