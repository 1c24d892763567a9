// Package auth verifies the shared service token presented by upstream
// gateways. The challan service does not manage user credentials; user
// identity arrives as trusted actor headers once the caller itself has
// authenticated with the bearer token.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/challan-erp/challan-erp/internal/platform/httpx"
)

// TokenVerifier checks Authorization bearer tokens against a bcrypt hash of
// the shared service token. An empty hash disables verification, which is
// only acceptable for local development.
type TokenVerifier struct {
	hash   []byte
	logger *slog.Logger
}

// NewTokenVerifier constructs a verifier from the configured bcrypt hash.
func NewTokenVerifier(hash string, logger *slog.Logger) *TokenVerifier {
	v := &TokenVerifier{logger: logger}
	if hash != "" {
		v.hash = []byte(hash)
	}
	return v
}

// Enabled reports whether a token hash is configured.
func (v *TokenVerifier) Enabled() bool {
	return v != nil && len(v.hash) > 0
}

// Middleware rejects requests without a valid bearer token.
func (v *TokenVerifier) Middleware(next http.Handler) http.Handler {
	if !v.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			httpx.RespondError(w, fmt.Errorf("%w: bearer token required", httpx.ErrUnauthorized))
			return
		}
		if err := bcrypt.CompareHashAndPassword(v.hash, []byte(token)); err != nil {
			v.logger.Warn("service token rejected", "path", r.URL.Path)
			httpx.RespondError(w, fmt.Errorf("%w: invalid service token", httpx.ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}
