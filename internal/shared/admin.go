package shared

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminTokenHeader carries the operator token on mutating requests.
const AdminTokenHeader = "X-Admin-Token"

// AdminGuard protects mutating endpoints with a shared operator token whose
// bcrypt hash comes from configuration. An empty hash disables the guard.
type AdminGuard struct {
	hash []byte
}

// NewAdminGuard builds a guard for the given bcrypt hash.
func NewAdminGuard(hash string) *AdminGuard {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return &AdminGuard{}
	}
	return &AdminGuard{hash: []byte(hash)}
}

// Enabled reports whether a hash is configured.
func (g *AdminGuard) Enabled() bool {
	return g != nil && len(g.hash) > 0
}

// Check compares token with the configured hash.
func (g *AdminGuard) Check(token string) bool {
	if !g.Enabled() {
		return true
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(g.hash, []byte(token)) == nil
}

// Middleware rejects requests without a valid admin token.
func (g *AdminGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Check(r.Header.Get(AdminTokenHeader)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"title":"Unauthorized","status":401,"detail":"admin token required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
