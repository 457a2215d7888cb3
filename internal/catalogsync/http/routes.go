// Package synchttp exposes catalog sync triggers and diagnostics.
package synchttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

const (
	runRateLimit  = 6
	runRateWindow = time.Minute
)

// MountRoutes registers the sync endpoints. POST /sync is not wrapped in a
// request timeout; the handler bounds it itself.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(runRateLimit, runRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	r.Get("/sync", h.handleStatus)
	r.Get("/sync/history", h.handleHistory)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Use(h.guard.Middleware)
		gr.Post("/sync", h.handleRun)
	})
}
