// Package cataloghttp serves the storefront catalog.
package cataloghttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

const (
	editRateLimit  = 30
	editRateWindow = time.Minute
)

// MountRoutes registers the catalog endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(editRateLimit, editRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	r.Route("/catalog", func(r chi.Router) {
		r.Get("/products", h.handleProducts)
		r.Get("/products/{id}", h.handleProduct)
		r.Get("/sections", h.handleSections)
		r.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Use(h.guard.Middleware)
			gr.Put("/products/{id}/image", h.handleUpdateImage)
		})
	})
}
