package server

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the transport shell: the two API operations behind the
// rate limiter, a health probe, and static hosting for the payment page.
func NewRouter(h *Handler, limiter *RateLimiter, staticDir string, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Post("/lookup-order", h.HandleLookupOrder)
		r.Post("/process-payment", h.HandleProcessPayment)
	})

	if staticDir != "" {
		if _, err := os.Stat(staticDir); err == nil {
			r.Handle("/*", http.FileServer(http.Dir(staticDir)))
		}
	}

	return r
}
