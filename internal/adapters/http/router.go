package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forgecraft/storefront/internal/application"
)

// Handler is the HTTP adapter entrypoint for storefront use-cases.
// Keeping only the application dependency here preserves clean adapter boundaries.
type Handler struct {
	service *application.Service
}

// NewHandler constructs an HTTP handler bound to the application service.
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// NewRouter registers storefront HTTP routes and the middleware stack.
// Centralizing routes here ensures consistent auth and error behavior across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/store/v1", func(r chi.Router) {
		r.Post("/auth/register", handler.register)
		r.Post("/auth/login", handler.login)

		r.Get("/products", handler.listProducts)
		r.Get("/products/{slug}", handler.getProduct)

		// Redemption authenticates by capability token, not session, so a
		// download link works from a plain browser navigation.
		r.Get("/downloads/file", handler.redeemDownload)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/auth/step-up", handler.stepUp)
			r.Get("/licenses", handler.listLicenses)
			r.Get("/licenses/{license_id}/quota", handler.downloadQuota)
			r.Post("/licenses/{license_id}/download", handler.requestDownload)

			r.Post("/admin/orders/{order_number}/fulfill", handler.fulfillOrder)
			r.Get("/admin/audit-logs", handler.listAuditLogs)
		})
	})

	return r
}
