package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		writeMappedError(r.Context(), w, "list_products", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	product, err := h.service.GetProduct(r.Context(), slug)
	if err != nil {
		writeMappedError(r.Context(), w, "get_product", err)
		return
	}
	writeSuccess(w, http.StatusOK, product)
}

func (h *Handler) listLicenses(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	licenses, err := h.service.ListMyLicenses(r.Context(), actor.UserID)
	if err != nil {
		writeMappedError(r.Context(), w, "list_licenses", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"licenses": licenses})
}
