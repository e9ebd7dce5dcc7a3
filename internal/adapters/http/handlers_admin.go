package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/forgecraft/storefront/internal/application"
)

func (h *Handler) fulfillOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}

	stepUpToken := strings.TrimSpace(r.Header.Get("X-Step-Up-Token"))
	orderNumber := chi.URLParam(r, "order_number")

	res, err := h.service.FulfillOrder(r.Context(), actor, stepUpToken, orderNumber)
	if err != nil {
		writeMappedError(r.Context(), w, "fulfill_order", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}

	q := r.URL.Query()
	query := application.AuditLogQuery{
		UserID:   strings.TrimSpace(q.Get("user_id")),
		Action:   strings.TrimSpace(q.Get("action")),
		Resource: strings.TrimSpace(q.Get("resource")),
		Limit:    parseIntDefault(q.Get("limit"), 50),
		Offset:   parseIntDefault(q.Get("offset"), 0),
	}

	entries, err := h.service.ListAuditLogs(r.Context(), actor, query)
	if err != nil {
		writeMappedError(r.Context(), w, "list_audit_logs", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"audit_logs": entries})
}
