package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/forgecraft/storefront/internal/application"
	"github.com/forgecraft/storefront/internal/domain"
)

func (h *Handler) requestDownload(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}

	licenseID, err := uuid.Parse(chi.URLParam(r, "license_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "request_download", domain.ErrNotFound)
		return
	}

	grant, err := h.service.RequestDownload(r.Context(), actor, licenseID)
	if err != nil {
		writeMappedError(r.Context(), w, "request_download", err)
		return
	}
	writeSuccess(w, http.StatusCreated, grant)
}

// redeemDownload exchanges a capability token for a redirect to the file.
// It is deliberately unauthenticated so emailed or copied links work.
func (h *Handler) redeemDownload(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeMappedError(r.Context(), w, "redeem_download", domain.ErrUnauthorized)
		return
	}

	actor := application.Actor{IPAddress: readIP(r), UserAgent: r.UserAgent()}
	fileURL, err := h.service.RedeemDownload(r.Context(), actor, token)
	if err != nil {
		writeMappedError(r.Context(), w, "redeem_download", err)
		return
	}
	http.Redirect(w, r, fileURL, http.StatusFound)
}

func (h *Handler) downloadQuota(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}

	licenseID, err := uuid.Parse(chi.URLParam(r, "license_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "download_quota", domain.ErrNotFound)
		return
	}

	quota, err := h.service.DownloadQuota(r.Context(), actor, licenseID)
	if err != nil {
		writeMappedError(r.Context(), w, "download_quota", err)
		return
	}
	writeSuccess(w, http.StatusOK, quota)
}
