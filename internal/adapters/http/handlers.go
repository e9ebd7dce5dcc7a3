package http

import (
	"context"
	"net/http"

	"github.com/forgecraft/storefront/internal/application"
	"github.com/forgecraft/storefront/internal/ports"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}

		claims, err := h.service.ValidateSession(r.Context(), raw)
		if err != nil {
			status, code, msg := mapDomainError(err)
			writeError(w, status, code, msg)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorFromRequest combines the session claims placed by authMiddleware with
// the request's network metadata.
func actorFromRequest(r *http.Request) (application.Actor, bool) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		return application.Actor{}, false
	}
	return actorFromClaims(claims, r), true
}

func actorFromClaims(claims ports.AuthClaims, r *http.Request) application.Actor {
	return application.Actor{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Role:      claims.Role,
		IPAddress: readIP(r),
		UserAgent: r.UserAgent(),
	}
}
