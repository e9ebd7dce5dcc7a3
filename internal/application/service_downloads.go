package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/forgecraft/storefront/internal/domain"
	"github.com/forgecraft/storefront/internal/ports"
	"github.com/google/uuid"
)

// RequestDownload authorizes a download of a licensed product and mints a
// short-lived capability token. The pending attempt row is written before the
// token exists, so an exhausted quota can never be raced past by minting twice.
func (s *Service) RequestDownload(ctx context.Context, actor Actor, licenseID uuid.UUID) (DownloadGrant, error) {
	ipHash := s.deps.IPHasher.Hash(actor.IPAddress)
	if err := s.throttleHit(ctx, "mint:"+ipHash, s.cfg.MintThrottleMax, s.cfg.MintThrottleWin); err != nil {
		return DownloadGrant{}, err
	}

	license, err := s.deps.Licenses.GetByID(ctx, licenseID)
	if err != nil {
		return DownloadGrant{}, err
	}
	if license.UserID != actor.UserID {
		// Do not confirm the license exists to a non-owner.
		return DownloadGrant{}, domain.ErrNotFound
	}
	if license.Status != domain.LicenseActive {
		s.auditDenied(ctx, actor, licenseID, "license_not_active")
		return DownloadGrant{}, domain.ErrLicenseNotActive
	}

	now := s.nowFn().UTC()

	// Opportunistic reap of abandoned attempts. Failure here must not block
	// the request path; the background reaper will catch up.
	if deleted, err := s.deps.Download.DeleteStaleBefore(ctx, now.Add(-s.cfg.StaleDownloadAge)); err != nil {
		s.deps.Logger.WarnContext(ctx, "stale download cleanup failed", slog.String("error", err.Error()))
	} else if deleted > 0 {
		s.deps.Logger.DebugContext(ctx, "stale downloads reaped", slog.Int64("deleted_count", deleted))
	}

	download, err := s.deps.Download.Reserve(ctx, ports.ReserveDownloadParams{
		LicenseID:   license.LicenseID,
		UserID:      actor.UserID,
		ProductID:   license.ProductID,
		IPHash:      ipHash,
		RequestedAt: now,
		Window:      s.cfg.DownloadWindow,
		Limit:       s.cfg.DownloadLimit,
	})
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			s.auditDenied(ctx, actor, licenseID, "quota_exceeded")
		}
		return DownloadGrant{}, err
	}

	expiresAt := now.Add(s.cfg.DownloadTokenTTL)
	token, err := s.deps.DownloadCodec.Mint(domain.DownloadClaims{
		DownloadID: download.DownloadID,
		UserID:     actor.UserID,
		ProductID:  license.ProductID,
		LicenseID:  license.LicenseID,
		ExpiresAt:  expiresAt.Unix(),
	})
	if err != nil {
		return DownloadGrant{}, fmt.Errorf("mint download token: %w", err)
	}

	// Remaining is reported as if this grant gets redeemed, since the common
	// case is that it will be.
	quota, err := s.deps.Download.CheckQuota(ctx, license.LicenseID, now.Add(-s.cfg.DownloadWindow), s.cfg.DownloadLimit)
	if err != nil {
		return DownloadGrant{}, err
	}
	remaining := quota.Remaining - 1
	if remaining < 0 {
		remaining = 0
	}

	s.audit(ctx, s.auditFor(actor, domain.AuditDownloadRequested, "license", licenseID.String(), map[string]any{
		"download_id": download.DownloadID.String(),
		"product_id":  license.ProductID.String(),
	}))

	return DownloadGrant{Token: token, ExpiresAt: expiresAt, Remaining: remaining}, nil
}

// RedeemDownload verifies a capability token and, when everything still
// holds, flips the attempt to successful and returns the validated file URL
// for the handler to redirect to.
//
// Every token-shaped failure collapses to ErrUnauthorized so the response
// does not distinguish forged, expired, replayed, and mismatched tokens.
func (s *Service) RedeemDownload(ctx context.Context, actor Actor, rawToken string) (string, error) {
	claims, ok := s.deps.DownloadCodec.Verify(rawToken)
	if !ok {
		return "", domain.ErrUnauthorized
	}

	download, err := s.deps.Download.GetByID(ctx, claims.DownloadID)
	if err != nil {
		if isNotFound(err) {
			return "", domain.ErrUnauthorized
		}
		return "", err
	}
	if download.UserID != claims.UserID || download.ProductID != claims.ProductID || download.LicenseID != claims.LicenseID {
		return "", domain.ErrUnauthorized
	}

	license, err := s.deps.Licenses.GetByID(ctx, claims.LicenseID)
	if err != nil {
		if isNotFound(err) {
			return "", domain.ErrUnauthorized
		}
		return "", err
	}
	if license.Status != domain.LicenseActive {
		s.auditDenied(ctx, actorFromClaims(claims, actor), claims.LicenseID, "license_not_active")
		return "", domain.ErrLicenseNotActive
	}

	product, err := s.deps.Products.GetByID(ctx, claims.ProductID)
	if err != nil {
		return "", err
	}

	// Validate the origin before consuming quota. A misconfigured file URL is
	// an operator problem; the client sees only a generic failure while the
	// specific code lands in the log and audit trail.
	fileURL, err := s.deps.Origin.Validate(product.FileURL)
	if err != nil {
		s.deps.Logger.ErrorContext(ctx, "file origin rejected",
			slog.String("product_id", product.ProductID.String()),
			slog.String("code", err.Error()),
		)
		s.auditDenied(ctx, actorFromClaims(claims, actor), claims.LicenseID, "unsafe_file_origin")
		return "", err
	}

	now := s.nowFn().UTC()
	err = s.deps.Download.MarkSuccessful(ctx, claims.DownloadID, now, s.cfg.DownloadWindow, s.cfg.DownloadLimit)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConflict):
			// Replayed token: the row is already successful.
			s.auditDenied(ctx, actorFromClaims(claims, actor), claims.LicenseID, "token_replayed")
			return "", domain.ErrUnauthorized
		case errors.Is(err, domain.ErrQuotaExceeded):
			s.auditDenied(ctx, actorFromClaims(claims, actor), claims.LicenseID, "quota_exceeded")
			return "", err
		case isNotFound(err):
			return "", domain.ErrUnauthorized
		default:
			return "", err
		}
	}

	s.audit(ctx, s.auditFor(actorFromClaims(claims, actor), domain.AuditDownloadServed, "license", claims.LicenseID.String(), map[string]any{
		"download_id": claims.DownloadID.String(),
		"product_id":  claims.ProductID.String(),
	}))

	return fileURL.String(), nil
}

// DownloadQuota reports the remaining slots for a license without reserving one.
func (s *Service) DownloadQuota(ctx context.Context, actor Actor, licenseID uuid.UUID) (QuotaView, error) {
	license, err := s.deps.Licenses.GetByID(ctx, licenseID)
	if err != nil {
		return QuotaView{}, err
	}
	if license.UserID != actor.UserID && actor.Role != domain.RoleAdmin {
		return QuotaView{}, domain.ErrNotFound
	}
	since := s.nowFn().UTC().Add(-s.cfg.DownloadWindow)
	quota, err := s.deps.Download.CheckQuota(ctx, licenseID, since, s.cfg.DownloadLimit)
	if err != nil {
		return QuotaView{}, err
	}
	return QuotaView{Allowed: quota.Allowed, Remaining: quota.Remaining}, nil
}

// CleanupStaleDownloads deletes abandoned pending attempts older than the
// configured age and reports the count. Used by the background reaper.
func (s *Service) CleanupStaleDownloads(ctx context.Context) (int64, error) {
	cutoff := s.nowFn().UTC().Add(-s.cfg.StaleDownloadAge)
	return s.deps.Download.DeleteStaleBefore(ctx, cutoff)
}

func (s *Service) auditDenied(ctx context.Context, actor Actor, licenseID uuid.UUID, reason string) {
	s.audit(ctx, s.auditFor(actor, domain.AuditDownloadDenied, "license", licenseID.String(), map[string]any{
		"reason": reason,
	}))
}

// actorFromClaims attributes redemption audit entries to the token's owner
// while keeping the request's network metadata.
func actorFromClaims(claims domain.DownloadClaims, req Actor) Actor {
	return Actor{
		UserID:    claims.UserID,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	}
}
