package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/forgecraft/storefront/internal/domain"
	"github.com/forgecraft/storefront/internal/ports"
)

// Dependencies carries everything the service needs. All fields are required
// unless noted.
type Dependencies struct {
	Logger   *slog.Logger
	Users    ports.UserRepository
	Products ports.ProductRepository
	Orders   ports.OrderRepository
	Licenses ports.LicenseRepository
	Download ports.DownloadRepository
	Audit    ports.AuditRepository

	Hasher        ports.PasswordHasher
	Sessions      ports.SessionSigner
	DownloadCodec ports.DownloadTokenCodec
	StepUpCodec   ports.StepUpCodec
	IPHasher      ports.IPHasher
	Throttle      ports.ThrottleStore

	Origin domain.OriginPolicy
}

type Service struct {
	cfg  Config
	deps Dependencies

	nowFn func() time.Time
}

func NewService(cfg Config, deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		cfg:   cfg,
		deps:  deps,
		nowFn: time.Now,
	}
}

// audit records an entry and never fails the caller. Sink errors are logged
// and dropped.
func (s *Service) audit(ctx context.Context, entry domain.AuditEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.nowFn().UTC()
	}
	if err := s.deps.Audit.Insert(ctx, entry); err != nil {
		s.deps.Logger.ErrorContext(ctx, "audit insert failed",
			slog.String("action", entry.Action),
			slog.String("resource", entry.Resource),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) auditFor(actor Actor, action, resource, resourceID string, details map[string]any) domain.AuditEntry {
	entry := domain.AuditEntry{
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IPHash:     s.deps.IPHasher.Hash(actor.IPAddress),
		UserAgent:  actor.UserAgent,
		Details:    details,
	}
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		entry.UserID = &id
	}
	return entry
}

// throttleHit enforces a fixed-window counter. Store failures are logged and
// treated as allowed so a cache outage does not take the storefront down.
func (s *Service) throttleHit(ctx context.Context, key string, max int, window time.Duration) error {
	if s.deps.Throttle == nil || max <= 0 {
		return nil
	}
	count, err := s.deps.Throttle.Hit(ctx, key, window)
	if err != nil {
		s.deps.Logger.WarnContext(ctx, "throttle store unavailable",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if count > max {
		return domain.ErrRateLimited
	}
	return nil
}

// ValidateSession parses and validates a bearer token into auth claims.
func (s *Service) ValidateSession(_ context.Context, raw string) (ports.AuthClaims, error) {
	claims, err := s.deps.Sessions.ParseAndValidate(raw)
	if err != nil {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	return claims, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
