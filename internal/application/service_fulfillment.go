package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/forgecraft/storefront/internal/domain"
	"github.com/forgecraft/storefront/internal/ports"
)

// licenseIssuedEvent is the outbox payload emitted when fulfillment succeeds.
type licenseIssuedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      uuid.UUID `json:"user_id"`
	IssuedAt    time.Time `json:"issued_at"`
}

// FulfillOrder issues one license per item of a PAID order and flips it to
// FULFILLED. Admin only, and the admin must present a fresh step-up token.
func (s *Service) FulfillOrder(ctx context.Context, actor Actor, stepUpToken, orderNumber string) (FulfillResponse, error) {
	if actor.Role != domain.RoleAdmin {
		return FulfillResponse{}, domain.ErrForbidden
	}
	if err := s.requireStepUp(actor, stepUpToken); err != nil {
		return FulfillResponse{}, err
	}

	order, err := s.deps.Orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		return FulfillResponse{}, err
	}

	issuedAt := s.nowFn().UTC()
	payload, err := json.Marshal(licenseIssuedEvent{
		OrderID:     order.OrderID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		IssuedAt:    issuedAt,
	})
	if err != nil {
		return FulfillResponse{}, fmt.Errorf("marshal license.issued event: %w", err)
	}

	licenses, err := s.deps.Licenses.IssueForOrderTx(ctx, ports.IssueLicensesParams{
		OrderID:  order.OrderID,
		IssuedAt: issuedAt,
		OutboxEvent: ports.OutboxEvent{
			EventID:      uuid.New(),
			EventType:    "license.issued",
			PartitionKey: order.UserID.String(),
			Payload:      payload,
			OccurredAt:   issuedAt,
		},
	})
	if err != nil {
		return FulfillResponse{}, err
	}

	ids := make([]uuid.UUID, 0, len(licenses))
	for _, lic := range licenses {
		ids = append(ids, lic.LicenseID)
	}

	s.audit(ctx, s.auditFor(actor, domain.AuditOrderFulfilled, "order", order.OrderNumber, map[string]any{
		"order_id":      order.OrderID.String(),
		"license_count": len(ids),
	}))

	return FulfillResponse{OrderNumber: order.OrderNumber, LicenseIDs: ids}, nil
}
