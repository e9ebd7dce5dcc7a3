package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/forgecraft/storefront/internal/domain"
	"github.com/forgecraft/storefront/internal/ports"
)

// ListAuditLogs returns audit entries for admins, newest first.
func (s *Service) ListAuditLogs(ctx context.Context, actor Actor, query AuditLogQuery) ([]AuditLogView, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}

	q := ports.AuditQuery{
		Action:   query.Action,
		Resource: query.Resource,
		Limit:    query.Limit,
		Offset:   query.Offset,
	}
	if query.UserID != "" {
		userID, err := uuid.Parse(query.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid user_id filter", domain.ErrInvalidInput)
		}
		q.UserID = &userID
	}

	entries, err := s.deps.Audit.List(ctx, q)
	if err != nil {
		return nil, err
	}
	views := make([]AuditLogView, 0, len(entries))
	for _, e := range entries {
		views = append(views, AuditLogView{
			EntryID:    e.EntryID,
			UserID:     e.UserID,
			Action:     e.Action,
			Resource:   e.Resource,
			ResourceID: e.ResourceID,
			Details:    e.Details,
			CreatedAt:  e.CreatedAt,
		})
	}
	return views, nil
}
