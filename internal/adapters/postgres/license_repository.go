package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/forgecraft/storefront/internal/domain"
	"github.com/forgecraft/storefront/internal/ports"
)

type licenseRepository struct {
	db *gorm.DB
}

// IssueForOrderTx issues licenses for every item of a PAID order, links each
// item to its license, flips the order to FULFILLED, and enqueues the outbox
// event, all inside one transaction. The order row is locked so two admins
// fulfilling concurrently cannot double-issue.
func (r *licenseRepository) IssueForOrderTx(ctx context.Context, params ports.IssueLicensesParams) ([]domain.License, error) {
	var issued []domain.License
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order orderModel
		if err := tx.Clauses(lockForUpdate(tx)...).
			Where("order_id = ?", params.OrderID).
			Take(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if order.Status != domain.OrderPaid {
			if order.Status == domain.OrderFulfilled {
				return domain.ErrConflict
			}
			return domain.ErrOrderNotFulfillable
		}

		var items []orderItemModel
		if err := tx.Where("order_id = ?", order.OrderID).Order("item_id ASC").Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return domain.ErrOrderNotFulfillable
		}

		for _, item := range items {
			license := licenseModel{
				LicenseID:   uuid.New(),
				ProductID:   item.ProductID,
				UserID:      order.UserID,
				OrderItemID: item.ItemID,
				Status:      domain.LicenseActive,
				CreatedAt:   params.IssuedAt,
			}
			if err := tx.Create(&license).Error; err != nil {
				return err
			}
			if err := tx.Model(&orderItemModel{}).
				Where("item_id = ?", item.ItemID).
				Update("license_id", license.LicenseID).Error; err != nil {
				return err
			}
			issued = append(issued, toDomainLicense(license))
		}

		if err := tx.Model(&orderModel{}).
			Where("order_id = ?", order.OrderID).
			Updates(map[string]any{
				"status":       domain.OrderFulfilled,
				"fulfilled_at": params.IssuedAt,
			}).Error; err != nil {
			return err
		}

		outbox := outboxModel{
			OutboxID:     params.OutboxEvent.EventID,
			EventType:    params.OutboxEvent.EventType,
			PartitionKey: params.OutboxEvent.PartitionKey,
			Payload:      string(params.OutboxEvent.Payload),
			CreatedAt:    params.OutboxEvent.OccurredAt,
		}
		return tx.Create(&outbox).Error
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

func (r *licenseRepository) GetByID(ctx context.Context, licenseID uuid.UUID) (domain.License, error) {
	var rec licenseModel
	if err := r.db.WithContext(ctx).Where("license_id = ?", licenseID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.License{}, domain.ErrNotFound
		}
		return domain.License{}, err
	}
	return toDomainLicense(rec), nil
}

func (r *licenseRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.License, error) {
	var rows []licenseModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.License, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainLicense(row))
	}
	return result, nil
}

// lockForUpdate returns a FOR UPDATE clause on dialects that support it.
// SQLite (used in repository tests) rejects FOR UPDATE; its database-level
// write lock already serializes the transaction.
func lockForUpdate(tx *gorm.DB) []clause.Expression {
	if tx.Dialector.Name() == "sqlite" {
		return nil
	}
	return []clause.Expression{clause.Locking{Strength: "UPDATE"}}
}
