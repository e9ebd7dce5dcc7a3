package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/forgecraft/storefront/internal/domain"
	"github.com/forgecraft/storefront/internal/ports"
)

type Repositories struct {
	Users     ports.UserRepository
	Products  ports.ProductRepository
	Orders    ports.OrderRepository
	Licenses  ports.LicenseRepository
	Downloads ports.DownloadRepository
	Audit     ports.AuditRepository
	Outbox    ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:     &userRepository{db: db},
		Products:  &productRepository{db: db},
		Orders:    &orderRepository{db: db},
		Licenses:  &licenseRepository{db: db},
		Downloads: &downloadRepository{db: db},
		Audit:     &auditRepository{db: db},
		Outbox:    &outboxRepository{db: db},
	}
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) Create(ctx context.Context, params ports.CreateUserParams) (domain.User, error) {
	rec := userModel{
		UserID:       uuid.New(),
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		CreatedAt:    params.CreatedAt,
		UpdatedAt:    params.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrConflict
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

type productRepository struct {
	db *gorm.DB
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	rec := productModel{
		ProductID:  product.ProductID,
		Slug:       product.Slug,
		Name:       product.Name,
		PriceCents: product.PriceCents,
		Currency:   product.Currency,
		FileURL:    product.FileURL,
		Active:     product.Active,
		CreatedAt:  product.CreatedAt,
		UpdatedAt:  product.UpdatedAt,
	}
	if rec.ProductID == uuid.Nil {
		rec.ProductID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Product{}, domain.ErrConflict
		}
		return domain.Product{}, err
	}
	return toDomainProduct(rec), nil
}

func (r *productRepository) GetByID(ctx context.Context, productID uuid.UUID) (domain.Product, error) {
	var rec productModel
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, err
	}
	return toDomainProduct(rec), nil
}

func (r *productRepository) GetBySlug(ctx context.Context, slug string) (domain.Product, error) {
	var rec productModel
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, err
	}
	return toDomainProduct(rec), nil
}

func (r *productRepository) ListActive(ctx context.Context) ([]domain.Product, error) {
	var rows []productModel
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainProduct(row))
	}
	return result, nil
}

type orderRepository struct {
	db *gorm.DB
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	rec := orderModel{
		OrderID:     order.OrderID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalCents:  order.TotalCents,
		Currency:    order.Currency,
		CreatedAt:   order.CreatedAt,
	}
	if rec.OrderID == uuid.Nil {
		rec.OrderID = uuid.New()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		for _, item := range order.Items {
			itemRec := orderItemModel{
				ItemID:         item.ItemID,
				OrderID:        rec.OrderID,
				ProductID:      item.ProductID,
				UnitPriceCents: item.UnitPriceCents,
			}
			if itemRec.ItemID == uuid.Nil {
				itemRec.ItemID = uuid.New()
			}
			if err := tx.Create(&itemRec).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return r.GetByID(ctx, rec.OrderID)
}

func (r *orderRepository) GetByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	var rec orderModel
	if err := r.db.WithContext(ctx).Where("order_number = ?", orderNumber).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, err
	}
	return r.loadWithItems(ctx, rec)
}

func (r *orderRepository) GetByID(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	var rec orderModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, err
	}
	return r.loadWithItems(ctx, rec)
}

func (r *orderRepository) loadWithItems(ctx context.Context, rec orderModel) (domain.Order, error) {
	var items []orderItemModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", rec.OrderID).
		Order("item_id ASC").
		Find(&items).Error; err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(rec, items), nil
}

type auditRepository struct {
	db *gorm.DB
}

func (r *auditRepository) Insert(ctx context.Context, entry domain.AuditEntry) error {
	var details *string
	if len(entry.Details) > 0 {
		if raw, err := json.Marshal(entry.Details); err == nil {
			encoded := string(raw)
			details = &encoded
		}
	}
	rec := auditLogModel{
		EntryID:    entry.EntryID,
		UserID:     entry.UserID,
		Action:     entry.Action,
		Resource:   entry.Resource,
		ResourceID: entry.ResourceID,
		IPHash:     entry.IPHash,
		UserAgent:  entry.UserAgent,
		Details:    details,
		CreatedAt:  entry.CreatedAt,
	}
	if rec.EntryID == uuid.Nil {
		rec.EntryID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *auditRepository) List(ctx context.Context, query ports.AuditQuery) ([]domain.AuditEntry, error) {
	q := r.db.WithContext(ctx).Model(&auditLogModel{})
	if query.UserID != nil {
		q = q.Where("user_id = ?", *query.UserID)
	}
	if action := strings.TrimSpace(query.Action); action != "" {
		q = q.Where("action = ?", action)
	}
	if resource := strings.TrimSpace(query.Resource); resource != "" {
		q = q.Where("resource = ?", resource)
	}
	limit := query.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var rows []auditLogModel
	if err := q.Order("created_at DESC").Limit(limit).Offset(query.Offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainAuditEntry(row))
	}
	return result, nil
}

type outboxRepository struct {
	db *gorm.DB
}

func (r *outboxRepository) Enqueue(ctx context.Context, event ports.OutboxEvent) error {
	rec := outboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      string(event.Payload),
		CreatedAt:    event.OccurredAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *outboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]ports.OutboxRecord, error) {
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]ports.OutboxRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, ports.OutboxRecord{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      []byte(row.Payload),
			RetryCount:   row.RetryCount,
			LastError:    row.LastError,
			CreatedAt:    row.CreatedAt,
			PublishedAt:  row.PublishedAt,
			LastErrorAt:  row.LastErrorAt,
		})
	}
	return result, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, outboxID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Update("published_at", at).Error
}

func (r *outboxRepository) MarkFailed(ctx context.Context, outboxID uuid.UUID, errMsg string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"retry_count":   gorm.Expr("retry_count + 1"),
			"last_error":    errMsg,
			"last_error_at": at,
		}).Error
}

func toDomainUser(row userModel) domain.User {
	return domain.User{
		UserID:       row.UserID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Role:         row.Role,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func toDomainProduct(row productModel) domain.Product {
	return domain.Product{
		ProductID:  row.ProductID,
		Slug:       row.Slug,
		Name:       row.Name,
		PriceCents: row.PriceCents,
		Currency:   row.Currency,
		FileURL:    row.FileURL,
		Active:     row.Active,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

func toDomainOrder(row orderModel, items []orderItemModel) domain.Order {
	order := domain.Order{
		OrderID:     row.OrderID,
		OrderNumber: row.OrderNumber,
		UserID:      row.UserID,
		Status:      row.Status,
		TotalCents:  row.TotalCents,
		Currency:    row.Currency,
		CreatedAt:   row.CreatedAt,
		FulfilledAt: row.FulfilledAt,
	}
	for _, item := range items {
		order.Items = append(order.Items, domain.OrderItem{
			ItemID:         item.ItemID,
			OrderID:        item.OrderID,
			ProductID:      item.ProductID,
			UnitPriceCents: item.UnitPriceCents,
			LicenseID:      item.LicenseID,
		})
	}
	return order
}

func toDomainLicense(row licenseModel) domain.License {
	return domain.License{
		LicenseID:   row.LicenseID,
		ProductID:   row.ProductID,
		UserID:      row.UserID,
		OrderItemID: row.OrderItemID,
		Status:      row.Status,
		CreatedAt:   row.CreatedAt,
	}
}

func toDomainDownload(row downloadModel) domain.Download {
	return domain.Download{
		DownloadID:   row.DownloadID,
		LicenseID:    row.LicenseID,
		UserID:       row.UserID,
		ProductID:    row.ProductID,
		DownloadedAt: row.DownloadedAt,
		IPHash:       row.IPHash,
		Successful:   row.Successful,
	}
}

func toDomainAuditEntry(row auditLogModel) domain.AuditEntry {
	entry := domain.AuditEntry{
		EntryID:    row.EntryID,
		UserID:     row.UserID,
		Action:     row.Action,
		Resource:   row.Resource,
		ResourceID: row.ResourceID,
		IPHash:     row.IPHash,
		UserAgent:  row.UserAgent,
		CreatedAt:  row.CreatedAt,
	}
	if row.Details != nil && *row.Details != "" {
		var details map[string]any
		if err := json.Unmarshal([]byte(*row.Details), &details); err == nil {
			entry.Details = details
		}
	}
	return entry
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
