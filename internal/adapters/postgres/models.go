package postgres

import (
	"time"

	"github.com/google/uuid"
)

type userModel struct {
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Email        string    `gorm:"column:email;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash"`
	Role         string    `gorm:"column:role"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type productModel struct {
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	Slug       string    `gorm:"column:slug;uniqueIndex"`
	Name       string    `gorm:"column:name"`
	PriceCents int64     `gorm:"column:price_cents"`
	Currency   string    `gorm:"column:currency"`
	FileURL    string    `gorm:"column:file_url"`
	Active     bool      `gorm:"column:active"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (productModel) TableName() string { return "products" }

type orderModel struct {
	OrderID     uuid.UUID  `gorm:"column:order_id;type:uuid;primaryKey"`
	OrderNumber string     `gorm:"column:order_number;uniqueIndex"`
	UserID      uuid.UUID  `gorm:"column:user_id"`
	Status      string     `gorm:"column:status"`
	TotalCents  int64      `gorm:"column:total_cents"`
	Currency    string     `gorm:"column:currency"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	FulfilledAt *time.Time `gorm:"column:fulfilled_at"`
}

func (orderModel) TableName() string { return "orders" }

type orderItemModel struct {
	ItemID         uuid.UUID  `gorm:"column:item_id;type:uuid;primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;index"`
	ProductID      uuid.UUID  `gorm:"column:product_id"`
	UnitPriceCents int64      `gorm:"column:unit_price_cents"`
	LicenseID      *uuid.UUID `gorm:"column:license_id"`
}

func (orderItemModel) TableName() string { return "order_items" }

type licenseModel struct {
	LicenseID   uuid.UUID `gorm:"column:license_id;type:uuid;primaryKey"`
	ProductID   uuid.UUID `gorm:"column:product_id"`
	UserID      uuid.UUID `gorm:"column:user_id;index"`
	OrderItemID uuid.UUID `gorm:"column:order_item_id"`
	Status      string    `gorm:"column:status"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (licenseModel) TableName() string { return "licenses" }

type downloadModel struct {
	DownloadID   uuid.UUID `gorm:"column:download_id;type:uuid;primaryKey"`
	LicenseID    uuid.UUID `gorm:"column:license_id;index"`
	UserID       uuid.UUID `gorm:"column:user_id"`
	ProductID    uuid.UUID `gorm:"column:product_id"`
	DownloadedAt time.Time `gorm:"column:downloaded_at"`
	IPHash       string    `gorm:"column:ip_hash"`
	Successful   bool      `gorm:"column:successful"`
}

func (downloadModel) TableName() string { return "downloads" }

type auditLogModel struct {
	EntryID    uuid.UUID  `gorm:"column:entry_id;type:uuid;primaryKey"`
	UserID     *uuid.UUID `gorm:"column:user_id;index"`
	Action     string     `gorm:"column:action"`
	Resource   string     `gorm:"column:resource"`
	ResourceID string     `gorm:"column:resource_id"`
	IPHash     string     `gorm:"column:ip_hash"`
	UserAgent  string     `gorm:"column:user_agent"`
	Details    *string    `gorm:"column:details"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
}

func (auditLogModel) TableName() string { return "audit_logs" }

type outboxModel struct {
	OutboxID     uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      string     `gorm:"column:payload"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
	RetryCount   int        `gorm:"column:retry_count"`
	LastError    *string    `gorm:"column:last_error"`
	LastErrorAt  *time.Time `gorm:"column:last_error_at"`
}

func (outboxModel) TableName() string { return "store_outbox" }
