package domain

import (
	"time"

	"github.com/google/uuid"
)

// User roles. Customers buy and download; admins fulfill orders and read audit trails.
const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// License lifecycle states.
const (
	LicenseActive  = "ACTIVE"
	LicenseRevoked = "REVOKED"
	LicenseExpired = "EXPIRED"
)

// Order lifecycle states.
const (
	OrderPending   = "PENDING"
	OrderPaid      = "PAID"
	OrderFulfilled = "FULFILLED"
	OrderCancelled = "CANCELLED"
)

// User is the storefront account aggregate. Licenses and downloads hang off it
// for authorization purposes but persist independently of account deletion.
type User struct {
	UserID       uuid.UUID
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Product is a purchasable digital product. FileURL points at the hosted
// artifact and is only ever handed out through the download flow after
// origin validation.
type Product struct {
	ProductID  uuid.UUID
	Slug       string
	Name       string
	PriceCents int64
	Currency   string
	FileURL    string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Order is a purchase of one or more products. Fulfillment transitions
// PAID -> FULFILLED and issues one license per item.
type Order struct {
	OrderID     uuid.UUID
	OrderNumber string
	UserID      uuid.UUID
	Status      string
	TotalCents  int64
	Currency    string
	CreatedAt   time.Time
	FulfilledAt *time.Time
	Items       []OrderItem
}

type OrderItem struct {
	ItemID         uuid.UUID
	OrderID        uuid.UUID
	ProductID      uuid.UUID
	UnitPriceCents int64
	LicenseID      *uuid.UUID
}

// License grants one user a bounded number of downloads of one product.
// Created only by fulfillment; the download flow reads it but never mutates it.
type License struct {
	LicenseID   uuid.UUID
	ProductID   uuid.UUID
	UserID      uuid.UUID
	OrderItemID uuid.UUID
	Status      string
	CreatedAt   time.Time
}

// Download records one attempt to exercise a license. Rows are created
// optimistically when a token is minted and flipped to successful only when
// the redirect is actually served. Quota accounting counts successful rows
// within the rolling window; stale unsuccessful rows are reaped.
type Download struct {
	DownloadID   uuid.UUID
	LicenseID    uuid.UUID
	UserID       uuid.UUID
	ProductID    uuid.UUID
	DownloadedAt time.Time
	IPHash       string
	Successful   bool
}

// DownloadClaims is the transient capability minted after a quota check.
// It is never persisted; authenticity comes entirely from the HMAC signature,
// so quota and replay must be re-checked against the downloads table at
// redemption time, never assumed from the token.
type DownloadClaims struct {
	DownloadID uuid.UUID `json:"d"`
	UserID     uuid.UUID `json:"u"`
	ProductID  uuid.UUID `json:"p"`
	LicenseID  uuid.UUID `json:"l"`
	ExpiresAt  int64     `json:"exp"`
}

// Audit actions recorded by the storefront.
const (
	AuditDownloadRequested = "DOWNLOAD_REQUESTED"
	AuditDownloadDenied    = "DOWNLOAD_DENIED"
	AuditDownloadServed    = "DOWNLOAD_SERVED"
	AuditOrderFulfilled    = "ORDER_FULFILLED"
	AuditLoginSucceeded    = "LOGIN_SUCCEEDED"
	AuditStepUpIssued      = "STEP_UP_ISSUED"
)

// AuditEntry is an append-only record of a security-relevant action.
// It is never updated or deleted by the request path.
type AuditEntry struct {
	EntryID    uuid.UUID
	UserID     *uuid.UUID
	Action     string
	Resource   string
	ResourceID string
	IPHash     string
	UserAgent  string
	Details    map[string]any
	CreatedAt  time.Time
}

// QuotaStatus is the outcome of a rolling-window quota check.
type QuotaStatus struct {
	Allowed   bool
	Remaining int
}
