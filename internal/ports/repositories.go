package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/forgecraft/storefront/internal/domain"
)

// CreateUserParams captures the inputs for account creation.
type CreateUserParams struct {
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// UserRepository defines persistence operations for storefront accounts.
type UserRepository interface {
	Create(ctx context.Context, params CreateUserParams) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
}

// ProductRepository reads the digital-product catalog. Catalog mutation is an
// admin concern handled elsewhere; the download flow only ever reads.
type ProductRepository interface {
	Create(ctx context.Context, product domain.Product) (domain.Product, error)
	GetByID(ctx context.Context, productID uuid.UUID) (domain.Product, error)
	GetBySlug(ctx context.Context, slug string) (domain.Product, error)
	ListActive(ctx context.Context) ([]domain.Product, error)
}

// OrderRepository reads orders for fulfillment. Order creation/payment is the
// checkout collaborator's concern.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) (domain.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	GetByID(ctx context.Context, orderID uuid.UUID) (domain.Order, error)
}

// IssueLicensesParams carries everything fulfillment writes atomically:
// licenses, the order status flip, and the outbox event. A single transaction
// keeps "order fulfilled" and "licenses exist" from ever diverging.
type IssueLicensesParams struct {
	OrderID     uuid.UUID
	IssuedAt    time.Time
	OutboxEvent OutboxEvent
}

// LicenseRepository owns license issuance and reads.
type LicenseRepository interface {
	// IssueForOrderTx creates one ACTIVE license per order item, links each
	// item to its license, marks the order FULFILLED, and enqueues the outbox
	// event, all in one transaction. Returns domain.ErrOrderNotFulfillable if
	// the order is not PAID and domain.ErrNotFound if it does not exist.
	IssueForOrderTx(ctx context.Context, params IssueLicensesParams) ([]domain.License, error)
	GetByID(ctx context.Context, licenseID uuid.UUID) (domain.License, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.License, error)
}

// ReserveDownloadParams are the inputs for a quota-guarded download reservation.
type ReserveDownloadParams struct {
	LicenseID   uuid.UUID
	UserID      uuid.UUID
	ProductID   uuid.UUID
	IPHash      string
	RequestedAt time.Time
	Window      time.Duration
	Limit       int
}

// DownloadRepository owns download-attempt rows and the quota invariant.
//
// Both Reserve and MarkSuccessful take the window/limit and re-count inside a
// transaction that locks the license row, so two concurrent requests cannot
// both pass the check before either commits.
type DownloadRepository interface {
	// Reserve counts successful downloads in the trailing window and, when
	// below the limit, inserts a pending (successful=false) row. Returns
	// domain.ErrQuotaExceeded when the window is exhausted.
	Reserve(ctx context.Context, params ReserveDownloadParams) (domain.Download, error)
	GetByID(ctx context.Context, downloadID uuid.UUID) (domain.Download, error)
	// MarkSuccessful flips a pending row to successful after re-checking the
	// quota under the same lock. Returns domain.ErrQuotaExceeded when the
	// window filled up between mint and redemption, and domain.ErrConflict
	// when the row is already successful (replayed token).
	MarkSuccessful(ctx context.Context, downloadID uuid.UUID, at time.Time, window time.Duration, limit int) error
	// CheckQuota reports the remaining slots without reserving one.
	CheckQuota(ctx context.Context, licenseID uuid.UUID, since time.Time, limit int) (domain.QuotaStatus, error)
	// DeleteStaleBefore removes unsuccessful rows older than cutoff. Successful
	// rows are never touched regardless of age.
	DeleteStaleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditQuery filters the admin audit-log listing.
type AuditQuery struct {
	UserID   *uuid.UUID
	Action   string
	Resource string
	Limit    int
	Offset   int
}

// AuditRepository appends and lists audit entries. The application wraps
// Insert in a best-effort sink; the repository itself reports errors normally.
type AuditRepository interface {
	Insert(ctx context.Context, entry domain.AuditEntry) error
	List(ctx context.Context, query AuditQuery) ([]domain.AuditEntry, error)
}

// OutboxEvent is the write-side event payload prior to storage.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry metadata.
type OutboxRecord struct {
	OutboxID     uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	RetryCount   int
	LastError    *string
	CreatedAt    time.Time
	PublishedAt  *time.Time
	LastErrorAt  *time.Time
}

// OutboxRepository controls the publish-retry workflow for domain events.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, errMsg string, at time.Time) error
}
