package postgres

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/forgecraft/storefront/internal/domain"
	"github.com/forgecraft/storefront/internal/ports"
)

// openTestDB runs repositories against a throwaway SQLite file. The schema
// comes from the gorm models rather than the SQL migrations, which stay
// postgres-only.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "storefront.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedLicense(t *testing.T, repos Repositories) (domain.User, domain.Product, domain.License) {
	t.Helper()
	ctx := context.Background()

	user, err := repos.Users.Create(ctx, ports.CreateUserParams{
		Email:        "buyer@example.com",
		PasswordHash: "hash",
		Role:         domain.RoleCustomer,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	product, err := repos.Products.Create(ctx, domain.Product{
		Slug:     "synth-pack",
		Name:     "Synth Pack",
		Currency: "USD",
		FileURL:  "https://files.example.com/synth.zip",
		Active:   true,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	order, err := repos.Orders.Create(ctx, domain.Order{
		OrderNumber: "ORD-1",
		UserID:      user.UserID,
		Status:      domain.OrderPaid,
		Currency:    "USD",
		CreatedAt:   time.Now().UTC(),
		Items:       []domain.OrderItem{{ProductID: product.ProductID, UnitPriceCents: 2900}},
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	licenses, err := repos.Licenses.IssueForOrderTx(ctx, ports.IssueLicensesParams{
		OrderID:  order.OrderID,
		IssuedAt: time.Now().UTC(),
		OutboxEvent: ports.OutboxEvent{
			EventID:      uuid.New(),
			EventType:    "license.issued",
			PartitionKey: user.UserID.String(),
			Payload:      []byte(`{}`),
			OccurredAt:   time.Now().UTC(),
		},
	})
	if err != nil {
		t.Fatalf("seed license: %v", err)
	}
	return user, product, licenses[0]
}

func TestIssueForOrderTx(t *testing.T) {
	t.Parallel()

	repos := NewRepositories(openTestDB(t))
	ctx := context.Background()
	user, product, license := seedLicense(t, repos)

	if license.UserID != user.UserID || license.ProductID != product.ProductID {
		t.Fatalf("license links wrong: %+v", license)
	}
	if license.Status != domain.LicenseActive {
		t.Fatalf("license status = %q, want ACTIVE", license.Status)
	}

	order, err := repos.Orders.GetByNumber(ctx, "ORD-1")
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if order.Status != domain.OrderFulfilled || order.FulfilledAt == nil {
		t.Fatalf("order not fulfilled: %+v", order)
	}
	if len(order.Items) != 1 || order.Items[0].LicenseID == nil || *order.Items[0].LicenseID != license.LicenseID {
		t.Fatalf("order item not linked to license: %+v", order.Items)
	}

	// Fulfilling again must conflict, not duplicate licenses.
	if _, err := repos.Licenses.IssueForOrderTx(ctx, ports.IssueLicensesParams{
		OrderID:     order.OrderID,
		IssuedAt:    time.Now().UTC(),
		OutboxEvent: ports.OutboxEvent{EventID: uuid.New(), EventType: "license.issued", Payload: []byte(`{}`), OccurredAt: time.Now().UTC()},
	}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("refulfill error = %v, want ErrConflict", err)
	}

	pending, err := repos.Outbox.FetchUnpublished(ctx, 10)
	if err != nil {
		t.Fatalf("fetch outbox: %v", err)
	}
	if len(pending) != 1 || pending[0].EventType != "license.issued" {
		t.Fatalf("expected one license.issued event, got %+v", pending)
	}
}

func TestIssueForOrderTxRejectsUnpaid(t *testing.T) {
	t.Parallel()

	repos := NewRepositories(openTestDB(t))
	ctx := context.Background()

	order, err := repos.Orders.Create(ctx, domain.Order{
		OrderNumber: "ORD-2",
		UserID:      uuid.New(),
		Status:      domain.OrderPending,
		CreatedAt:   time.Now().UTC(),
		Items:       []domain.OrderItem{{ProductID: uuid.New()}},
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}

	if _, err := repos.Licenses.IssueForOrderTx(ctx, ports.IssueLicensesParams{
		OrderID:     order.OrderID,
		IssuedAt:    time.Now().UTC(),
		OutboxEvent: ports.OutboxEvent{EventID: uuid.New(), EventType: "license.issued", Payload: []byte(`{}`), OccurredAt: time.Now().UTC()},
	}); !errors.Is(err, domain.ErrOrderNotFulfillable) {
		t.Fatalf("unpaid fulfill error = %v, want ErrOrderNotFulfillable", err)
	}
}

func TestReserveEnforcesQuota(t *testing.T) {
	t.Parallel()

	repos := NewRepositories(openTestDB(t))
	ctx := context.Background()
	user, product, license := seedLicense(t, repos)

	now := time.Now().UTC()
	params := ports.ReserveDownloadParams{
		LicenseID:   license.LicenseID,
		UserID:      user.UserID,
		ProductID:   product.ProductID,
		IPHash:      "hash",
		RequestedAt: now,
		Window:      14 * 24 * time.Hour,
		Limit:       3,
	}

	// Three reserve+mark cycles fill the window.
	for i := 0; i < 3; i++ {
		d, err := repos.Downloads.Reserve(ctx, params)
		if err != nil {
			t.Fatalf("reserve %d failed: %v", i, err)
		}
		if d.Successful {
			t.Fatalf("reserve %d should create a pending row", i)
		}
		if err := repos.Downloads.MarkSuccessful(ctx, d.DownloadID, now, params.Window, params.Limit); err != nil {
			t.Fatalf("mark %d failed: %v", i, err)
		}
	}

	if _, err := repos.Downloads.Reserve(ctx, params); !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("fourth reserve error = %v, want ErrQuotaExceeded", err)
	}

	quota, err := repos.Downloads.CheckQuota(ctx, license.LicenseID, now.Add(-params.Window), params.Limit)
	if err != nil {
		t.Fatalf("check quota: %v", err)
	}
	if quota.Allowed || quota.Remaining != 0 {
		t.Fatalf("quota = %+v, want exhausted", quota)
	}

	// Rows before the since bound do not count toward the quota.
	quota, err = repos.Downloads.CheckQuota(ctx, license.LicenseID, now.Add(time.Hour), params.Limit)
	if err != nil {
		t.Fatalf("check quota: %v", err)
	}
	if !quota.Allowed || quota.Remaining != 3 {
		t.Fatalf("future-window quota = %+v, want all free", quota)
	}
}

func TestMarkSuccessfulRechecksAndRejectsReplay(t *testing.T) {
	t.Parallel()

	repos := NewRepositories(openTestDB(t))
	ctx := context.Background()
	user, product, license := seedLicense(t, repos)

	now := time.Now().UTC()
	params := ports.ReserveDownloadParams{
		LicenseID:   license.LicenseID,
		UserID:      user.UserID,
		ProductID:   product.ProductID,
		IPHash:      "hash",
		RequestedAt: now,
		Window:      14 * 24 * time.Hour,
		Limit:       1,
	}

	first, err := repos.Downloads.Reserve(ctx, params)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := repos.Downloads.MarkSuccessful(ctx, first.DownloadID, now, params.Window, params.Limit); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	// Replay of the same download row.
	if err := repos.Downloads.MarkSuccessful(ctx, first.DownloadID, now, params.Window, params.Limit); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("replay error = %v, want ErrConflict", err)
	}

	// A second pending row reserved before the first succeeded cannot be
	// flipped once the window is full.
	if _, err := repos.Downloads.Reserve(ctx, params); !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("reserve after fill error = %v, want ErrQuotaExceeded", err)
	}
}

func TestDeleteStaleBeforeKeepsSuccessfulRows(t *testing.T) {
	t.Parallel()

	repos := NewRepositories(openTestDB(t))
	ctx := context.Background()
	user, product, license := seedLicense(t, repos)

	now := time.Now().UTC()
	params := ports.ReserveDownloadParams{
		LicenseID:   license.LicenseID,
		UserID:      user.UserID,
		ProductID:   product.ProductID,
		IPHash:      "hash",
		Window:      14 * 24 * time.Hour,
		Limit:       3,
	}

	params.RequestedAt = now.Add(-48 * time.Hour)
	staleSuccessful, err := repos.Downloads.Reserve(ctx, params)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := repos.Downloads.MarkSuccessful(ctx, staleSuccessful.DownloadID, now.Add(-48*time.Hour), params.Window, params.Limit); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	params.RequestedAt = now.Add(-30 * time.Hour)
	stalePending, err := repos.Downloads.Reserve(ctx, params)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	params.RequestedAt = now.Add(-time.Hour)
	freshPending, err := repos.Downloads.Reserve(ctx, params)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	deleted, err := repos.Downloads.DeleteStaleBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete stale: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if _, err := repos.Downloads.GetByID(ctx, stalePending.DownloadID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("stale pending row should be deleted, got %v", err)
	}
	if _, err := repos.Downloads.GetByID(ctx, staleSuccessful.DownloadID); err != nil {
		t.Fatalf("old successful row must survive: %v", err)
	}
	if _, err := repos.Downloads.GetByID(ctx, freshPending.DownloadID); err != nil {
		t.Fatalf("fresh pending row must survive: %v", err)
	}
}

func TestUserRepositoryUniqueEmail(t *testing.T) {
	t.Parallel()

	repos := NewRepositories(openTestDB(t))
	ctx := context.Background()

	params := ports.CreateUserParams{
		Email:        "dup@example.com",
		PasswordHash: "hash",
		Role:         domain.RoleCustomer,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := repos.Users.Create(ctx, params); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := repos.Users.Create(ctx, params); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate email error = %v, want ErrConflict", err)
	}
}

func TestAuditRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repos := NewRepositories(openTestDB(t))
	ctx := context.Background()

	userID := uuid.New()
	entry := domain.AuditEntry{
		UserID:     &userID,
		Action:     domain.AuditDownloadServed,
		Resource:   "license",
		ResourceID: uuid.NewString(),
		IPHash:     "hash",
		UserAgent:  "tests",
		Details:    map[string]any{"download_id": uuid.NewString()},
		CreatedAt:  time.Now().UTC(),
	}
	if err := repos.Audit.Insert(ctx, entry); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := repos.Audit.Insert(ctx, domain.AuditEntry{
		Action:    domain.AuditLoginSucceeded,
		Resource:  "user",
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("insert without details failed: %v", err)
	}

	got, err := repos.Audit.List(ctx, ports.AuditQuery{UserID: &userID})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("entry count = %d, want 1", len(got))
	}
	if got[0].Action != domain.AuditDownloadServed {
		t.Fatalf("unexpected action %q", got[0].Action)
	}
	if got[0].Details["download_id"] != entry.Details["download_id"] {
		t.Fatalf("details mismatch: %+v", got[0].Details)
	}
}

func TestOutboxRetryBookkeeping(t *testing.T) {
	t.Parallel()

	repos := NewRepositories(openTestDB(t))
	ctx := context.Background()

	event := ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    "license.issued",
		PartitionKey: "user-1",
		Payload:      []byte(`{"order":"ORD-9"}`),
		OccurredAt:   time.Now().UTC(),
	}
	if err := repos.Outbox.Enqueue(ctx, event); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	now := time.Now().UTC()
	if err := repos.Outbox.MarkFailed(ctx, event.EventID, "broker down", now); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	pending, err := repos.Outbox.FetchUnpublished(ctx, 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(pending) != 1 || pending[0].RetryCount != 1 || pending[0].LastError == nil {
		t.Fatalf("retry bookkeeping wrong: %+v", pending)
	}

	if err := repos.Outbox.MarkPublished(ctx, event.EventID, now); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	pending, err = repos.Outbox.FetchUnpublished(ctx, 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("published event still pending: %+v", pending)
	}
}
