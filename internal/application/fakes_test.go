package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgecraft/storefront/internal/domain"
	"github.com/forgecraft/storefront/internal/ports"
)

// In-memory ports for service tests. Each fake mirrors the contract of its
// SQL counterpart, including the quota re-count in markSuccessful.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, params ports.CreateUserParams) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == params.Email {
			return domain.User{}, domain.ErrConflict
		}
	}
	user := domain.User{
		UserID:       uuid.New(),
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		CreatedAt:    params.CreatedAt,
		UpdatedAt:    params.CreatedAt,
	}
	r.users[user.UserID] = user
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, userID uuid.UUID) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) setRole(userID uuid.UUID, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[userID]
	u.Role = role
	r.users[userID] = u
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]domain.Product
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[uuid.UUID]domain.Product)}
}

func (r *fakeProductRepo) Create(_ context.Context, product domain.Product) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if product.ProductID == uuid.Nil {
		product.ProductID = uuid.New()
	}
	r.products[product.ProductID] = product
	return product, nil
}

func (r *fakeProductRepo) GetByID(_ context.Context, productID uuid.UUID) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (r *fakeProductRepo) GetBySlug(_ context.Context, slug string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.Slug == slug && p.Active {
			return p, nil
		}
	}
	return domain.Product{}, domain.ErrNotFound
}

func (r *fakeProductRepo) ListActive(_ context.Context) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) setFileURL(productID uuid.UUID, fileURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.products[productID]
	p.FileURL = fileURL
	r.products[productID] = p
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]domain.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]domain.Order)}
}

func (r *fakeOrderRepo) Create(_ context.Context, order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order.OrderID == uuid.Nil {
		order.OrderID = uuid.New()
	}
	r.orders[order.OrderID] = order
	return order, nil
}

func (r *fakeOrderRepo) GetByNumber(_ context.Context, orderNumber string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == orderNumber {
			return o, nil
		}
	}
	return domain.Order{}, domain.ErrNotFound
}

func (r *fakeOrderRepo) GetByID(_ context.Context, orderID uuid.UUID) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

type fakeLicenseRepo struct {
	mu       sync.Mutex
	licenses map[uuid.UUID]domain.License
	orders   *fakeOrderRepo
	outbox   []ports.OutboxEvent
}

func newFakeLicenseRepo(orders *fakeOrderRepo) *fakeLicenseRepo {
	return &fakeLicenseRepo{licenses: make(map[uuid.UUID]domain.License), orders: orders}
}

func (r *fakeLicenseRepo) IssueForOrderTx(_ context.Context, params ports.IssueLicensesParams) ([]domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders.mu.Lock()
	defer r.orders.mu.Unlock()

	order, ok := r.orders.orders[params.OrderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	switch order.Status {
	case domain.OrderPaid:
	case domain.OrderFulfilled:
		return nil, domain.ErrConflict
	default:
		return nil, domain.ErrOrderNotFulfillable
	}
	if len(order.Items) == 0 {
		return nil, domain.ErrOrderNotFulfillable
	}

	issued := make([]domain.License, 0, len(order.Items))
	for i := range order.Items {
		lic := domain.License{
			LicenseID:   uuid.New(),
			ProductID:   order.Items[i].ProductID,
			UserID:      order.UserID,
			OrderItemID: order.Items[i].ItemID,
			Status:      domain.LicenseActive,
			CreatedAt:   params.IssuedAt,
		}
		r.licenses[lic.LicenseID] = lic
		id := lic.LicenseID
		order.Items[i].LicenseID = &id
		issued = append(issued, lic)
	}
	order.Status = domain.OrderFulfilled
	at := params.IssuedAt
	order.FulfilledAt = &at
	r.orders.orders[order.OrderID] = order
	r.outbox = append(r.outbox, params.OutboxEvent)
	return issued, nil
}

func (r *fakeLicenseRepo) GetByID(_ context.Context, licenseID uuid.UUID) (domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lic, ok := r.licenses[licenseID]
	if !ok {
		return domain.License{}, domain.ErrNotFound
	}
	return lic, nil
}

func (r *fakeLicenseRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.License, 0)
	for _, lic := range r.licenses {
		if lic.UserID == userID {
			out = append(out, lic)
		}
	}
	return out, nil
}

func (r *fakeLicenseRepo) put(lic domain.License) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.licenses[lic.LicenseID] = lic
}

func (r *fakeLicenseRepo) setStatus(licenseID uuid.UUID, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lic := r.licenses[licenseID]
	lic.Status = status
	r.licenses[licenseID] = lic
}

type fakeDownloadRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]domain.Download
}

func newFakeDownloadRepo() *fakeDownloadRepo {
	return &fakeDownloadRepo{rows: make(map[uuid.UUID]domain.Download)}
}

func (r *fakeDownloadRepo) successfulSince(licenseID uuid.UUID, since time.Time) int {
	count := 0
	for _, d := range r.rows {
		if d.LicenseID == licenseID && d.Successful && !d.DownloadedAt.Before(since) {
			count++
		}
	}
	return count
}

func (r *fakeDownloadRepo) Reserve(_ context.Context, params ports.ReserveDownloadParams) (domain.Download, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.successfulSince(params.LicenseID, params.RequestedAt.Add(-params.Window)) >= params.Limit {
		return domain.Download{}, domain.ErrQuotaExceeded
	}
	d := domain.Download{
		DownloadID:   uuid.New(),
		LicenseID:    params.LicenseID,
		UserID:       params.UserID,
		ProductID:    params.ProductID,
		DownloadedAt: params.RequestedAt,
		IPHash:       params.IPHash,
		Successful:   false,
	}
	r.rows[d.DownloadID] = d
	return d, nil
}

func (r *fakeDownloadRepo) GetByID(_ context.Context, downloadID uuid.UUID) (domain.Download, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[downloadID]
	if !ok {
		return domain.Download{}, domain.ErrNotFound
	}
	return d, nil
}

func (r *fakeDownloadRepo) MarkSuccessful(_ context.Context, downloadID uuid.UUID, at time.Time, window time.Duration, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[downloadID]
	if !ok {
		return domain.ErrNotFound
	}
	if d.Successful {
		return domain.ErrConflict
	}
	if r.successfulSince(d.LicenseID, at.Add(-window)) >= limit {
		return domain.ErrQuotaExceeded
	}
	d.Successful = true
	d.DownloadedAt = at
	r.rows[downloadID] = d
	return nil
}

func (r *fakeDownloadRepo) CheckQuota(_ context.Context, licenseID uuid.UUID, since time.Time, limit int) (domain.QuotaStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := r.successfulSince(licenseID, since)
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return domain.QuotaStatus{Allowed: count < limit, Remaining: remaining}, nil
}

func (r *fakeDownloadRepo) DeleteStaleBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, d := range r.rows {
		if !d.Successful && d.DownloadedAt.Before(cutoff) {
			delete(r.rows, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeDownloadRepo) addSuccessful(licenseID, userID, productID uuid.UUID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := domain.Download{
		DownloadID:   uuid.New(),
		LicenseID:    licenseID,
		UserID:       userID,
		ProductID:    productID,
		DownloadedAt: at,
		IPHash:       "seed",
		Successful:   true,
	}
	r.rows[d.DownloadID] = d
}

type fakeAuditRepo struct {
	mu        sync.Mutex
	entries   []domain.AuditEntry
	insertErr error
}

func (r *fakeAuditRepo) Insert(_ context.Context, entry domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	if entry.EntryID == uuid.Nil {
		entry.EntryID = uuid.New()
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, query ports.AuditQuery) ([]domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditEntry, 0)
	for _, e := range r.entries {
		if query.Action != "" && e.Action != query.Action {
			continue
		}
		if query.Resource != "" && e.Resource != query.Resource {
			continue
		}
		if query.UserID != nil && (e.UserID == nil || *e.UserID != *query.UserID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeThrottle struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func newFakeThrottle() *fakeThrottle {
	return &fakeThrottle{counts: make(map[string]int)}
}

func (s *fakeThrottle) Hit(_ context.Context, key string, _ time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.counts[key]++
	return s.counts[key], nil
}

func reserveParamsFor(lic domain.License, actor Actor, at time.Time) ports.ReserveDownloadParams {
	return ports.ReserveDownloadParams{
		LicenseID:   lic.LicenseID,
		UserID:      actor.UserID,
		ProductID:   lic.ProductID,
		IPHash:      "seed",
		RequestedAt: at,
		Window:      14 * 24 * time.Hour,
		Limit:       3,
	}
}

// plainHasher avoids bcrypt cost in unit tests.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Compare(hash, password string) error {
	if hash != "plain:"+password {
		return errors.New("mismatch")
	}
	return nil
}
