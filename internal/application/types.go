package application

import (
	"time"

	"github.com/google/uuid"
)

type Config struct {
	DownloadLimit    int
	DownloadWindow   time.Duration
	DownloadTokenTTL time.Duration
	StaleDownloadAge time.Duration
	SessionTTL       time.Duration
	StepUpTTL        time.Duration
	MintThrottleMax  int
	MintThrottleWin  time.Duration
	LoginThrottleMax int
	LoginThrottleWin time.Duration
}

// Actor is the authenticated caller, extracted from session claims plus
// request metadata the handlers read off the wire.
type Actor struct {
	UserID    uuid.UUID
	Email     string
	Role      string
	IPAddress string
	UserAgent string
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	UserID uuid.UUID `json:"user_id"`
}

type LoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expires_in"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
}

type StepUpRequest struct {
	Password string `json:"password"`
}

type StepUpResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ProductView struct {
	ProductID  uuid.UUID `json:"product_id"`
	Slug       string    `json:"slug"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Currency   string    `json:"currency"`
}

type LicenseView struct {
	LicenseID uuid.UUID `json:"license_id"`
	ProductID uuid.UUID `json:"product_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// DownloadGrant is the mint-endpoint response: a short-lived capability plus
// the remaining quota after this reservation.
type DownloadGrant struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Remaining int       `json:"remaining"`
}

type QuotaView struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
}

type FulfillResponse struct {
	OrderNumber string      `json:"order_number"`
	LicenseIDs  []uuid.UUID `json:"license_ids"`
}

type AuditLogQuery struct {
	UserID   string
	Action   string
	Resource string
	Limit    int
	Offset   int
}

type AuditLogView struct {
	EntryID    uuid.UUID      `json:"entry_id"`
	UserID     *uuid.UUID     `json:"user_id,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
