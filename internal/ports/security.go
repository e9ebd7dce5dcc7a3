package ports

import (
	"time"

	"github.com/google/uuid"

	"github.com/forgecraft/storefront/internal/domain"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// AuthClaims is the session identity carried by a signed session token.
type AuthClaims struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	KeyID     string    `json:"kid"`
}

type SessionSigner interface {
	Sign(claims AuthClaims) (string, error)
	ParseAndValidate(token string) (AuthClaims, error)
}

// DownloadTokenCodec mints and verifies the signed download capability.
//
// Verify returns (zero, false) on any failure: malformed token, bad signature,
// missing or past expiry. Callers must not be able to distinguish the causes.
type DownloadTokenCodec interface {
	Mint(claims domain.DownloadClaims) (string, error)
	Verify(token string) (domain.DownloadClaims, bool)
}

// StepUpCodec mints and verifies the short-lived admin re-authentication token.
type StepUpCodec interface {
	Mint(userID uuid.UUID, expiresAt time.Time) (string, error)
	Verify(token string) (uuid.UUID, bool)
}

// IPHasher keys requester addresses before storage so audit rows and download
// rows never hold raw IPs.
type IPHasher interface {
	Hash(ip string) string
}
