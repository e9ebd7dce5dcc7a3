package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forgecraft/storefront/internal/domain"
)

// DownloadTokenCodec signs download capabilities with HMAC-SHA256 over a
// base64url JSON payload: payload + "." + signature. The codec is stateless;
// the only state that matters (how many successful downloads exist) lives in
// the downloads table and is re-checked at redemption.
type DownloadTokenCodec struct {
	secret []byte
	nowFn  func() time.Time
}

func NewDownloadTokenCodec(secret string) (*DownloadTokenCodec, error) {
	if secret == "" {
		return nil, errors.New("download token secret is required")
	}
	return &DownloadTokenCodec{
		secret: []byte(secret),
		nowFn:  time.Now,
	}, nil
}

func (c *DownloadTokenCodec) Mint(claims domain.DownloadClaims) (string, error) {
	raw, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + c.sign(payload), nil
}

// Verify returns (zero, false) on any failure. Malformed, tampered, and
// expired tokens are deliberately indistinguishable to the caller so no
// replay-detection information leaks.
func (c *DownloadTokenCodec) Verify(token string) (domain.DownloadClaims, bool) {
	payload, signature, ok := strings.Cut(token, ".")
	if !ok || payload == "" || signature == "" {
		return domain.DownloadClaims{}, false
	}

	if !hmac.Equal([]byte(c.sign(payload)), []byte(signature)) {
		return domain.DownloadClaims{}, false
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return domain.DownloadClaims{}, false
	}
	var claims domain.DownloadClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return domain.DownloadClaims{}, false
	}

	if claims.ExpiresAt <= 0 || claims.ExpiresAt < c.nowFn().Unix() {
		return domain.DownloadClaims{}, false
	}
	if claims.DownloadID == uuid.Nil || claims.UserID == uuid.Nil ||
		claims.ProductID == uuid.Nil || claims.LicenseID == uuid.Nil {
		return domain.DownloadClaims{}, false
	}
	return claims, true
}

func (c *DownloadTokenCodec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
