package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// IPHasher keys requester addresses with HMAC-SHA256 before they are stored
// on download and audit rows. Without a secret the hash would be a dictionary
// lookup over the IPv4 space, so a missing secret degrades to a stable
// non-identifying placeholder instead.
type IPHasher struct {
	secret []byte
}

func NewIPHasher(secret string) *IPHasher {
	return &IPHasher{secret: []byte(secret)}
}

func (h *IPHasher) Hash(ip string) string {
	if ip == "" || len(h.secret) == 0 {
		return "unknown"
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}
