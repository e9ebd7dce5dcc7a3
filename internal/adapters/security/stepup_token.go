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
)

type stepUpPayload struct {
	UserID    string `json:"u"`
	ExpiresAt int64  `json:"exp"`
}

// StepUpCodec signs the short-lived re-authentication token admins must
// present for destructive mutations. Same wire shape as the download token
// but a dedicated type keeps the two audiences from ever cross-verifying.
type StepUpCodec struct {
	secret []byte
	nowFn  func() time.Time
}

func NewStepUpCodec(secret string) (*StepUpCodec, error) {
	if secret == "" {
		return nil, errors.New("step-up token secret is required")
	}
	return &StepUpCodec{
		secret: []byte("stepup:" + secret),
		nowFn:  time.Now,
	}, nil
}

func (c *StepUpCodec) Mint(userID uuid.UUID, expiresAt time.Time) (string, error) {
	raw, err := json.Marshal(stepUpPayload{
		UserID:    userID.String(),
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + c.sign(payload), nil
}

func (c *StepUpCodec) Verify(token string) (uuid.UUID, bool) {
	payload, signature, ok := strings.Cut(token, ".")
	if !ok || payload == "" || signature == "" {
		return uuid.Nil, false
	}
	if !hmac.Equal([]byte(c.sign(payload)), []byte(signature)) {
		return uuid.Nil, false
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return uuid.Nil, false
	}
	var claims stepUpPayload
	if err := json.Unmarshal(raw, &claims); err != nil {
		return uuid.Nil, false
	}
	if claims.ExpiresAt <= 0 || claims.ExpiresAt < c.nowFn().Unix() {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

func (c *StepUpCodec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
