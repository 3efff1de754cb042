package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrSignatureMissing = errors.New("security: webhook signature missing")
	ErrSignatureInvalid = errors.New("security: webhook signature invalid")
)

// WebhookVerifier checks the HMAC-SHA256 signature the gateway puts on webhook
// deliveries. Chapa signs the raw body with the webhook secret as key; older
// deliveries sign the secret itself, which is accepted as well.
type WebhookVerifier struct {
	Secret string
}

// Enabled reports whether signatures are checked at all.
func (v WebhookVerifier) Enabled() bool {
	return v.Secret != ""
}

func (v WebhookVerifier) Verify(body []byte, signatures ...string) error {
	if !v.Enabled() {
		return nil
	}
	var provided []string
	for _, s := range signatures {
		if s = strings.TrimSpace(s); s != "" {
			provided = append(provided, strings.ToLower(s))
		}
	}
	if len(provided) == 0 {
		return ErrSignatureMissing
	}
	candidates := []string{Sign(v.Secret, body), Sign(v.Secret, []byte(v.Secret))}
	for _, got := range provided {
		for _, want := range candidates {
			if hmac.Equal([]byte(got), []byte(want)) {
				return nil
			}
		}
	}
	return ErrSignatureInvalid
}

// Sign returns the lowercase hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
