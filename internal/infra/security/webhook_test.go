package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"staypay/internal/infra/security"
)

func TestWebhookVerifier(t *testing.T) {
	body := []byte(`{"tx_ref":"booking_b1_u1","status":"success"}`)
	v := security.WebhookVerifier{Secret: "whsec"}

	assert.NoError(t, v.Verify(body, security.Sign("whsec", body)))
	assert.NoError(t, v.Verify(body, "", strings.ToUpper(security.Sign("whsec", body))))
	assert.NoError(t, v.Verify(body, security.Sign("whsec", []byte("whsec"))))
	assert.ErrorIs(t, v.Verify(body), security.ErrSignatureMissing)
	assert.ErrorIs(t, v.Verify(body, security.Sign("other", body)), security.ErrSignatureInvalid)

	assert.NoError(t, security.WebhookVerifier{}.Verify(body), "no secret configured")
}
