package policies_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"staypay/internal/app/policies"
)

type userMessage struct{ id string }

func (m userMessage) Requester() string { return m.id }

func TestIdentityAuthorizer(t *testing.T) {
	a := policies.IdentityAuthorizer{}
	ctx := context.Background()

	assert.NoError(t, a.Authorize(ctx, userMessage{id: "u1"}))
	assert.ErrorIs(t, a.Authorize(ctx, userMessage{id: "  "}), policies.ErrIdentityRequired)
	assert.NoError(t, a.Authorize(ctx, struct{}{}), "system messages carry no requester")
}
