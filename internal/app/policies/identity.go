package policies

import (
	"context"
	"errors"
	"strings"
)

var ErrIdentityRequired = errors.New("policies: caller identity required")

// Requested is implemented by messages issued on behalf of a user.
type Requested interface {
	Requester() string
}

// IdentityAuthorizer rejects user messages that reach the core without an
// explicit requester. System messages (sweeper, replay) do not implement
// Requested and pass through.
type IdentityAuthorizer struct{}

func (IdentityAuthorizer) Authorize(_ context.Context, message any) error {
	r, ok := message.(Requested)
	if !ok {
		return nil
	}
	if strings.TrimSpace(r.Requester()) == "" {
		return ErrIdentityRequired
	}
	return nil
}
