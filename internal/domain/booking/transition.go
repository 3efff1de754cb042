package booking

import (
	"context"
	"fmt"
	"time"
)

// TransitionError reports a rejected status change.
type TransitionError struct {
	Code string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	if e.From == "" && e.To == "" {
		return "booking: " + e.Code
	}
	return fmt.Sprintf("booking: %s from %s to %s", e.Code, e.From, e.To)
}

// Is matches any TransitionError carrying the same code.
func (e *TransitionError) Is(target error) bool {
	t, ok := target.(*TransitionError)
	return ok && t.Code == e.Code
}

var (
	ErrIllegalTransition = &TransitionError{Code: "illegal_transition"}
	ErrUnauthorized      = &TransitionError{Code: "unauthorized"}
)

type ActorKind string

const (
	ActorGuest  ActorKind = "guest"
	ActorHost   ActorKind = "host"
	ActorSystem ActorKind = "system"
)

// Actor is whoever asks for a status change. The state machine never decides who
// an actor is; that comes from the caller.
type Actor struct {
	ID   string
	Kind ActorKind
}

// SystemActor is the payment system acting on its own behalf.
var SystemActor = Actor{ID: "system", Kind: ActorSystem}

// TransitionPolicy decides whether actor may move the booking to target.
type TransitionPolicy interface {
	Allows(ctx context.Context, actor Actor, b *Booking, target Status) (bool, error)
}

// PolicyFunc adapts a plain function to TransitionPolicy.
type PolicyFunc func(ctx context.Context, actor Actor, b *Booking, target Status) (bool, error)

func (f PolicyFunc) Allows(ctx context.Context, actor Actor, b *Booking, target Status) (bool, error) {
	return f(ctx, actor, b, target)
}

var transitions = map[Status][]Status{
	StatusPending: {StatusConfirmed, StatusCancelled},
}

// CanTransition reports whether target is reachable from from in one step.
func CanTransition(from, target Status) bool {
	for _, next := range transitions[from] {
		if next == target {
			return true
		}
	}
	return false
}

// Transition moves the booking to target. The graph is checked before the policy,
// and a nil policy authorizes nobody. The caller persists the result.
func (b *Booking) Transition(ctx context.Context, target Status, actor Actor, policy TransitionPolicy, now time.Time) error {
	if !CanTransition(b.Status, target) {
		return &TransitionError{Code: ErrIllegalTransition.Code, From: b.Status, To: target}
	}
	if policy == nil || actor.ID == "" {
		return &TransitionError{Code: ErrUnauthorized.Code, From: b.Status, To: target}
	}
	allowed, err := policy.Allows(ctx, actor, b, target)
	if err != nil {
		return fmt.Errorf("booking: authorize transition: %w", err)
	}
	if !allowed {
		return &TransitionError{Code: ErrUnauthorized.Code, From: b.Status, To: target}
	}
	b.Status = target
	b.UpdatedAt = now.UTC()
	return nil
}
