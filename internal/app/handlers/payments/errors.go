package payments

import (
	"errors"
	"time"
)

var (
	ErrBookingNotFound         = errors.New("payments: booking not found")
	ErrPaymentAlreadyInitiated = errors.New("payments: payment already initiated for booking")
	ErrPaymentNotFound         = errors.New("payments: payment not found")
	ErrInitiationFailed        = errors.New("payments: payment initiation failed")
	ErrGatewayUnavailable      = errors.New("payments: gateway unavailable, retry verification")
	ErrReferenceRequired       = errors.New("payments: transaction reference is required")
	ErrPayerRequired           = errors.New("payments: payer is required")
	ErrPaymentConflict         = errors.New("payments: gateway settled a payment while another attempt is live")
)

// ReplayableErrors are the failures an Idempotency-Key replay must reproduce
// with their identity intact so the caller sees the same status again.
func ReplayableErrors() []error {
	return []error{
		ErrBookingNotFound,
		ErrPaymentAlreadyInitiated,
		ErrInitiationFailed,
		ErrPayerRequired,
	}
}

func nowFunc(fn func() time.Time) time.Time {
	if fn != nil {
		return fn().UTC()
	}
	return time.Now().UTC()
}
