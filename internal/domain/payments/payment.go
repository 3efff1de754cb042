package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staypay/internal/domain/booking"
	"staypay/internal/domain/shared/events"
	"staypay/internal/domain/shared/money"
)

var (
	ErrNotFound           = errors.New("payments: payment not found")
	ErrAlreadyInitiated   = errors.New("payments: booking already has a live payment")
	ErrDuplicateReference = errors.New("payments: transaction reference already exists")
	ErrConcurrentUpdate   = errors.New("payments: concurrent update detected")
	ErrInvalidAmount      = errors.New("payments: amount must be non-negative")
)

type PaymentID string

// Reference is the transaction reference shared with the gateway. It is the only
// key used to correlate a verification with a local payment.
type Reference string

func (r Reference) String() string { return string(r) }

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Live reports whether the status counts towards the one-live-payment-per-booking rule.
func (s Status) Live() bool {
	return s == StatusPending || s == StatusCompleted
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RemoteStatus is the verdict reported by the gateway for a transaction.
type RemoteStatus string

const (
	RemoteSuccess RemoteStatus = "success"
	RemoteFailed  RemoteStatus = "failed"
	RemotePending RemoteStatus = "pending"
)

// MapRemote converts a gateway verdict into a local status. Only an explicit
// success completes a payment; everything else, including unknown values, fails it.
func MapRemote(remote RemoteStatus) Status {
	if RemoteStatus(strings.ToLower(strings.TrimSpace(string(remote)))) == RemoteSuccess {
		return StatusCompleted
	}
	return StatusFailed
}

// NewReference derives the reference for a payment attempt. The first attempt
// uses booking_<booking>_<payer>; later attempts append the attempt number.
func NewReference(bookingID booking.BookingID, payerID string, attempt int) Reference {
	ref := fmt.Sprintf("booking_%s_%s", bookingID, payerID)
	if attempt > 1 {
		ref = fmt.Sprintf("%s_%d", ref, attempt)
	}
	return Reference(ref)
}

type Payment struct {
	ID           PaymentID
	BookingID    booking.BookingID
	PayerID      string
	Reference    Reference
	Amount       money.Money
	Status       Status
	Attempt      int
	RemoteStatus RemoteStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
	VerifiedAt   time.Time
	Version      int64
	events.EventRecorder
}

type Repository interface {
	// Create persists a new pending payment. It fails with ErrAlreadyInitiated when
	// the booking already has a live payment and with ErrDuplicateReference when
	// the reference is taken; both checks are atomic with the insert.
	Create(ctx context.Context, payment *Payment) error
	// Save updates an existing payment if its stored version still matches. A
	// payment turning live again fails with ErrAlreadyInitiated while another
	// attempt for the booking is live.
	Save(ctx context.Context, payment *Payment) error
	ByReference(ctx context.Context, ref Reference) (*Payment, error)
	LiveByBooking(ctx context.Context, bookingID booking.BookingID) (*Payment, error)
	ListByBooking(ctx context.Context, bookingID booking.BookingID) ([]*Payment, error)
	ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]*Payment, error)
}

type CreateParams struct {
	ID        PaymentID
	BookingID booking.BookingID
	PayerID   string
	Reference Reference
	Amount    money.Money
	Attempt   int
	Now       time.Time
}

// NewPayment records a pending payment whose amount is frozen from here on.
func NewPayment(params CreateParams) (*Payment, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("payments: id required")
	}
	if strings.TrimSpace(string(params.BookingID)) == "" {
		return nil, errors.New("payments: booking id required")
	}
	if strings.TrimSpace(string(params.Reference)) == "" {
		return nil, errors.New("payments: reference required")
	}
	if params.Amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	attempt := params.Attempt
	if attempt < 1 {
		attempt = 1
	}
	now := params.Now.UTC()
	p := &Payment{
		ID:        params.ID,
		BookingID: params.BookingID,
		PayerID:   params.PayerID,
		Reference: params.Reference,
		Amount:    params.Amount,
		Status:    StatusPending,
		Attempt:   attempt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.Record(PaymentInitiated{
		PaymentID: p.ID,
		BookingID: p.BookingID,
		Reference: p.Reference,
		Amount:    p.Amount.String(),
		Currency:  p.Amount.Currency,
		At:        now,
	})
	return p, nil
}

// Reconcile applies MapRemote to the gateway verdict and reports whether the
// status changed. Repeating the verdict a payment already reflects leaves it
// untouched; a different verdict moves even a terminal payment.
func (p *Payment) Reconcile(remote RemoteStatus, now time.Time) bool {
	next := MapRemote(remote)
	if next == p.Status {
		return false
	}
	now = now.UTC()
	p.Status = next
	p.RemoteStatus = remote
	p.UpdatedAt = now
	p.VerifiedAt = now
	switch p.Status {
	case StatusCompleted:
		p.Record(PaymentCompleted{PaymentID: p.ID, BookingID: p.BookingID, Reference: p.Reference, Amount: p.Amount.String(), Currency: p.Amount.Currency, At: now})
	default:
		p.Record(PaymentFailed{PaymentID: p.ID, BookingID: p.BookingID, Reference: p.Reference, RemoteStatus: string(remote), At: now})
	}
	return true
}

// Drifted reports whether a terminal payment disagrees with a fresh gateway verdict.
func (p *Payment) Drifted(remote RemoteStatus) bool {
	return p.Status.Terminal() && MapRemote(remote) != p.Status
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	clone.EventRecorder = events.EventRecorder{}
	return &clone
}
