package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"staypay/internal/app/commands"
	handlersupport "staypay/internal/app/handlers/support"
	"staypay/internal/app/middleware"
	"staypay/internal/app/outbox"
	"staypay/internal/app/policies"
	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
	domainpayments "staypay/internal/domain/payments"
	"staypay/internal/domain/pricing"
	"staypay/internal/domain/shared/money"
)

const initiatePaymentKey = "payments.initiate"

type InitiatePaymentCommand struct {
	BookingID       string
	Payer           policies.PayerInfo
	IdempotencyKeyV string
}

func (c InitiatePaymentCommand) Key() string { return initiatePaymentKey }

func (c InitiatePaymentCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return initiatePaymentKey + ":" + c.Payer.ID + ":" + c.IdempotencyKeyV
}

func (c InitiatePaymentCommand) ResultPrototype() any { return &InitiatePaymentResult{} }

func (c InitiatePaymentCommand) ManagesTransaction() bool { return true }

func (c InitiatePaymentCommand) Requester() string { return c.Payer.ID }

type InitiatePaymentResult struct {
	PaymentID   string `json:"payment_id"`
	CheckoutURL string `json:"checkout_url"`
	Reference   string `json:"transaction_reference"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

// InitiatePaymentHandler opens a gateway transaction for a booking and records the
// pending payment only after the gateway accepted it.
type InitiatePaymentHandler struct {
	UoWFactory  uow.UoWFactory
	Gateway     policies.PaymentGateway
	Locker      policies.Locker
	Outbox      outbox.Outbox
	Encoder     outbox.EventEncoder
	CallbackURL string
	ReturnURL   string
	Title       string
	Logger      *slog.Logger
	Now         func() time.Time
	NewID       func() string
}

type initiationPlan struct {
	booking   *domainbooking.Booking
	amount    money.Money
	reference domainpayments.Reference
	attempt   int
}

func (h *InitiatePaymentHandler) Handle(ctx context.Context, cmd InitiatePaymentCommand) (*InitiatePaymentResult, error) {
	bookingID := strings.TrimSpace(cmd.BookingID)
	if bookingID == "" {
		return nil, ErrBookingNotFound
	}
	if strings.TrimSpace(cmd.Payer.ID) == "" {
		return nil, ErrPayerRequired
	}
	if h.Gateway == nil {
		return nil, fmt.Errorf("%w: gateway not configured", ErrInitiationFailed)
	}

	if h.Locker != nil {
		unlock, err := h.Locker.Lock(ctx, "payment:booking:"+bookingID)
		if err != nil {
			if errors.Is(err, policies.ErrLockNotAcquired) {
				return nil, fmt.Errorf("%w: %w", ErrPaymentAlreadyInitiated, err)
			}
			return nil, err
		}
		defer unlock()
	}

	plan, err := h.plan(ctx, domainbooking.BookingID(bookingID), cmd.Payer.ID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	res, err := h.Gateway.InitializeTransaction(ctx, policies.InitializeRequest{
		Reference:   plan.reference,
		Amount:      plan.amount,
		Payer:       cmd.Payer,
		CallbackURL: h.CallbackURL,
		ReturnURL:   h.ReturnURL,
		Title:       h.Title,
		Description: fmt.Sprintf("Payment for booking %s", plan.booking.ID),
	})
	if err != nil {
		h.log().Warn("payment initiation rejected", "booking_id", bookingID, "tx_ref", plan.reference, "error", err, "duration", time.Since(started))
		return nil, h.explainRejection(ctx, plan.booking.ID, err)
	}
	if strings.TrimSpace(res.CheckoutURL) == "" {
		err := &policies.GatewayError{Kind: policies.GatewayMalformedResponse, Op: "initialize", Message: "checkout url missing"}
		return nil, fmt.Errorf("%w: %w", ErrInitiationFailed, err)
	}

	payment, err := h.record(ctx, plan, cmd.Payer.ID)
	if errors.Is(err, domainpayments.ErrDuplicateReference) {
		err = h.explainRejection(ctx, plan.booking.ID, err)
	}
	if err != nil {
		if errors.Is(err, ErrPaymentAlreadyInitiated) {
			h.log().Info("payment initiation lost to concurrent attempt", "booking_id", bookingID, "tx_ref", plan.reference)
		} else {
			h.log().Error("payment record failed after gateway accepted", "booking_id", bookingID, "tx_ref", plan.reference, "error", err)
		}
		return nil, err
	}

	h.log().Info("payment initiated", "booking_id", bookingID, "payment_id", payment.ID, "tx_ref", payment.Reference, "amount", payment.Amount.String(), "currency", payment.Amount.Currency, "duration", time.Since(started))

	return &InitiatePaymentResult{
		PaymentID:   string(payment.ID),
		CheckoutURL: res.CheckoutURL,
		Reference:   string(payment.Reference),
		Amount:      payment.Amount.String(),
		Currency:    payment.Amount.Currency,
	}, nil
}

// plan loads everything the gateway call needs in a read-only unit that is
// closed before any remote I/O.
func (h *InitiatePaymentHandler) plan(ctx context.Context, bookingID domainbooking.BookingID, payerID string) (*initiationPlan, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	booking, err := unit.Booking().ByID(execCtx, bookingID)
	if err != nil {
		if errors.Is(err, domainbooking.ErrBookingNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if !booking.OwnedBy(payerID) {
		return nil, ErrBookingNotFound
	}
	if booking.Status == domainbooking.StatusCancelled {
		return nil, fmt.Errorf("%w: booking is cancelled", ErrInitiationFailed)
	}

	listing, err := unit.Listings().ByID(execCtx, booking.ListingID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing: %w", ErrInitiationFailed, err)
	}
	amount, err := pricing.ComputeTotal(booking.Range.CheckIn, booking.Range.CheckOut, listing.NightlyPrice)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitiationFailed, err)
	}

	existing, err := unit.Payments().ListByBooking(execCtx, booking.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range existing {
		if p.Status.Live() {
			return nil, fmt.Errorf("%w: %s is %s", ErrPaymentAlreadyInitiated, p.Reference, p.Status)
		}
	}
	attempt := len(existing) + 1
	return &initiationPlan{
		booking:   booking,
		amount:    amount,
		reference: domainpayments.NewReference(booking.ID, payerID, attempt),
		attempt:   attempt,
	}, nil
}

func (h *InitiatePaymentHandler) record(ctx context.Context, plan *initiationPlan, payerID string) (*domainpayments.Payment, error) {
	mu, err := handlersupport.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer mu.Close()

	payment, err := domainpayments.NewPayment(domainpayments.CreateParams{
		ID:        domainpayments.PaymentID(h.newID()),
		BookingID: plan.booking.ID,
		PayerID:   payerID,
		Reference: plan.reference,
		Amount:    plan.amount,
		Attempt:   plan.attempt,
		Now:       nowFunc(h.Now),
	})
	if err != nil {
		return nil, err
	}
	if err := mu.Unit.Payments().Create(mu.Ctx, payment); err != nil {
		switch {
		case errors.Is(err, domainpayments.ErrAlreadyInitiated):
			return nil, fmt.Errorf("%w: %w", ErrPaymentAlreadyInitiated, err)
		}
		return nil, err
	}
	if err := outbox.Drain(mu.Ctx, h.Outbox, h.Encoder, payment); err != nil {
		return nil, err
	}
	if err := mu.Commit(); err != nil {
		return nil, err
	}
	return payment, nil
}

// explainRejection classifies a failed initiation after the write unit is gone.
// When another attempt already holds the live slot for the booking the caller
// lost a concurrent initiation (the gateway or the reference index saw the same
// tx_ref first); anything else is an initiation failure.
func (h *InitiatePaymentHandler) explainRejection(ctx context.Context, bookingID domainbooking.BookingID, cause error) error {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInitiationFailed, cause)
	}
	if cleanup != nil {
		defer cleanup()
	}
	live, err := unit.Payments().LiveByBooking(execCtx, bookingID)
	if err == nil && live != nil {
		return fmt.Errorf("%w: %s is %s: %w", ErrPaymentAlreadyInitiated, live.Reference, live.Status, cause)
	}
	return fmt.Errorf("%w: %w", ErrInitiationFailed, cause)
}

func (h *InitiatePaymentHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

func (h *InitiatePaymentHandler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.New(slog.DiscardHandler)
}

var _ commands.Handler[InitiatePaymentCommand, *InitiatePaymentResult] = (*InitiatePaymentHandler)(nil)
var _ middleware.IdempotentCommand = InitiatePaymentCommand{}
var _ middleware.SelfManagedCommand = InitiatePaymentCommand{}
