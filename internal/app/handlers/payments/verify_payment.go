package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"staypay/internal/app/commands"
	handlersupport "staypay/internal/app/handlers/support"
	"staypay/internal/app/middleware"
	"staypay/internal/app/outbox"
	"staypay/internal/app/policies"
	"staypay/internal/app/uow"
	domainpayments "staypay/internal/domain/payments"
)

const verifyPaymentKey = "payments.verify"

// Verification sources, used for logging only.
const (
	SourceCallback = "callback"
	SourceWebhook  = "webhook"
	SourceReplay   = "replay"
	SourceSweeper  = "sweeper"
)

type VerifyPaymentCommand struct {
	Reference string
	Source    string
}

func (c VerifyPaymentCommand) Key() string { return verifyPaymentKey }

func (c VerifyPaymentCommand) ManagesTransaction() bool { return true }

type VerifyPaymentResult struct {
	PaymentID string `json:"payment_id"`
	Reference string `json:"transaction_reference"`
	Status    string `json:"status"`
	// Changed is false when the payment already reflected the gateway verdict.
	Changed bool   `json:"changed"`
	Message string `json:"message"`
}

// VerifyPaymentHandler reconciles the local payment with the gateway verdict on
// every call. Repeated and concurrent calls for one reference converge on a
// single outcome and write only when the mapped status changes.
type VerifyPaymentHandler struct {
	UoWFactory uow.UoWFactory
	Gateway    policies.PaymentGateway
	Locker     policies.Locker
	Receipts   policies.ReceiptArchive
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *VerifyPaymentHandler) Handle(ctx context.Context, cmd VerifyPaymentCommand) (*VerifyPaymentResult, error) {
	ref := domainpayments.Reference(strings.TrimSpace(cmd.Reference))
	if ref == "" {
		return nil, ErrReferenceRequired
	}
	if h.Gateway == nil {
		return nil, fmt.Errorf("%w: gateway not configured", ErrGatewayUnavailable)
	}

	if h.Locker != nil {
		unlock, err := h.Locker.Lock(ctx, "payment:ref:"+string(ref))
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	payment, err := h.load(ctx, ref)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	verdict, err := h.Gateway.VerifyTransaction(ctx, ref)
	if err != nil {
		if errors.Is(err, policies.ErrNetworkFailure) {
			h.log().Warn("payment verification deferred", "tx_ref", ref, "source", cmd.Source, "error", err, "duration", time.Since(started))
			if payment.Status.Terminal() {
				return result(payment, false), nil
			}
			return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
		}
		// An unusable answer is no verdict: it settles a pending payment as
		// failed but never overrides a status the gateway already confirmed.
		h.log().Warn("payment verification unusable", "tx_ref", ref, "source", cmd.Source, "error", err)
		if payment.Status.Terminal() {
			return result(payment, false), nil
		}
		verdict = policies.VerifyResult{RemoteStatus: domainpayments.RemoteFailed}
	}

	previous := payment.Status
	drifted := payment.Drifted(verdict.RemoteStatus)
	if !payment.Reconcile(verdict.RemoteStatus, nowFunc(h.Now)) {
		return result(payment, false), nil
	}
	if drifted {
		h.log().Warn("payment reconciliation drift corrected", "tx_ref", ref, "from", previous, "to", payment.Status, "remote_status", verdict.RemoteStatus, "source", cmd.Source)
	}

	saved, err := h.persist(ctx, payment, !previous.Live() && payment.Status.Live())
	if err != nil {
		if errors.Is(err, ErrPaymentConflict) {
			h.log().Error("payment settled while another attempt is live", "tx_ref", ref, "booking_id", payment.BookingID, "remote_status", verdict.RemoteStatus, "source", cmd.Source, "error", err)
		}
		return nil, err
	}
	if !saved {
		current, err := h.load(ctx, ref)
		if err != nil {
			return nil, err
		}
		h.log().Info("payment verified concurrently", "tx_ref", ref, "status", current.Status, "source", cmd.Source)
		return result(current, false), nil
	}

	h.archive(ctx, ref, verdict.Raw)
	h.log().Info("payment verified", "tx_ref", ref, "payment_id", payment.ID, "status", payment.Status, "remote_status", verdict.RemoteStatus, "source", cmd.Source, "duration", time.Since(started))
	return result(payment, true), nil
}

func (h *VerifyPaymentHandler) load(ctx context.Context, ref domainpayments.Reference) (*domainpayments.Payment, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	payment, err := unit.Payments().ByReference(execCtx, ref)
	if err != nil {
		if errors.Is(err, domainpayments.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// persist reports false when another writer already moved the payment on.
// revived marks a failed payment turning live again, which must not sit beside
// a newer live attempt for the same booking.
func (h *VerifyPaymentHandler) persist(ctx context.Context, payment *domainpayments.Payment, revived bool) (bool, error) {
	mu, err := handlersupport.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return false, err
	}
	defer mu.Close()

	if revived {
		rival, err := mu.Unit.Payments().LiveByBooking(mu.Ctx, payment.BookingID)
		switch {
		case err == nil && rival.Reference != payment.Reference:
			return false, fmt.Errorf("%w: %s is %s", ErrPaymentConflict, rival.Reference, rival.Status)
		case err != nil && !errors.Is(err, domainpayments.ErrNotFound):
			return false, err
		}
	}
	if err := mu.Unit.Payments().Save(mu.Ctx, payment); err != nil {
		switch {
		case errors.Is(err, domainpayments.ErrConcurrentUpdate):
			return false, nil
		case errors.Is(err, domainpayments.ErrAlreadyInitiated):
			return false, fmt.Errorf("%w: %w", ErrPaymentConflict, err)
		}
		return false, err
	}
	if err := outbox.Drain(mu.Ctx, h.Outbox, h.Encoder, payment); err != nil {
		return false, err
	}
	if err := mu.Commit(); err != nil {
		if errors.Is(err, domainpayments.ErrConcurrentUpdate) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (h *VerifyPaymentHandler) archive(ctx context.Context, ref domainpayments.Reference, raw []byte) {
	if h.Receipts == nil || len(raw) == 0 {
		return
	}
	if err := h.Receipts.Store(ctx, string(ref), raw); err != nil {
		h.log().Error("receipt archive failed", "tx_ref", ref, "error", err)
	}
}

func (h *VerifyPaymentHandler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func result(p *domainpayments.Payment, changed bool) *VerifyPaymentResult {
	msg := "Payment failed"
	switch p.Status {
	case domainpayments.StatusCompleted:
		msg = "Payment successful!"
	case domainpayments.StatusPending:
		msg = "Payment pending"
	}
	return &VerifyPaymentResult{
		PaymentID: string(p.ID),
		Reference: string(p.Reference),
		Status:    string(p.Status),
		Changed:   changed,
		Message:   msg,
	}
}

var _ commands.Handler[VerifyPaymentCommand, *VerifyPaymentResult] = (*VerifyPaymentHandler)(nil)
var _ middleware.SelfManagedCommand = VerifyPaymentCommand{}
