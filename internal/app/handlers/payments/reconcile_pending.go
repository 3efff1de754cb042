package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"staypay/internal/app/commands"
	handlersupport "staypay/internal/app/handlers/support"
	"staypay/internal/app/uow"
	domainpayments "staypay/internal/domain/payments"
)

const (
	reconcilePendingKey   = "payments.reconcile_pending"
	defaultReconcileBatch = 50
)

// ReconcilePendingCommand re-verifies payments left pending, e.g. when the
// guest never came back through the return URL.
type ReconcilePendingCommand struct {
	MinAge time.Duration
	Limit  int
}

func (c ReconcilePendingCommand) Key() string { return reconcilePendingKey }

func (c ReconcilePendingCommand) ManagesTransaction() bool { return true }

type ReconcilePendingResult struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Deferred  int `json:"deferred"`
}

type ReconcilePendingHandler struct {
	UoWFactory uow.UoWFactory
	Verifier   commands.Handler[VerifyPaymentCommand, *VerifyPaymentResult]
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *ReconcilePendingHandler) Handle(ctx context.Context, cmd ReconcilePendingCommand) (*ReconcilePendingResult, error) {
	if h.Verifier == nil {
		return nil, errors.New("payments: verifier not configured")
	}
	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultReconcileBatch
	}
	cutoff := nowFunc(h.Now).Add(-cmd.MinAge)

	pending, err := h.listPending(ctx, cutoff, limit)
	if err != nil {
		return nil, err
	}

	out := &ReconcilePendingResult{}
	for _, p := range pending {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		out.Checked++
		res, err := h.Verifier.Handle(ctx, VerifyPaymentCommand{Reference: string(p.Reference), Source: SourceSweeper})
		if err != nil {
			out.Deferred++
			if h.Logger != nil {
				h.Logger.Warn("pending payment not reconciled", "tx_ref", p.Reference, "error", err)
			}
			continue
		}
		switch domainpayments.Status(res.Status) {
		case domainpayments.StatusCompleted:
			out.Completed++
		case domainpayments.StatusFailed:
			out.Failed++
		}
	}
	if h.Logger != nil && out.Checked > 0 {
		h.Logger.Info("pending payments reconciled", "checked", out.Checked, "completed", out.Completed, "failed", out.Failed, "deferred", out.Deferred)
	}
	return out, nil
}

func (h *ReconcilePendingHandler) listPending(ctx context.Context, cutoff time.Time, limit int) ([]*domainpayments.Payment, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return unit.Payments().ListPending(execCtx, cutoff, limit)
}

var _ commands.Handler[ReconcilePendingCommand, *ReconcilePendingResult] = (*ReconcilePendingHandler)(nil)
