package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"staypay/internal/app/commands"
	paymentsapp "staypay/internal/app/handlers/payments"
)

var ErrSweeperNotConfigured = errors.New("schedule: sweeper missing command bus")

// Sweeper periodically re-verifies payments that stayed pending, so a guest who
// abandons the checkout page does not leave the payment unresolved.
type Sweeper struct {
	Commands commands.Bus
	Interval time.Duration
	MinAge   time.Duration
	Batch    int
	Logger   *slog.Logger
}

func (s *Sweeper) Run(ctx context.Context) error {
	if s.Commands == nil {
		return ErrSweeperNotConfigured
	}
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep; failures are logged and retried next tick.
func (s *Sweeper) RunOnce(ctx context.Context) *paymentsapp.ReconcilePendingResult {
	res, err := commands.Dispatch[paymentsapp.ReconcilePendingCommand, *paymentsapp.ReconcilePendingResult](ctx, s.Commands, paymentsapp.ReconcilePendingCommand{
		MinAge: s.MinAge,
		Limit:  s.Batch,
	})
	if err != nil && s.Logger != nil {
		s.Logger.Error("reconciliation sweep failed", "error", err)
	}
	return res
}

func (s *Sweeper) interval() time.Duration {
	if s.Interval <= 0 {
		return time.Minute
	}
	return s.Interval
}
