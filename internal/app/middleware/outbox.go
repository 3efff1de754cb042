package middleware

import (
	"context"

	"staypay/internal/app/commands"
	"staypay/internal/app/outbox"
)

// OutboxFlush wakes the relay after a command succeeds. Chained outside
// Transaction it fires after the commit has made the events visible.
func OutboxFlush(box outbox.Outbox) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
