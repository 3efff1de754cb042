package policies

import (
	"context"
	"errors"
)

var ErrLockNotAcquired = errors.New("policies: lock not acquired")

// Locker serialises work on a key across goroutines or processes.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ReceiptArchive keeps the raw gateway verification payload for audits.
type ReceiptArchive interface {
	Store(ctx context.Context, ref string, payload []byte) error
}
