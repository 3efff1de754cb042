package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "staypay/internal/app/outbox"
	"staypay/internal/app/uow"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

type stagedRecord struct {
	record    appoutbox.EventRecord
	state     string
	attempts  int
	nextAt    time.Time
	claimedBy string
	lastError string
}

// Outbox keeps events in memory and serves them to the relay worker. Events
// added inside a memory Unit become visible only when that unit commits.
type Outbox struct {
	mu      sync.Mutex
	records []*stagedRecord
	wake    chan struct{}
	now     func() time.Time
}

func NewOutbox() *Outbox {
	return &Outbox{wake: make(chan struct{}, 1), now: time.Now}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	rec := stagedRecord{record: record, state: stateNew, nextAt: o.now().UTC()}
	if unit, ok := uow.FromContext(ctx); ok {
		if mu, ok := unit.(*Unit); ok && mu.outbox == o {
			mu.stage(rec)
			return nil
		}
	}
	o.release([]stagedRecord{rec})
	return nil
}

// Flush wakes the relay worker.
func (o *Outbox) Flush(ctx context.Context) error {
	select {
	case o.wake <- struct{}{}:
	default:
	}
	return nil
}

// Wake is signalled by Flush.
func (o *Outbox) Wake() <-chan struct{} {
	return o.wake
}

func (o *Outbox) release(recs []stagedRecord) {
	if len(recs) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range recs {
		rec := recs[i]
		o.records = append(o.records, &rec)
	}
}

func (o *Outbox) Claim(ctx context.Context, workerID string) (*appoutbox.Claimed, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now().UTC()
	for _, rec := range o.records {
		if (rec.state == stateNew || rec.state == stateFailed) && !rec.nextAt.After(now) {
			rec.state = stateClaimed
			rec.claimedBy = workerID
			return &appoutbox.Claimed{Record: rec.record, Attempts: rec.attempts}, nil
		}
	}
	return nil, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if rec := o.find(id); rec != nil {
		rec.state = stateSent
	}
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if rec := o.find(id); rec != nil {
		rec.state = stateFailed
		rec.nextAt = next
		rec.lastError = errMsg
		rec.attempts++
	}
	return nil
}

// Records returns the events visible to the relay, in insertion order.
func (o *Outbox) Records() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(o.records))
	for _, rec := range o.records {
		out = append(out, rec.record)
	}
	return out
}

func (o *Outbox) find(id string) *stagedRecord {
	for _, rec := range o.records {
		if rec.record.ID == id {
			return rec
		}
	}
	return nil
}

var (
	_ appoutbox.Outbox = (*Outbox)(nil)
	_ appoutbox.Store  = (*Outbox)(nil)
)
