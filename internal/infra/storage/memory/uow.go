package memory

import (
	"context"
	"errors"
	"sync"

	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
	domainlistings "staypay/internal/domain/listings"
	domainpayments "staypay/internal/domain/payments"
	domainreviews "staypay/internal/domain/reviews"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	ListingsRepo domainlistings.ListingRepository
	BookingRepo  domainbooking.Repository
	PaymentsRepo domainpayments.Repository
	ReviewsRepo  domainreviews.Repository
	// Outbox, when set, only releases events staged in a unit once it commits.
	Outbox *Outbox
}

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Begin starts a lightweight boundary. Repository writes apply immediately; only
// outbox events wait for Commit.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.ListingsRepo == nil || f.BookingRepo == nil || f.PaymentsRepo == nil || f.ReviewsRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		listings: f.ListingsRepo,
		booking:  f.BookingRepo,
		payments: f.PaymentsRepo,
		reviews:  f.ReviewsRepo,
		outbox:   f.Outbox,
	}, nil
}

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	listings domainlistings.ListingRepository
	booking  domainbooking.Repository
	payments domainpayments.Repository
	reviews  domainreviews.Repository

	outbox *Outbox
	mu     sync.Mutex
	staged []stagedRecord
}

func (u *Unit) Listings() domainlistings.ListingRepository {
	return u.listings
}

func (u *Unit) Booking() domainbooking.Repository {
	return u.booking
}

func (u *Unit) Payments() domainpayments.Repository {
	return u.payments
}

func (u *Unit) Reviews() domainreviews.Repository {
	return u.reviews
}

func (u *Unit) stage(rec stagedRecord) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.staged = append(u.staged, rec)
}

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	staged := u.staged
	u.staged = nil
	u.mu.Unlock()
	if u.outbox != nil {
		u.outbox.release(staged)
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.staged = nil
	return nil
}
