package uow

import (
	"context"
	"errors"

	domainbooking "staypay/internal/domain/booking"
	domainlistings "staypay/internal/domain/listings"
	domainpayments "staypay/internal/domain/payments"
	domainreviews "staypay/internal/domain/reviews"
)

var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

// UnitOfWork scopes the repositories touched by one command. Payment and
// booking writes made through it become visible together on Commit.
type UnitOfWork interface {
	Listings() domainlistings.ListingRepository
	Booking() domainbooking.Repository
	Payments() domainpayments.Repository
	Reviews() domainreviews.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units that carry driver state, such as a
// Mongo session, which repositories read from the context.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}

type ctxKey struct{}

func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

// Inject binds unit and any driver state it carries to ctx.
func Inject(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(ContextInjector); ok {
		ctx = injector.InjectContext(ctx)
	}
	return ContextWithUnitOfWork(ctx, unit)
}

func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(ctxKey{}).(UnitOfWork)
	return unit, ok
}

// Require is FromContext for handlers that only run inside the transaction middleware.
func Require(ctx context.Context) (UnitOfWork, error) {
	unit, ok := FromContext(ctx)
	if !ok {
		return nil, ErrUnitOfWorkMissing
	}
	return unit, nil
}
