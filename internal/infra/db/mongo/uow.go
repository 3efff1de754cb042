package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"

	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
	domainlistings "staypay/internal/domain/listings"
	domainpayments "staypay/internal/domain/payments"
	domainreviews "staypay/internal/domain/reviews"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	ListingsRepo domainlistings.ListingRepository
	BookingRepo  domainbooking.Repository
	PaymentsRepo domainpayments.Repository
	ReviewsRepo  domainreviews.Repository
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// NewFactory builds repositories over db.
func NewFactory(db *mongo.Database) Factory {
	return Factory{
		DB:           db,
		ListingsRepo: NewListingRepository(db),
		BookingRepo:  NewBookingRepository(db),
		PaymentsRepo: NewPaymentRepository(db),
		ReviewsRepo:  NewReviewRepository(db),
	}
}

// Begin starts a MongoDB session/transaction. Repositories and the outbox store
// join it through the session carried in the context.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if opts.ReadOnly {
		txnOpts = txnOpts.SetReadConcern(readconcern.Snapshot())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		session:  session,
		listings: f.ListingsRepo,
		booking:  f.BookingRepo,
		payments: f.PaymentsRepo,
		reviews:  f.ReviewsRepo,
	}, nil
}

type Unit struct {
	session mongo.Session

	listings domainlistings.ListingRepository
	booking  domainbooking.Repository
	payments domainpayments.Repository
	reviews  domainreviews.Repository
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

// Commit maps write conflicts on the payment collection to optimistic
// concurrency failures so callers can reload and converge.
func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if err := u.session.CommitTransaction(ctx); err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.HasErrorLabel("TransientTransactionError") {
			return domainpayments.ErrConcurrentUpdate
		}
		return err
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}
