package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "staypay/internal/domain/booking"
	domainpayments "staypay/internal/domain/payments"
)

// PaymentRepository stores payments with a unique tx_ref index and a partial
// unique index on booking_id over live payments, so concurrent initiations for
// one booking cannot both insert.
type PaymentRepository struct {
	col *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) *PaymentRepository {
	return &PaymentRepository{col: db.Collection(colPayments)}
}

func (r *PaymentRepository) Create(ctx context.Context, p *domainpayments.Payment) error {
	doc := newPaymentDocument(p)
	doc.Version = 1
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		switch {
		case duplicateOn(err, idxLivePayment):
			return domainpayments.ErrAlreadyInitiated
		case duplicateOn(err, idxPaymentRef):
			return domainpayments.ErrDuplicateReference
		case mongo.IsDuplicateKeyError(err):
			return domainpayments.ErrDuplicateReference
		}
		return err
	}
	p.Version = doc.Version
	return nil
}

func (r *PaymentRepository) Save(ctx context.Context, p *domainpayments.Payment) error {
	doc := newPaymentDocument(p)
	doc.Version = p.Version + 1
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": p.Version}, doc)
	if err != nil {
		if duplicateOn(err, idxLivePayment) {
			return domainpayments.ErrAlreadyInitiated
		}
		return err
	}
	if res.MatchedCount == 0 {
		return domainpayments.ErrConcurrentUpdate
	}
	p.Version = doc.Version
	return nil
}

func (r *PaymentRepository) ByReference(ctx context.Context, ref domainpayments.Reference) (*domainpayments.Payment, error) {
	return r.findOne(ctx, bson.M{"tx_ref": string(ref)})
}

func (r *PaymentRepository) LiveByBooking(ctx context.Context, bookingID domainbooking.BookingID) (*domainpayments.Payment, error) {
	return r.findOne(ctx, bson.M{"booking_id": string(bookingID), "live": true})
}

func (r *PaymentRepository) ListByBooking(ctx context.Context, bookingID domainbooking.BookingID) ([]*domainpayments.Payment, error) {
	return r.find(ctx, bson.M{"booking_id": string(bookingID)}, options.Find().SetSort(bson.D{{Key: "attempt", Value: 1}}))
}

func (r *PaymentRepository) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]*domainpayments.Payment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	filter := bson.M{
		"status":     string(domainpayments.StatusPending),
		"created_at": bson.M{"$lte": timeToTimestamp(createdBefore)},
	}
	return r.find(ctx, filter, opts)
}

func (r *PaymentRepository) findOne(ctx context.Context, filter bson.M) (*domainpayments.Payment, error) {
	var doc paymentDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if notFound(err) {
			return nil, domainpayments.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *PaymentRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainpayments.Payment, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []paymentDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainpayments.Payment, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

type paymentDocument struct {
	ID           string        `bson:"_id"`
	BookingID    string        `bson:"booking_id"`
	PayerID      string        `bson:"payer_id"`
	Reference    string        `bson:"tx_ref"`
	Amount       moneyDocument `bson:"amount"`
	Status       string        `bson:"status"`
	Live         bool          `bson:"live"`
	Attempt      int           `bson:"attempt"`
	RemoteStatus string        `bson:"remote_status,omitempty"`
	CreatedAt    int64         `bson:"created_at"`
	UpdatedAt    int64         `bson:"updated_at"`
	VerifiedAt   int64         `bson:"verified_at,omitempty"`
	Version      int64         `bson:"version"`
}

func newPaymentDocument(p *domainpayments.Payment) paymentDocument {
	return paymentDocument{
		ID:           string(p.ID),
		BookingID:    string(p.BookingID),
		PayerID:      p.PayerID,
		Reference:    string(p.Reference),
		Amount:       newMoneyDocument(p.Amount),
		Status:       string(p.Status),
		Live:         p.Status.Live(),
		Attempt:      p.Attempt,
		RemoteStatus: string(p.RemoteStatus),
		CreatedAt:    timeToTimestamp(p.CreatedAt),
		UpdatedAt:    timeToTimestamp(p.UpdatedAt),
		VerifiedAt:   timeToTimestamp(p.VerifiedAt),
		Version:      p.Version,
	}
}

func (d paymentDocument) toAggregate() *domainpayments.Payment {
	return &domainpayments.Payment{
		ID:           domainpayments.PaymentID(d.ID),
		BookingID:    domainbooking.BookingID(d.BookingID),
		PayerID:      d.PayerID,
		Reference:    domainpayments.Reference(d.Reference),
		Amount:       d.Amount.toMoney(),
		Status:       domainpayments.Status(d.Status),
		Attempt:      d.Attempt,
		RemoteStatus: domainpayments.RemoteStatus(d.RemoteStatus),
		CreatedAt:    timestampToTime(d.CreatedAt),
		UpdatedAt:    timestampToTime(d.UpdatedAt),
		VerifiedAt:   timestampToTime(d.VerifiedAt),
		Version:      d.Version,
	}
}
