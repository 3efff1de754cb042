package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	colListings = "agg_listing"
	colBookings = "agg_booking"
	colPayments = "agg_payment"
	colReviews  = "agg_review"

	idxPaymentRef      = "uniq_tx_ref"
	idxLivePayment     = "uniq_live_payment_per_booking"
	idxReviewPerAuthor = "uniq_review_per_author"
)

type Client struct {
	DB *mongo.Database
}

func New(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories rely on for their
// uniqueness guarantees.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		colPayments: {
			{Keys: bson.D{{Key: "tx_ref", Value: 1}}, Options: options.Index().SetName(idxPaymentRef).SetUnique(true)},
			{
				Keys: bson.D{{Key: "booking_id", Value: 1}},
				Options: options.Index().
					SetName(idxLivePayment).
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"live": true}),
			},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colBookings: {
			{Keys: bson.D{{Key: "guest_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colListings: {
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		colReviews: {
			{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "author_id", Value: 1}}, Options: options.Index().SetName(idxReviewPerAuthor).SetUnique(true)},
			{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
	for col, models := range specs {
		if _, err := c.DB.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}
