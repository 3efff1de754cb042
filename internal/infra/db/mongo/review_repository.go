package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "staypay/internal/domain/listings"
	domainreviews "staypay/internal/domain/reviews"
)

type ReviewRepository struct {
	col *mongo.Collection
}

func NewReviewRepository(db *mongo.Database) *ReviewRepository {
	return &ReviewRepository{col: db.Collection(colReviews)}
}

func (r *ReviewRepository) Create(ctx context.Context, review *domainreviews.Review) error {
	doc := reviewDocument{
		ID:        string(review.ID),
		ListingID: string(review.ListingID),
		AuthorID:  review.AuthorID,
		Rating:    review.Rating,
		Text:      review.Text,
		CreatedAt: timeToTimestamp(review.CreatedAt),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if duplicateOn(err, idxReviewPerAuthor) {
			return domainreviews.ErrDuplicateReview
		}
		return err
	}
	return nil
}

func (r *ReviewRepository) ListByListing(ctx context.Context, listingID domainlistings.ListingID, limit, offset int) ([]*domainreviews.Review, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	cur, err := r.col.Find(ctx, bson.M{"listing_id": string(listingID)}, opts)
	if err != nil {
		return nil, err
	}
	var docs []reviewDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainreviews.Review, 0, len(docs))
	for _, d := range docs {
		out = append(out, &domainreviews.Review{
			ID:        domainreviews.ReviewID(d.ID),
			ListingID: domainlistings.ListingID(d.ListingID),
			AuthorID:  d.AuthorID,
			Rating:    d.Rating,
			Text:      d.Text,
			CreatedAt: timestampToTime(d.CreatedAt),
		})
	}
	return out, nil
}

type reviewDocument struct {
	ID        string `bson:"_id"`
	ListingID string `bson:"listing_id"`
	AuthorID  string `bson:"author_id"`
	Rating    int    `bson:"rating"`
	Text      string `bson:"text"`
	CreatedAt int64  `bson:"created_at"`
}
