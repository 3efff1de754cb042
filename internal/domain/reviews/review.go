package reviews

import (
	"context"
	"errors"
	"strings"
	"time"

	"staypay/internal/domain/listings"
	"staypay/internal/domain/shared/events"
)

var (
	ErrInvalidRating   = errors.New("reviews: rating must be between 1 and 5")
	ErrNotFound        = errors.New("reviews: not found")
	ErrDuplicateReview = errors.New("reviews: guest already reviewed this listing")
)

type ReviewID string

type Review struct {
	ID        ReviewID
	ListingID listings.ListingID
	AuthorID  string
	Rating    int
	Text      string
	CreatedAt time.Time
	events.EventRecorder
}

type Repository interface {
	// Create fails with ErrDuplicateReview when the author already reviewed the listing.
	Create(ctx context.Context, review *Review) error
	// ListByListing returns reviews newest first.
	ListByListing(ctx context.Context, listingID listings.ListingID, limit, offset int) ([]*Review, error)
}

type SubmitParams struct {
	ID        ReviewID
	ListingID listings.ListingID
	AuthorID  string
	Rating    int
	Text      string
	CreatedAt time.Time
}

func Submit(params SubmitParams) (*Review, error) {
	if params.Rating < 1 || params.Rating > 5 {
		return nil, ErrInvalidRating
	}
	if strings.TrimSpace(params.AuthorID) == "" {
		return nil, errors.New("reviews: author required")
	}
	review := &Review{
		ID:        params.ID,
		ListingID: params.ListingID,
		AuthorID:  params.AuthorID,
		Rating:    params.Rating,
		Text:      strings.TrimSpace(params.Text),
		CreatedAt: params.CreatedAt.UTC(),
	}
	review.Record(ReviewSubmitted{ReviewID: review.ID, ListingID: review.ListingID, AuthorID: review.AuthorID, Rating: review.Rating, At: review.CreatedAt})
	return review, nil
}
