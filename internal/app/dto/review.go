package dto

import (
	"time"

	domainreviews "staypay/internal/domain/reviews"
)

type Review struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	AuthorID  string    `json:"author_id"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewCollection is one newest-first page of a listing's reviews.
type ReviewCollection struct {
	Items  []Review `json:"items"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

func MapReview(review *domainreviews.Review) Review {
	if review == nil {
		return Review{}
	}
	return Review{
		ID:        string(review.ID),
		ListingID: string(review.ListingID),
		AuthorID:  review.AuthorID,
		Rating:    review.Rating,
		Text:      review.Text,
		CreatedAt: review.CreatedAt,
	}
}
