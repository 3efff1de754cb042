package reviews

import (
	"time"

	"staypay/internal/domain/listings"
)

type ReviewSubmitted struct {
	ReviewID  ReviewID           `json:"review_id"`
	ListingID listings.ListingID `json:"listing_id"`
	AuthorID  string             `json:"author_id"`
	Rating    int                `json:"rating"`
	At        time.Time          `json:"occurred_at"`
}

func (e ReviewSubmitted) EventName() string     { return "review.submitted" }
func (e ReviewSubmitted) AggregateID() string   { return string(e.ListingID) }
func (e ReviewSubmitted) OccurredAt() time.Time { return e.At }
