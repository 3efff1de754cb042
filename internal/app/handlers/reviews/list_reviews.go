package reviews

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"staypay/internal/app/dto"
	handlersupport "staypay/internal/app/handlers/support"
	"staypay/internal/app/queries"
	"staypay/internal/app/uow"
	domainlistings "staypay/internal/domain/listings"
)

const listListingReviewsKey = "reviews.listing.list"

var ErrListingNotFound = errors.New("reviews: listing not found")

// ListListingReviewsQuery retrieves reviews for a listing.
type ListListingReviewsQuery struct {
	ListingID string
	Limit     int
	Offset    int
}

func (q ListListingReviewsQuery) Key() string { return listListingReviewsKey }

// ListListingReviewsHandler loads reviews for a listing, newest first.
type ListListingReviewsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListListingReviewsHandler) Handle(ctx context.Context, q ListListingReviewsQuery) (dto.ReviewCollection, error) {
	limit := normalizeLimit(q.Limit)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ReviewCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	listingID := domainlistings.ListingID(q.ListingID)
	if _, err := unit.Listings().ByID(execCtx, listingID); err != nil {
		if errors.Is(err, domainlistings.ErrNotFound) {
			return dto.ReviewCollection{}, ErrListingNotFound
		}
		return dto.ReviewCollection{}, fmt.Errorf("reviews: load listing: %w", err)
	}

	page, err := unit.Reviews().ListByListing(execCtx, listingID, limit, offset)
	if err != nil {
		return dto.ReviewCollection{}, err
	}

	items := make([]dto.Review, 0, len(page))
	for _, review := range page {
		items = append(items, dto.MapReview(review))
	}

	if h.Logger != nil {
		h.Logger.Debug("listing reviews listed", "listing_id", listingID, "count", len(items), "offset", offset)
	}

	return dto.ReviewCollection{Items: items, Limit: limit, Offset: offset}, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

var _ queries.Handler[ListListingReviewsQuery, dto.ReviewCollection] = (*ListListingReviewsHandler)(nil)
