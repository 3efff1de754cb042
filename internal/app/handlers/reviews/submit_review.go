package reviews

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"staypay/internal/app/commands"
	"staypay/internal/app/dto"
	handlersupport "staypay/internal/app/handlers/support"
	"staypay/internal/app/outbox"
	"staypay/internal/app/uow"
	domainlistings "staypay/internal/domain/listings"
	domainreviews "staypay/internal/domain/reviews"
)

const submitReviewKey = "reviews.submit"

// SubmitReviewCommand creates a review; each guest reviews a listing at most once.
type SubmitReviewCommand struct {
	ListingID string `validate:"required"`
	AuthorID  string `validate:"required"`
	Rating    int    `validate:"min=1,max=5"`
	Text      string `validate:"max=2000"`
}

func (c SubmitReviewCommand) Key() string { return submitReviewKey }

func (c SubmitReviewCommand) Requester() string { return c.AuthorID }

type SubmitReviewHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *SubmitReviewHandler) Handle(ctx context.Context, cmd SubmitReviewCommand) (dto.Review, error) {
	mu, err := handlersupport.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Review{}, err
	}
	defer mu.Close()

	listingID := domainlistings.ListingID(cmd.ListingID)
	if _, err := mu.Unit.Listings().ByID(mu.Ctx, listingID); err != nil {
		if errors.Is(err, domainlistings.ErrNotFound) {
			return dto.Review{}, ErrListingNotFound
		}
		return dto.Review{}, err
	}

	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now().UTC()
	}
	review, err := domainreviews.Submit(domainreviews.SubmitParams{
		ID:        domainreviews.ReviewID(uuid.NewString()),
		ListingID: listingID,
		AuthorID:  cmd.AuthorID,
		Rating:    cmd.Rating,
		Text:      cmd.Text,
		CreatedAt: now,
	})
	if err != nil {
		return dto.Review{}, err
	}
	if err := mu.Unit.Reviews().Create(mu.Ctx, review); err != nil {
		return dto.Review{}, err
	}
	if err := outbox.Drain(mu.Ctx, h.Outbox, h.Encoder, review); err != nil {
		return dto.Review{}, err
	}
	if err := mu.Commit(); err != nil {
		return dto.Review{}, err
	}

	if h.Logger != nil {
		h.Logger.Info("review submitted", "review_id", review.ID, "listing_id", review.ListingID, "rating", review.Rating)
	}
	return dto.MapReview(review), nil
}

var _ commands.Handler[SubmitReviewCommand, dto.Review] = (*SubmitReviewHandler)(nil)
