package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"staypay/internal/app/commands"
	"staypay/internal/app/dto"
	handlersupport "staypay/internal/app/handlers/support"
	"staypay/internal/app/middleware"
	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
	domainlistings "staypay/internal/domain/listings"
	"staypay/internal/domain/pricing"
)

const createBookingKey = "booking.create"

var (
	ErrListingNotFound = errors.New("booking: listing not found")
	ErrBookingNotFound = errors.New("booking: booking not found")
)

type CreateBookingCommand struct {
	ListingID       string    `validate:"required"`
	GuestID         string    `validate:"required"`
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required"`
	Guests          int
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return createBookingKey + ":" + c.GuestID + ":" + c.IdempotencyKeyV
}

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

func (c CreateBookingCommand) Requester() string { return c.GuestID }

type CreateBookingHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
	Now        func() time.Time
	NewID      func() string
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now().UTC()
	}
	validated, err := domainbooking.Validate(domainbooking.Draft{
		GuestID:   cmd.GuestID,
		ListingID: domainlistings.ListingID(cmd.ListingID),
		CheckIn:   cmd.CheckIn,
		CheckOut:  cmd.CheckOut,
		Guests:    cmd.Guests,
	}, now)
	if err != nil {
		return nil, err
	}

	mu, err := handlersupport.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer mu.Close()

	listing, err := mu.Unit.Listings().ByID(mu.Ctx, validated.ListingID)
	if err != nil {
		if errors.Is(err, domainlistings.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	quote, err := pricing.QuoteStay(validated.Range, listing.NightlyPrice)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if h.NewID != nil {
		id = h.NewID()
	}
	booking, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:        domainbooking.BookingID(id),
		Draft:     validated,
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if err := mu.Unit.Booking().Save(mu.Ctx, booking); err != nil {
		return nil, err
	}
	if err := mu.Commit(); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking created", "booking_id", booking.ID, "listing_id", booking.ListingID, "guest_id", booking.GuestID, "nights", quote.Nights)
	}
	out := dto.MapBooking(booking, quote)
	return &out, nil
}

var _ commands.Handler[CreateBookingCommand, *dto.Booking] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = CreateBookingCommand{}
