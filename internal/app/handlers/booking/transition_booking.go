package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"staypay/internal/app/commands"
	"staypay/internal/app/dto"
	handlersupport "staypay/internal/app/handlers/support"
	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
	"staypay/internal/domain/pricing"
)

const transitionBookingKey = "booking.transition"

type TransitionBookingCommand struct {
	BookingID string `validate:"required"`
	Target    domainbooking.Status
	Actor     domainbooking.Actor
}

func (c TransitionBookingCommand) Key() string { return transitionBookingKey }

func (c TransitionBookingCommand) Requester() string { return c.Actor.ID }

type TransitionBookingHandler struct {
	UoWFactory uow.UoWFactory
	Policy     domainbooking.TransitionPolicy
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *TransitionBookingHandler) Handle(ctx context.Context, cmd TransitionBookingCommand) (*dto.Booking, error) {
	mu, err := handlersupport.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer mu.Close()

	booking, err := mu.Unit.Booking().ByID(mu.Ctx, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		if errors.Is(err, domainbooking.ErrBookingNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now().UTC()
	}
	from := booking.Status
	if err := booking.Transition(mu.Ctx, cmd.Target, cmd.Actor, h.Policy, now); err != nil {
		return nil, err
	}
	if err := mu.Unit.Booking().Save(mu.Ctx, booking); err != nil {
		return nil, err
	}
	listing, err := mu.Unit.Listings().ByID(mu.Ctx, booking.ListingID)
	if err != nil {
		return nil, err
	}
	quote, err := pricing.QuoteStay(booking.Range, listing.NightlyPrice)
	if err != nil {
		return nil, err
	}
	if err := mu.Commit(); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking status changed", "booking_id", booking.ID, "from", from, "to", booking.Status, "actor_id", cmd.Actor.ID, "actor_kind", cmd.Actor.Kind)
	}
	out := dto.MapBooking(booking, quote)
	return &out, nil
}

var _ commands.Handler[TransitionBookingCommand, *dto.Booking] = (*TransitionBookingHandler)(nil)
