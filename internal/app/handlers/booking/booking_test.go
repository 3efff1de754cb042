package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staypay/internal/app/handlers/booking"
	domainbooking "staypay/internal/domain/booking"
	domainlistings "staypay/internal/domain/listings"
	"staypay/internal/domain/shared/money"
	"staypay/internal/infra/storage/memory"
)

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (memory.Factory, *memory.ListingRepository) {
	t.Helper()
	listings := memory.NewListingRepository()
	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID: "l1", Host: "h1", Title: "Lakeside", Location: "Bishoftu",
		NightlyPrice: money.Must(10000, "ETB"), Now: now,
	})
	require.NoError(t, err)
	require.NoError(t, listings.Save(context.Background(), listing))
	return memory.Factory{
		ListingsRepo: listings,
		BookingRepo:  memory.NewBookingRepository(),
		PaymentsRepo: memory.NewPaymentRepository(),
		ReviewsRepo:  memory.NewReviewsRepository(),
	}, listings
}

func date(d int) time.Time { return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC) }

func createBooking(t *testing.T, factory memory.Factory) string {
	t.Helper()
	h := &booking.CreateBookingHandler{UoWFactory: factory, Now: func() time.Time { return now }, NewID: func() string { return "b1" }}
	out, err := h.Handle(context.Background(), booking.CreateBookingCommand{ListingID: "l1", GuestID: "g1", CheckIn: date(10), CheckOut: date(13), Guests: 2})
	require.NoError(t, err)
	return out.ID
}

func TestCreateBooking(t *testing.T) {
	factory, _ := setup(t)
	h := &booking.CreateBookingHandler{UoWFactory: factory, Now: func() time.Time { return now }, NewID: func() string { return "b1" }}

	out, err := h.Handle(context.Background(), booking.CreateBookingCommand{ListingID: "l1", GuestID: "g1", CheckIn: date(10), CheckOut: date(13), Guests: 2})
	require.NoError(t, err)
	assert.Equal(t, "pending", out.Status)
	assert.Equal(t, 3, out.Nights)
	assert.Equal(t, "300.00", out.TotalPrice.Amount)
	assert.Equal(t, "2025-06-10", out.CheckIn)

	_, err = h.Handle(context.Background(), booking.CreateBookingCommand{ListingID: "l1", GuestID: "g1", CheckIn: date(13), CheckOut: date(10), Guests: 2})
	assert.ErrorIs(t, err, domainbooking.ErrInvalidDateRange)

	_, err = h.Handle(context.Background(), booking.CreateBookingCommand{ListingID: "missing", GuestID: "g1", CheckIn: date(10), CheckOut: date(13), Guests: 1})
	assert.ErrorIs(t, err, booking.ErrListingNotFound)
}

func TestBookingTotalFollowsCurrentRate(t *testing.T) {
	factory, listings := setup(t)
	id := createBooking(t, factory)

	listing, err := listings.ByID(context.Background(), "l1")
	require.NoError(t, err)
	price := money.Must(12550, "ETB")
	require.NoError(t, listing.UpdateTerms("h1", &price, nil, now))
	require.NoError(t, listings.Save(context.Background(), listing))

	got, err := (&booking.GetBookingHandler{UoWFactory: factory}).Handle(context.Background(), booking.GetBookingQuery{BookingID: id, RequesterID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, "376.50", got.TotalPrice.Amount)

	host, err := (&booking.GetBookingHandler{UoWFactory: factory}).Handle(context.Background(), booking.GetBookingQuery{BookingID: id, RequesterID: "h1"})
	require.NoError(t, err)
	assert.Equal(t, got.ID, host.ID)

	_, err = (&booking.GetBookingHandler{UoWFactory: factory}).Handle(context.Background(), booking.GetBookingQuery{BookingID: id, RequesterID: "stranger"})
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
}

func TestTransitionBookingWithListingHostPolicy(t *testing.T) {
	tests := []struct {
		name    string
		actor   domainbooking.Actor
		target  domainbooking.Status
		wantErr error
	}{
		{name: "host confirms", actor: domainbooking.Actor{ID: "h1", Kind: domainbooking.ActorHost}, target: domainbooking.StatusConfirmed},
		{name: "host cancels", actor: domainbooking.Actor{ID: "h1", Kind: domainbooking.ActorHost}, target: domainbooking.StatusCancelled},
		{name: "guest cancels own", actor: domainbooking.Actor{ID: "g1", Kind: domainbooking.ActorGuest}, target: domainbooking.StatusCancelled},
		{name: "host role cancels own stay elsewhere", actor: domainbooking.Actor{ID: "g1", Kind: domainbooking.ActorHost}, target: domainbooking.StatusCancelled},
		{name: "host role cannot confirm own stay elsewhere", actor: domainbooking.Actor{ID: "g1", Kind: domainbooking.ActorHost}, target: domainbooking.StatusConfirmed, wantErr: domainbooking.ErrUnauthorized},
		{name: "system confirms", actor: domainbooking.SystemActor, target: domainbooking.StatusConfirmed},
		{name: "guest cannot confirm", actor: domainbooking.Actor{ID: "g1", Kind: domainbooking.ActorGuest}, target: domainbooking.StatusConfirmed, wantErr: domainbooking.ErrUnauthorized},
		{name: "other host cannot confirm", actor: domainbooking.Actor{ID: "h2", Kind: domainbooking.ActorHost}, target: domainbooking.StatusConfirmed, wantErr: domainbooking.ErrUnauthorized},
		{name: "other guest cannot cancel", actor: domainbooking.Actor{ID: "g2", Kind: domainbooking.ActorGuest}, target: domainbooking.StatusCancelled, wantErr: domainbooking.ErrUnauthorized},
		{name: "system cannot cancel", actor: domainbooking.SystemActor, target: domainbooking.StatusCancelled, wantErr: domainbooking.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, listings := setup(t)
			id := createBooking(t, factory)
			h := &booking.TransitionBookingHandler{UoWFactory: factory, Policy: booking.ListingHostPolicy{Listings: listings}, Now: func() time.Time { return now }}

			out, err := h.Handle(context.Background(), booking.TransitionBookingCommand{BookingID: id, Target: tt.target, Actor: tt.actor})
			stored, lookupErr := factory.BookingRepo.ByID(context.Background(), domainbooking.BookingID(id))
			require.NoError(t, lookupErr)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, domainbooking.StatusPending, stored.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, string(tt.target), out.Status)
			assert.Equal(t, tt.target, stored.Status)
		})
	}
}

func TestTransitionBookingTerminalStates(t *testing.T) {
	factory, listings := setup(t)
	id := createBooking(t, factory)
	h := &booking.TransitionBookingHandler{UoWFactory: factory, Policy: booking.ListingHostPolicy{Listings: listings}, Now: func() time.Time { return now }}
	host := domainbooking.Actor{ID: "h1", Kind: domainbooking.ActorHost}

	_, err := h.Handle(context.Background(), booking.TransitionBookingCommand{BookingID: id, Target: domainbooking.StatusConfirmed, Actor: host})
	require.NoError(t, err)
	_, err = h.Handle(context.Background(), booking.TransitionBookingCommand{BookingID: id, Target: domainbooking.StatusCancelled, Actor: host})
	assert.ErrorIs(t, err, domainbooking.ErrIllegalTransition)

	_, err = h.Handle(context.Background(), booking.TransitionBookingCommand{BookingID: "nope", Target: domainbooking.StatusCancelled, Actor: host})
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
}

func TestListGuestBookings(t *testing.T) {
	factory, _ := setup(t)
	createBooking(t, factory)

	out, err := (&booking.ListGuestBookingsHandler{UoWFactory: factory}).Handle(context.Background(), booking.ListGuestBookingsQuery{GuestID: "g1"})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "300.00", out.Items[0].TotalPrice.Amount)

	out, err = (&booking.ListGuestBookingsHandler{UoWFactory: factory}).Handle(context.Background(), booking.ListGuestBookingsQuery{GuestID: "g2"})
	require.NoError(t, err)
	assert.Empty(t, out.Items)
}
