package booking

import (
	"context"
	"errors"
	"sort"
	"strings"

	"staypay/internal/app/dto"
	handlersupport "staypay/internal/app/handlers/support"
	"staypay/internal/app/queries"
	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
	domainlistings "staypay/internal/domain/listings"
	"staypay/internal/domain/pricing"
)

const (
	getBookingKey        = "booking.get"
	listGuestBookingsKey = "booking.list_guest"
)

type GetBookingQuery struct {
	BookingID   string
	RequesterID string
}

func (q GetBookingQuery) Key() string { return getBookingKey }

func (q GetBookingQuery) Requester() string { return q.RequesterID }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

// Handle shows a booking to its guest or the listing host, with the total
// recomputed from the current nightly rate.
func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Booking{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	booking, err := unit.Booking().ByID(execCtx, domainbooking.BookingID(strings.TrimSpace(q.BookingID)))
	if err != nil {
		if errors.Is(err, domainbooking.ErrBookingNotFound) {
			return dto.Booking{}, ErrBookingNotFound
		}
		return dto.Booking{}, err
	}
	listing, err := unit.Listings().ByID(execCtx, booking.ListingID)
	if err != nil {
		return dto.Booking{}, err
	}
	if !booking.OwnedBy(q.RequesterID) && listing.Host != domainlistings.HostID(q.RequesterID) {
		return dto.Booking{}, ErrBookingNotFound
	}
	quote, err := pricing.QuoteStay(booking.Range, listing.NightlyPrice)
	if err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(booking, quote), nil
}

type ListGuestBookingsQuery struct {
	GuestID string
}

func (q ListGuestBookingsQuery) Key() string { return listGuestBookingsKey }

func (q ListGuestBookingsQuery) Requester() string { return q.GuestID }

type ListGuestBookingsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListGuestBookingsHandler) Handle(ctx context.Context, q ListGuestBookingsQuery) (dto.BookingCollection, error) {
	guestID := strings.TrimSpace(q.GuestID)
	if guestID == "" {
		return dto.BookingCollection{}, errors.New("booking: guest id is required")
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	bookings, err := unit.Booking().ListByGuest(execCtx, guestID)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	listingCache := make(map[domainlistings.ListingID]*domainlistings.Listing)
	items := make([]dto.Booking, 0, len(bookings))
	for _, b := range bookings {
		listing, ok := listingCache[b.ListingID]
		if !ok {
			listing, err = unit.Listings().ByID(execCtx, b.ListingID)
			if err != nil {
				return dto.BookingCollection{}, err
			}
			listingCache[b.ListingID] = listing
		}
		quote, err := pricing.QuoteStay(b.Range, listing.NightlyPrice)
		if err != nil {
			return dto.BookingCollection{}, err
		}
		items = append(items, dto.MapBooking(b, quote))
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return dto.BookingCollection{Items: items}, nil
}

var _ queries.Handler[GetBookingQuery, dto.Booking] = (*GetBookingHandler)(nil)
var _ queries.Handler[ListGuestBookingsQuery, dto.BookingCollection] = (*ListGuestBookingsHandler)(nil)
