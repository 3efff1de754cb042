package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"staypay/internal/domain/listings"
	"staypay/internal/domain/shared/daterange"
)

var (
	ErrBookingNotFound  = errors.New("booking: not found")
	ErrConcurrentUpdate = errors.New("booking: concurrent update detected")
)

type BookingID string

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// Booking holds the listing by identifier only; the price is never stored and is
// recomputed from the listing's current nightly rate whenever it is shown.
type Booking struct {
	ID        BookingID
	ListingID listings.ListingID
	GuestID   string
	Range     daterange.DateRange
	Guests    int
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	// Save inserts a new booking (Version 0) or updates an existing one when
	// the stored version still matches, returning ErrConcurrentUpdate otherwise.
	Save(ctx context.Context, booking *Booking) error
	ListByGuest(ctx context.Context, guestID string) ([]*Booking, error)
}

type CreateParams struct {
	ID        BookingID
	Draft     Validated
	CreatedAt time.Time
}

// NewBooking creates a pending booking from an already validated draft.
func NewBooking(params CreateParams) (*Booking, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("booking: id required")
	}
	if strings.TrimSpace(params.Draft.GuestID) == "" {
		return nil, errors.New("booking: guest id required")
	}
	if strings.TrimSpace(string(params.Draft.ListingID)) == "" {
		return nil, errors.New("booking: listing id required")
	}
	now := params.CreatedAt.UTC()
	return &Booking{
		ID:        params.ID,
		ListingID: params.Draft.ListingID,
		GuestID:   params.Draft.GuestID,
		Range:     params.Draft.Range,
		Guests:    params.Draft.Guests,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// OwnedBy reports whether guestID made the booking.
func (b *Booking) OwnedBy(guestID string) bool {
	return guestID != "" && b.GuestID == guestID
}

// Clone returns a detached copy for stores that must not share mutable state.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	clone := *b
	return &clone
}
