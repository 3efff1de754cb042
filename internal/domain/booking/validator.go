package booking

import (
	"fmt"
	"time"

	"staypay/internal/domain/listings"
	"staypay/internal/domain/pricing"
	"staypay/internal/domain/shared/daterange"
)

// ValidationError is a user-correctable problem with a booking request.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return "booking: " + e.Message
}

// Is matches any ValidationError carrying the same code.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidDateRange  = &ValidationError{Code: "invalid_date_range", Message: "check-out must be after check-in"}
	ErrPastCheckIn       = &ValidationError{Code: "past_check_in", Message: "check-in date cannot be in the past"}
	ErrInvalidGuestCount = &ValidationError{Code: "invalid_guest_count", Message: "guests count must be at least 1"}
)

// Draft is an unvalidated booking request.
type Draft struct {
	GuestID   string
	ListingID listings.ListingID
	CheckIn   time.Time
	CheckOut  time.Time
	Guests    int
}

// Validated is a draft that passed Validate; only Validate produces one with a non-zero Range.
type Validated struct {
	Draft
	Range daterange.DateRange
}

// Validate checks, in order, the date range, the check-in day against today and the
// guest count, stopping at the first failure. It does not look at other bookings.
func Validate(draft Draft, today time.Time) (Validated, error) {
	if draft.CheckIn.IsZero() || draft.CheckOut.IsZero() || pricing.Nights(draft.CheckIn, draft.CheckOut) <= 0 {
		return Validated{}, ErrInvalidDateRange
	}
	if daterange.Day(draft.CheckIn).Before(daterange.Day(today)) {
		return Validated{}, ErrPastCheckIn
	}
	if draft.Guests < 1 {
		return Validated{}, ErrInvalidGuestCount
	}
	dr, err := daterange.New(draft.CheckIn, draft.CheckOut)
	if err != nil {
		return Validated{}, fmt.Errorf("%w: %v", ErrInvalidDateRange, err)
	}
	return Validated{Draft: draft, Range: dr}, nil
}
