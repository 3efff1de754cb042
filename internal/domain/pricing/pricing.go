package pricing

import (
	"errors"
	"fmt"
	"time"

	"staypay/internal/domain/shared/daterange"
	"staypay/internal/domain/shared/money"
)

var (
	ErrInvalidRange = errors.New("pricing: check-out must be after check-in")
	ErrNegativeRate = errors.New("pricing: nightly rate cannot be negative")
)

// Nights returns the number of billable nights, counting whole calendar days only.
func Nights(checkIn, checkOut time.Time) int {
	return daterange.DaysBetween(checkIn, checkOut)
}

// ComputeTotal prices a stay as nights x nightly rate in exact minor units.
func ComputeTotal(checkIn, checkOut time.Time, nightlyRate money.Money) (money.Money, error) {
	nights := Nights(checkIn, checkOut)
	if nights <= 0 {
		return money.Money{}, ErrInvalidRange
	}
	if nightlyRate.IsNegative() {
		return money.Money{}, ErrNegativeRate
	}
	total, err := nightlyRate.Multiply(int64(nights))
	if err != nil {
		return money.Money{}, fmt.Errorf("pricing: %d nights at %s: %w", nights, nightlyRate, err)
	}
	return total, nil
}

// Quote is a priced stay as shown to guests.
type Quote struct {
	Nights  int
	Nightly money.Money
	Total   money.Money
}

func QuoteStay(dr daterange.DateRange, nightlyRate money.Money) (Quote, error) {
	total, err := ComputeTotal(dr.CheckIn, dr.CheckOut, nightlyRate)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Nights: dr.Nights(), Nightly: nightlyRate, Total: total}, nil
}
