package dto

import (
	"time"

	domainbooking "staypay/internal/domain/booking"
	"staypay/internal/domain/pricing"
	"staypay/internal/domain/shared/money"
)

const dateLayout = "2006-01-02"

type MoneyDTO struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.String(),
		Currency: value.Currency,
	}
}

// Booking always carries a total computed from the listing's current nightly rate.
type Booking struct {
	ID         string    `json:"id"`
	ListingID  string    `json:"listing_id"`
	GuestID    string    `json:"guest_id"`
	CheckIn    string    `json:"check_in"`
	CheckOut   string    `json:"check_out"`
	Guests     int       `json:"guests"`
	Status     string    `json:"status"`
	Nights     int       `json:"nights"`
	TotalPrice MoneyDTO  `json:"total_price"`
	CreatedAt  time.Time `json:"created_at"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

func MapBooking(b *domainbooking.Booking, quote pricing.Quote) Booking {
	return Booking{
		ID:         string(b.ID),
		ListingID:  string(b.ListingID),
		GuestID:    b.GuestID,
		CheckIn:    b.Range.CheckIn.Format(dateLayout),
		CheckOut:   b.Range.CheckOut.Format(dateLayout),
		Guests:     b.Guests,
		Status:     string(b.Status),
		Nights:     quote.Nights,
		TotalPrice: MapMoney(quote.Total),
		CreatedAt:  b.CreatedAt,
	}
}
