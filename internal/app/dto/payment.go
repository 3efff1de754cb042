package dto

import (
	"time"

	domainpayments "staypay/internal/domain/payments"
)

// Payment is the local record only; reading it never contacts the gateway.
type Payment struct {
	ID         string     `json:"id"`
	BookingID  string     `json:"booking_id"`
	Reference  string     `json:"transaction_reference"`
	Amount     MoneyDTO   `json:"amount"`
	Status     string     `json:"status"`
	Attempt    int        `json:"attempt"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

type PaymentCollection struct {
	Items []Payment `json:"items"`
}

func MapPayment(p *domainpayments.Payment) Payment {
	out := Payment{
		ID:        string(p.ID),
		BookingID: string(p.BookingID),
		Reference: string(p.Reference),
		Amount:    MapMoney(p.Amount),
		Status:    string(p.Status),
		Attempt:   p.Attempt,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if !p.VerifiedAt.IsZero() {
		verified := p.VerifiedAt
		out.VerifiedAt = &verified
	}
	return out
}
