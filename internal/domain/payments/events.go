package payments

import (
	"time"

	"staypay/internal/domain/booking"
)

type PaymentInitiated struct {
	PaymentID PaymentID         `json:"payment_id"`
	BookingID booking.BookingID `json:"booking_id"`
	Reference Reference         `json:"tx_ref"`
	Amount    string            `json:"amount"`
	Currency  string            `json:"currency"`
	At        time.Time         `json:"occurred_at"`
}

func (e PaymentInitiated) EventName() string     { return "payment.initiated" }
func (e PaymentInitiated) AggregateID() string   { return string(e.PaymentID) }
func (e PaymentInitiated) OccurredAt() time.Time { return e.At }

type PaymentCompleted struct {
	PaymentID PaymentID         `json:"payment_id"`
	BookingID booking.BookingID `json:"booking_id"`
	Reference Reference         `json:"tx_ref"`
	Amount    string            `json:"amount"`
	Currency  string            `json:"currency"`
	At        time.Time         `json:"occurred_at"`
}

func (e PaymentCompleted) EventName() string     { return "payment.completed" }
func (e PaymentCompleted) AggregateID() string   { return string(e.PaymentID) }
func (e PaymentCompleted) OccurredAt() time.Time { return e.At }

type PaymentFailed struct {
	PaymentID    PaymentID         `json:"payment_id"`
	BookingID    booking.BookingID `json:"booking_id"`
	Reference    Reference         `json:"tx_ref"`
	RemoteStatus string            `json:"remote_status"`
	At           time.Time         `json:"occurred_at"`
}

func (e PaymentFailed) EventName() string     { return "payment.failed" }
func (e PaymentFailed) AggregateID() string   { return string(e.PaymentID) }
func (e PaymentFailed) OccurredAt() time.Time { return e.At }
