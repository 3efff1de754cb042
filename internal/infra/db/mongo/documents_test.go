package mongo

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	domainpayments "staypay/internal/domain/payments"
	"staypay/internal/domain/shared/money"
)

func TestDuplicateOn(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Code:    11000,
		Message: "E11000 duplicate key error collection: staypay.agg_payment index: uniq_live_payment_per_booking dup key: { booking_id: \"b1\" }",
	}}}

	assert.True(t, duplicateOn(dup, idxLivePayment))
	assert.False(t, duplicateOn(dup, idxPaymentRef))
	assert.False(t, duplicateOn(errors.New("uniq_tx_ref"), idxPaymentRef))
}

func TestPaymentDocumentRoundTrip(t *testing.T) {
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	p, err := domainpayments.NewPayment(domainpayments.CreateParams{
		ID: "p1", BookingID: "b1", PayerID: "u1", Reference: "booking_b1_u1",
		Amount: money.Must(30000, "ETB"), Attempt: 1, Now: created,
	})
	require.NoError(t, err)

	doc := newPaymentDocument(p)
	assert.True(t, doc.Live)
	assert.Zero(t, doc.VerifiedAt)

	p.Reconcile(domainpayments.RemoteFailed, created.Add(time.Minute))
	doc = newPaymentDocument(p)
	assert.False(t, doc.Live, "failed payments leave the live index")

	back := doc.toAggregate()
	assert.Equal(t, p.Amount, back.Amount)
	assert.Equal(t, domainpayments.StatusFailed, back.Status)
	assert.Equal(t, created.Add(time.Minute), back.VerifiedAt)
	assert.Equal(t, created, back.CreatedAt)
}
