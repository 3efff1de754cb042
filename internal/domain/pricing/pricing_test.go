package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staypay/internal/domain/shared/daterange"
	"staypay/internal/domain/shared/money"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeTotal(t *testing.T) {
	tests := []struct {
		name     string
		checkIn  time.Time
		checkOut time.Time
		rate     string
		want     string
	}{
		{name: "three nights at 100", checkIn: day(2025, 6, 10), checkOut: day(2025, 6, 13), rate: "100.00", want: "300.00"},
		{name: "one night with cents", checkIn: day(2025, 1, 1), checkOut: day(2025, 1, 2), rate: "0.10", want: "0.10"},
		{name: "cents do not drift", checkIn: day(2025, 1, 1), checkOut: day(2025, 1, 31), rate: "33.33", want: "999.90"},
		{name: "month boundary", checkIn: day(2025, 2, 27), checkOut: day(2025, 3, 2), rate: "12.5", want: "37.50"},
		{name: "free listing", checkIn: day(2025, 1, 1), checkOut: day(2025, 1, 4), rate: "0", want: "0.00"},
		{name: "partial days are not billed", checkIn: day(2025, 1, 1).Add(22 * time.Hour), checkOut: day(2025, 1, 3).Add(time.Hour), rate: "10", want: "20.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, err := money.ParseDecimal(tt.rate, "ETB")
			require.NoError(t, err)

			total, err := ComputeTotal(tt.checkIn, tt.checkOut, rate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, total.String())
			assert.Equal(t, "ETB", total.Currency)
		})
	}
}

func TestComputeTotalRejectsEmptyRange(t *testing.T) {
	rate := money.Must(10000, "ETB")

	_, err := ComputeTotal(day(2025, 6, 13), day(2025, 6, 13), rate)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = ComputeTotal(day(2025, 6, 13), day(2025, 6, 10), rate)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestQuoteStay(t *testing.T) {
	dr, err := daterange.New(day(2025, 6, 10), day(2025, 6, 13))
	require.NoError(t, err)

	quote, err := QuoteStay(dr, money.Must(10000, "ETB"))
	require.NoError(t, err)
	assert.Equal(t, 3, quote.Nights)
	assert.Equal(t, int64(30000), quote.Total.Amount)
}

func TestComputeTotalRejectsOverflow(t *testing.T) {
	rate, err := money.ParseDecimal("50000000000000000.00", "ETB")
	require.NoError(t, err)

	_, err = ComputeTotal(day(2025, 6, 10), day(2025, 6, 12), rate)
	assert.ErrorIs(t, err, money.ErrOverflow)

	dr, err := daterange.New(day(2025, 6, 10), day(2025, 6, 12))
	require.NoError(t, err)
	_, err = QuoteStay(dr, rate)
	assert.ErrorIs(t, err, money.ErrOverflow)
}
