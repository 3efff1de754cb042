package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int64
		err  error
	}{
		{name: "whole", raw: "100", want: 10000},
		{name: "two decimals", raw: "100.00", want: 10000},
		{name: "one decimal", raw: "99.5", want: 9950},
		{name: "cents only", raw: ".07", want: 7},
		{name: "trailing zeros beyond scale", raw: "12.3400", want: 1234},
		{name: "negative", raw: "-1.25", want: -125},
		{name: "too precise", raw: "1.005", err: ErrTooPrecise},
		{name: "garbage", raw: "12a.00", err: ErrInvalidAmount},
		{name: "empty", raw: "  ", err: ErrInvalidAmount},
		{name: "dangling dot", raw: "5.", err: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimal(tt.raw, "etb")
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Amount)
			assert.Equal(t, "ETB", got.Currency)
		})
	}
}

func TestStringRendersTwoDecimals(t *testing.T) {
	assert.Equal(t, "300.00", Must(30000, "ETB").String())
	assert.Equal(t, "0.05", Must(5, "ETB").String())
	assert.Equal(t, "-12.30", Must(-1230, "ETB").String())
}

func TestArithmeticRequiresSameCurrency(t *testing.T) {
	_, err := Must(100, "ETB").Add(Must(100, "USD"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	sum, err := Must(150, "ETB").Add(Must(50, "ETB"))
	require.NoError(t, err)
	assert.Equal(t, int64(200), sum.Amount)

	_, err = New(1, "EURO")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestMultiply(t *testing.T) {
	total, err := Must(10000, "ETB").Multiply(3)
	require.NoError(t, err)
	assert.Equal(t, "300.00", total.String())

	zero, err := Must(1<<62, "ETB").Multiply(0)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = Must(1<<62, "ETB").Multiply(2)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = Must(-(1 << 62), "ETB").Multiply(2)
	assert.ErrorIs(t, err, ErrOverflow)
}
