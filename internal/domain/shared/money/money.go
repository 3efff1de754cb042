package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrInvalidAmount    = errors.New("money: invalid decimal amount")
	ErrTooPrecise       = errors.New("money: amount has more than two decimal places")
	ErrOverflow         = errors.New("money: amount out of range")
)

// Scale is the number of minor units in one major unit.
const Scale = 100

// Money keeps amounts in integer minor units (two decimal places) to avoid floating point issues.
type Money struct {
	Amount   int64
	Currency string
}

// New constructs a Money value validating minimal invariants.
func New(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	currency = strings.ToUpper(currency)
	return Money{Amount: amount, Currency: currency}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseDecimal reads a decimal string such as "100", "100.5" or "100.50" into minor units.
func ParseDecimal(raw string, currency string) (Money, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Money{}, ErrInvalidAmount
	}
	negative := false
	switch value[0] {
	case '-':
		negative = true
		value = value[1:]
	case '+':
		value = value[1:]
	}
	whole, frac, hasFrac := strings.Cut(value, ".")
	if whole == "" && frac == "" {
		return Money{}, ErrInvalidAmount
	}
	if hasFrac && frac == "" {
		return Money{}, ErrInvalidAmount
	}
	if len(frac) > 2 {
		if strings.TrimRight(frac[2:], "0") != "" {
			return Money{}, ErrTooPrecise
		}
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return Money{}, ErrInvalidAmount
	}
	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	minor, _ := strconv.ParseInt(frac, 10, 64)
	if major > (1<<63-1-minor)/Scale {
		return Money{}, fmt.Errorf("%w: overflow", ErrInvalidAmount)
	}
	amount := major*Scale + minor
	if negative {
		amount = -amount
	}
	return New(amount, currency)
}

// String renders the amount as a plain decimal with two fraction digits, e.g. "300.00".
func (m Money) String() string {
	amount := m.Amount
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/Scale, amount%Scale)
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub subtracts other from the receiver.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Multiply multiplies the amount by the provided factor, failing with
// ErrOverflow when the product does not fit in int64 minor units.
func (m Money) Multiply(times int64) (Money, error) {
	if m.Amount != 0 && times != 0 {
		if m.Amount == math.MinInt64 || times == math.MinInt64 || abs(m.Amount) > math.MaxInt64/abs(times) {
			return Money{}, ErrOverflow
		}
	}
	return Money{Amount: m.Amount * times, Currency: m.Currency}, nil
}

// IsZero returns true if the amount equals zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.Amount < 0
}

// Equal compares amount and currency.
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
