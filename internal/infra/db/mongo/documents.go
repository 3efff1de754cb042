package mongo

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"staypay/internal/domain/shared/money"
)

type moneyDocument struct {
	Minor    int64  `bson:"minor"`
	Currency string `bson:"currency"`
}

func newMoneyDocument(m money.Money) moneyDocument {
	return moneyDocument{Minor: m.Amount, Currency: m.Currency}
}

func (d moneyDocument) toMoney() money.Money {
	return money.Money{Amount: d.Minor, Currency: d.Currency}
}

func timestampToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func timeToTimestamp(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// duplicateOn reports whether err is a duplicate key violation of the named index.
func duplicateOn(err error, index string) bool {
	if !mongo.IsDuplicateKeyError(err) {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if strings.Contains(e.Message, index) {
				return true
			}
		}
		return false
	}
	return strings.Contains(err.Error(), index)
}

func notFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
