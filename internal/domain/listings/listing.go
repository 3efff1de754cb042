package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"staypay/internal/domain/shared/events"
	"staypay/internal/domain/shared/money"
)

var (
	ErrTitleRequired    = errors.New("listings: title is required")
	ErrLocationRequired = errors.New("listings: location is required")
	ErrNightlyRate      = errors.New("listings: nightly rate must be between 0 and 99999999.99")
	ErrNotFound         = errors.New("listings: not found")
	ErrNotOwner         = errors.New("listings: listing is not owned by host")
)

// MaxNightlyRate caps the nightly price at ten significant digits.
const MaxNightlyRate int64 = 99_999_999_99

type ListingID string
type HostID string

// Listing is a rentable unit owned by a host. Only NightlyPrice feeds the booking core.
type Listing struct {
	ID           ListingID
	Host         HostID
	Title        string
	Description  string
	Location     string
	NightlyPrice money.Money
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int64
	events.EventRecorder
}

type ListingRepository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
	List(ctx context.Context, limit, offset int) ([]*Listing, error)
}

type CreateListingParams struct {
	ID           ListingID
	Host         HostID
	Title        string
	Description  string
	Location     string
	NightlyPrice money.Money
	Now          time.Time
}

func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("listings: id is required")
	}
	if strings.TrimSpace(string(params.Host)) == "" {
		return nil, errors.New("listings: host is required")
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	location := strings.TrimSpace(params.Location)
	if location == "" {
		return nil, ErrLocationRequired
	}
	if !validRate(params.NightlyPrice) {
		return nil, ErrNightlyRate
	}
	if params.NightlyPrice.Currency == "" {
		return nil, money.ErrInvalidCurrency
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	listing := &Listing{
		ID:           params.ID,
		Host:         params.Host,
		Title:        title,
		Description:  strings.TrimSpace(params.Description),
		Location:     location,
		NightlyPrice: params.NightlyPrice,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	listing.Record(ListingCreated{
		ListingID:    listing.ID,
		HostID:       listing.Host,
		NightlyPrice: listing.NightlyPrice.String(),
		Currency:     listing.NightlyPrice.Currency,
		At:           now,
	})
	return listing, nil
}

// UpdateTerms applies host edits. Price and description stay editable after bookings reference the listing.
func (l *Listing) UpdateTerms(host HostID, price *money.Money, description *string, now time.Time) error {
	if l.Host != host {
		return ErrNotOwner
	}
	priceChanged := false
	if price != nil {
		if !validRate(*price) {
			return ErrNightlyRate
		}
		if price.Currency != l.NightlyPrice.Currency {
			return money.ErrCurrencyMismatch
		}
		priceChanged = !price.Equal(l.NightlyPrice)
		l.NightlyPrice = *price
	}
	if description != nil {
		l.Description = strings.TrimSpace(*description)
	}
	l.UpdatedAt = now.UTC()
	l.Record(ListingTermsUpdated{
		ListingID:    l.ID,
		NightlyPrice: l.NightlyPrice.String(),
		Currency:     l.NightlyPrice.Currency,
		PriceChanged: priceChanged,
		At:           l.UpdatedAt,
	})
	return nil
}

func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	clone.EventRecorder = events.EventRecorder{}
	return &clone
}

func validRate(m money.Money) bool {
	return !m.IsNegative() && m.Amount <= MaxNightlyRate
}
