package listings

import "time"

// ListingCreated carries the opening nightly rate so downstream consumers can
// price stays without reading the listing.
type ListingCreated struct {
	ListingID    ListingID `json:"listing_id"`
	HostID       HostID    `json:"host_id"`
	NightlyPrice string    `json:"nightly_price"`
	Currency     string    `json:"currency"`
	At           time.Time `json:"occurred_at"`
}

func (e ListingCreated) EventName() string     { return "listing.created" }
func (e ListingCreated) AggregateID() string   { return string(e.ListingID) }
func (e ListingCreated) OccurredAt() time.Time { return e.At }

// ListingTermsUpdated is recorded on every host edit. PriceChanged marks edits
// that move the rate used for bookings priced from now on.
type ListingTermsUpdated struct {
	ListingID    ListingID `json:"listing_id"`
	NightlyPrice string    `json:"nightly_price"`
	Currency     string    `json:"currency"`
	PriceChanged bool      `json:"price_changed"`
	At           time.Time `json:"occurred_at"`
}

func (e ListingTermsUpdated) EventName() string     { return "listing.terms_updated" }
func (e ListingTermsUpdated) AggregateID() string   { return string(e.ListingID) }
func (e ListingTermsUpdated) OccurredAt() time.Time { return e.At }
