package dto

import (
	"time"

	domainlistings "staypay/internal/domain/listings"
)

type Listing struct {
	ID           string    `json:"id"`
	HostID       string    `json:"host_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Location     string    `json:"location"`
	NightlyPrice MoneyDTO  `json:"nightly_price"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ListingCollection struct {
	Items  []Listing `json:"items"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

func MapListing(l *domainlistings.Listing) Listing {
	return Listing{
		ID:           string(l.ID),
		HostID:       string(l.Host),
		Title:        l.Title,
		Description:  l.Description,
		Location:     l.Location,
		NightlyPrice: MapMoney(l.NightlyPrice),
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}
