package listings

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"staypay/internal/app/commands"
	"staypay/internal/app/dto"
	"staypay/internal/app/outbox"
	"staypay/internal/app/uow"
	domainlistings "staypay/internal/domain/listings"
	"staypay/internal/domain/shared/money"
)

const (
	createHostListingKey = "host.listings.create"
	updateHostListingKey = "host.listings.update"
)

var ErrListingNotFound = errors.New("listings: listing not found")

type CreateHostListingCommand struct {
	HostID       string `validate:"required"`
	Title        string `validate:"required,max=200"`
	Description  string `validate:"max=5000"`
	Location     string `validate:"required,max=200"`
	NightlyPrice string `validate:"required"`
	Currency     string `validate:"omitempty,len=3"`
}

func (c CreateHostListingCommand) Key() string { return createHostListingKey }

func (c CreateHostListingCommand) Requester() string { return c.HostID }

type CreateHostListingHandler struct {
	Currency string
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Logger   *slog.Logger
}

func (h *CreateHostListingHandler) Handle(ctx context.Context, cmd CreateHostListingCommand) (*dto.Listing, error) {
	if strings.TrimSpace(cmd.HostID) == "" {
		return nil, errors.New("host id is required")
	}
	unit, err := uow.Require(ctx)
	if err != nil {
		return nil, err
	}

	currency := cmd.Currency
	if currency == "" {
		currency = h.Currency
	}
	price, err := money.ParseDecimal(cmd.NightlyPrice, currency)
	if err != nil {
		return nil, err
	}
	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:           domainlistings.ListingID(uuid.NewString()),
		Host:         domainlistings.HostID(cmd.HostID),
		Title:        cmd.Title,
		Description:  cmd.Description,
		Location:     cmd.Location,
		NightlyPrice: price,
		Now:          time.Now(),
	})
	if err != nil {
		return nil, err
	}

	if err := unit.Listings().Save(ctx, listing); err != nil {
		return nil, err
	}
	if err := outbox.Drain(ctx, h.Outbox, h.Encoder, listing); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("host listing created", "listing_id", listing.ID, "host_id", cmd.HostID)
	}

	result := dto.MapListing(listing)
	return &result, nil
}

// UpdateHostListingCommand edits price and description; both stay editable
// after bookings exist because booking totals are always recomputed.
type UpdateHostListingCommand struct {
	HostID       string `validate:"required"`
	ListingID    string `validate:"required"`
	NightlyPrice *string
	Description  *string
}

func (c UpdateHostListingCommand) Key() string { return updateHostListingKey }

func (c UpdateHostListingCommand) Requester() string { return c.HostID }

type UpdateHostListingHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
}

func (h *UpdateHostListingHandler) Handle(ctx context.Context, cmd UpdateHostListingCommand) (*dto.Listing, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return nil, err
	}

	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(cmd.ListingID))
	if err != nil {
		if errors.Is(err, domainlistings.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	var price *money.Money
	if cmd.NightlyPrice != nil {
		parsed, err := money.ParseDecimal(*cmd.NightlyPrice, listing.NightlyPrice.Currency)
		if err != nil {
			return nil, err
		}
		price = &parsed
	}
	if err := listing.UpdateTerms(domainlistings.HostID(cmd.HostID), price, cmd.Description, time.Now()); err != nil {
		return nil, err
	}
	if err := unit.Listings().Save(ctx, listing); err != nil {
		return nil, err
	}
	if err := outbox.Drain(ctx, h.Outbox, h.Encoder, listing); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("host listing updated", "listing_id", listing.ID, "host_id", cmd.HostID)
	}

	result := dto.MapListing(listing)
	return &result, nil
}

var _ commands.Handler[CreateHostListingCommand, *dto.Listing] = (*CreateHostListingHandler)(nil)
var _ commands.Handler[UpdateHostListingCommand, *dto.Listing] = (*UpdateHostListingHandler)(nil)
