package listings

import (
	"context"
	"errors"

	"staypay/internal/app/dto"
	handlersupport "staypay/internal/app/handlers/support"
	"staypay/internal/app/queries"
	"staypay/internal/app/uow"
	domainlistings "staypay/internal/domain/listings"
)

const (
	getListingKey   = "listings.get"
	listListingsKey = "listings.list"

	defaultListLimit = 24
	maxListLimit     = 100
)

type GetListingQuery struct {
	ListingID string
}

func (q GetListingQuery) Key() string { return getListingKey }

type GetListingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetListingHandler) Handle(ctx context.Context, q GetListingQuery) (dto.Listing, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Listing{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		if errors.Is(err, domainlistings.ErrNotFound) {
			return dto.Listing{}, ErrListingNotFound
		}
		return dto.Listing{}, err
	}
	return dto.MapListing(listing), nil
}

type ListListingsQuery struct {
	Limit  int
	Offset int
}

func (q ListListingsQuery) Key() string { return listListingsKey }

type ListListingsHandler struct {
	UoWFactory uow.UoWFactory
}

// Handle returns listings newest first.
func (h *ListListingsHandler) Handle(ctx context.Context, q ListListingsQuery) (dto.ListingCollection, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ListingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	list, err := unit.Listings().List(execCtx, limit, offset)
	if err != nil {
		return dto.ListingCollection{}, err
	}
	items := make([]dto.Listing, 0, len(list))
	for _, l := range list {
		items = append(items, dto.MapListing(l))
	}
	return dto.ListingCollection{Items: items, Limit: limit, Offset: offset}, nil
}

var _ queries.Handler[GetListingQuery, dto.Listing] = (*GetListingHandler)(nil)
var _ queries.Handler[ListListingsQuery, dto.ListingCollection] = (*ListListingsHandler)(nil)
