package booking

import (
	"context"

	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
	domainlistings "staypay/internal/domain/listings"
)

// ListingHostPolicy lets the guest cancel their own booking, the listing host
// confirm or cancel it, and the system actor confirm it. A host cancelling a
// booking they made as a guest is treated as that guest.
type ListingHostPolicy struct {
	Listings domainlistings.ListingRepository
}

func (p ListingHostPolicy) Allows(ctx context.Context, actor domainbooking.Actor, b *domainbooking.Booking, target domainbooking.Status) (bool, error) {
	switch actor.Kind {
	case domainbooking.ActorSystem:
		return target == domainbooking.StatusConfirmed, nil
	case domainbooking.ActorGuest:
		return target == domainbooking.StatusCancelled && b.OwnedBy(actor.ID), nil
	case domainbooking.ActorHost:
		if target == domainbooking.StatusCancelled && b.OwnedBy(actor.ID) {
			return true, nil
		}
		listings := p.Listings
		if unit, ok := uow.FromContext(ctx); ok {
			listings = unit.Listings()
		}
		if listings == nil {
			return false, nil
		}
		listing, err := listings.ByID(ctx, b.ListingID)
		if err != nil {
			return false, err
		}
		return listing.Host == domainlistings.HostID(actor.ID), nil
	}
	return false, nil
}

var _ domainbooking.TransitionPolicy = ListingHostPolicy{}
