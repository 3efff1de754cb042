package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainbooking "staypay/internal/domain/booking"
	domainlistings "staypay/internal/domain/listings"
	domainpayments "staypay/internal/domain/payments"
	domainreviews "staypay/internal/domain/reviews"
)

// ListingRepository is an in-memory implementation for local runs and tests.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]*domainlistings.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{
		items: make(map[domainlistings.ListingID]*domainlistings.Listing),
	}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	listing, ok := r.items[id]
	if !ok {
		return nil, domainlistings.ErrNotFound
	}
	return listing.Clone(), nil
}

func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing.Version++
	r.items[listing.ID] = listing.Clone()
	return nil
}

// List returns listings newest first.
func (r *ListingRepository) List(ctx context.Context, limit, offset int) ([]*domainlistings.Listing, error) {
	r.mu.RLock()
	all := make([]*domainlistings.Listing, 0, len(r.items))
	for _, l := range r.items {
		all = append(all, l.Clone())
	}
	r.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return window(all, limit, offset), nil
}

// BookingRepository stores bookings in memory.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]*domainbooking.Booking
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{items: make(map[domainbooking.BookingID]*domainbooking.Booking)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	booking, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return booking.Clone(), nil
}

// Save inserts when Version is zero and otherwise requires the stored version to match.
func (r *BookingRepository) Save(ctx context.Context, booking *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.items[booking.ID]
	switch {
	case booking.Version == 0 && exists:
		return domainbooking.ErrConcurrentUpdate
	case booking.Version != 0 && (!exists || stored.Version != booking.Version):
		return domainbooking.ErrConcurrentUpdate
	}
	booking.Version++
	r.items[booking.ID] = booking.Clone()
	return nil
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainbooking.Booking, 0)
	for _, b := range r.items {
		if b.GuestID == guestID {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

// PaymentRepository keeps payments in memory. Create and Save check the
// one-live-payment-per-booking constraint under the same lock as the write.
type PaymentRepository struct {
	mu    sync.RWMutex
	items map[domainpayments.Reference]*domainpayments.Payment
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{items: make(map[domainpayments.Reference]*domainpayments.Payment)}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domainpayments.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.liveRival(payment) {
		return domainpayments.ErrAlreadyInitiated
	}
	if _, taken := r.items[payment.Reference]; taken {
		return domainpayments.ErrDuplicateReference
	}
	payment.Version = 1
	r.items[payment.Reference] = payment.Clone()
	return nil
}

func (r *PaymentRepository) Save(ctx context.Context, payment *domainpayments.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[payment.Reference]
	if !ok {
		return domainpayments.ErrNotFound
	}
	if stored.Version != payment.Version {
		return domainpayments.ErrConcurrentUpdate
	}
	if !stored.Status.Live() && r.liveRival(payment) {
		return domainpayments.ErrAlreadyInitiated
	}
	payment.Version++
	r.items[payment.Reference] = payment.Clone()
	return nil
}

// liveRival reports whether another attempt for the same booking is live while
// payment itself would be. Callers hold r.mu.
func (r *PaymentRepository) liveRival(payment *domainpayments.Payment) bool {
	if !payment.Status.Live() {
		return false
	}
	for ref, p := range r.items {
		if ref != payment.Reference && p.BookingID == payment.BookingID && p.Status.Live() {
			return true
		}
	}
	return false
}

func (r *PaymentRepository) ByReference(ctx context.Context, ref domainpayments.Reference) (*domainpayments.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[ref]
	if !ok {
		return nil, domainpayments.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *PaymentRepository) LiveByBooking(ctx context.Context, bookingID domainbooking.BookingID) (*domainpayments.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.items {
		if p.BookingID == bookingID && p.Status.Live() {
			return p.Clone(), nil
		}
	}
	return nil, domainpayments.ErrNotFound
}

// ListByBooking returns every attempt for the booking, oldest first.
func (r *PaymentRepository) ListByBooking(ctx context.Context, bookingID domainbooking.BookingID) ([]*domainpayments.Payment, error) {
	r.mu.RLock()
	out := make([]*domainpayments.Payment, 0)
	for _, p := range r.items {
		if p.BookingID == bookingID {
			out = append(out, p.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Attempt < out[j].Attempt })
	return out, nil
}

func (r *PaymentRepository) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]*domainpayments.Payment, error) {
	r.mu.RLock()
	out := make([]*domainpayments.Payment, 0)
	for _, p := range r.items {
		if p.Status == domainpayments.StatusPending && !p.CreatedAt.After(createdBefore) {
			out = append(out, p.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return window(out, limit, 0), nil
}

// ReviewsRepository is a lightweight in-memory review store.
type ReviewsRepository struct {
	mu    sync.RWMutex
	items map[domainreviews.ReviewID]*domainreviews.Review
}

func NewReviewsRepository() *ReviewsRepository {
	return &ReviewsRepository{items: make(map[domainreviews.ReviewID]*domainreviews.Review)}
}

func (r *ReviewsRepository) Create(ctx context.Context, review *domainreviews.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.ListingID == review.ListingID && existing.AuthorID == review.AuthorID {
			return domainreviews.ErrDuplicateReview
		}
	}
	stored := *review
	stored.ClearEvents()
	r.items[review.ID] = &stored
	return nil
}

func (r *ReviewsRepository) ListByListing(ctx context.Context, listingID domainlistings.ListingID, limit, offset int) ([]*domainreviews.Review, error) {
	r.mu.RLock()
	out := make([]*domainreviews.Review, 0)
	for _, review := range r.items {
		if review.ListingID == listingID {
			copied := *review
			out = append(out, &copied)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return window(out, limit, offset), nil
}

func window[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return items[:0]
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

var (
	_ domainlistings.ListingRepository = (*ListingRepository)(nil)
	_ domainbooking.Repository         = (*BookingRepository)(nil)
	_ domainpayments.Repository        = (*PaymentRepository)(nil)
	_ domainreviews.Repository         = (*ReviewsRepository)(nil)
)
