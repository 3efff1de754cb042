package payments_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staypay/internal/app/handlers/payments"
	"staypay/internal/app/policies"
	domainbooking "staypay/internal/domain/booking"
	domainlistings "staypay/internal/domain/listings"
	domainpayments "staypay/internal/domain/payments"
	"staypay/internal/domain/shared/money"
	"staypay/internal/infra/gateway/sandbox"
	"staypay/internal/infra/storage/memory"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	factory  memory.Factory
	bookings *memory.BookingRepository
	payments *memory.PaymentRepository
	outbox   *memory.Outbox
	gateway  *sandbox.Gateway
	receipts *receiptRecorder
	ids      atomic.Int64
}

type receiptRecorder struct {
	mu     sync.Mutex
	stored map[string][]byte
}

func (r *receiptRecorder) Store(_ context.Context, ref string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stored == nil {
		r.stored = make(map[string][]byte)
	}
	r.stored[ref] = payload
	return nil
}

func (r *receiptRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stored)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		bookings: memory.NewBookingRepository(),
		payments: memory.NewPaymentRepository(),
		outbox:   memory.NewOutbox(),
		gateway:  sandbox.New("https://pay.test/checkout"),
		receipts: &receiptRecorder{},
	}
	listings := memory.NewListingRepository()
	f.factory = memory.Factory{
		ListingsRepo: listings,
		BookingRepo:  f.bookings,
		PaymentsRepo: f.payments,
		ReviewsRepo:  memory.NewReviewsRepository(),
		Outbox:       f.outbox,
	}

	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID: "l1", Host: "h1", Title: "Lakeside", Location: "Bishoftu",
		NightlyPrice: money.Must(10000, "ETB"), Now: now,
	})
	require.NoError(t, err)
	require.NoError(t, listings.Save(context.Background(), listing))

	validated, err := domainbooking.Validate(domainbooking.Draft{
		GuestID: "u1", ListingID: "l1",
		CheckIn: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), CheckOut: time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC),
		Guests: 2,
	}, now)
	require.NoError(t, err)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{ID: "b1", Draft: validated, CreatedAt: now})
	require.NoError(t, err)
	require.NoError(t, f.bookings.Save(context.Background(), b))
	return f
}

func (f *fixture) initiator(locker policies.Locker) *payments.InitiatePaymentHandler {
	return &payments.InitiatePaymentHandler{
		UoWFactory: f.factory,
		Gateway:    f.gateway,
		Locker:     locker,
		Outbox:     f.outbox,
		Title:      "Booking",
		Now:        func() time.Time { return now },
		NewID:      func() string { return fmt.Sprintf("p%d", f.ids.Add(1)) },
	}
}

func (f *fixture) verifier() *payments.VerifyPaymentHandler {
	return &payments.VerifyPaymentHandler{
		UoWFactory: f.factory,
		Gateway:    f.gateway,
		Locker:     memory.NewKeyedLocker(),
		Receipts:   f.receipts,
		Outbox:     f.outbox,
		Now:        func() time.Time { return now.Add(time.Minute) },
	}
}

var payer = policies.PayerInfo{ID: "u1", Email: "abebe@example.com", FirstName: "Abebe", LastName: "Bikila"}

func eventNames(o *memory.Outbox) []string {
	var names []string
	for _, rec := range o.Records() {
		names = append(names, rec.Name)
	}
	return names
}

func TestInitiatePaymentRecordsPendingPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.initiator(nil).Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
	require.NoError(t, err)
	assert.Equal(t, "booking_b1_u1", res.Reference)
	assert.Equal(t, "https://pay.test/checkout/booking_b1_u1", res.CheckoutURL)
	assert.Equal(t, "300.00", res.Amount)
	assert.Equal(t, "ETB", res.Currency)

	stored, err := f.payments.ByReference(ctx, "booking_b1_u1")
	require.NoError(t, err)
	assert.Equal(t, domainpayments.StatusPending, stored.Status)
	assert.Equal(t, money.Must(30000, "ETB"), stored.Amount)
	assert.Equal(t, []string{"payment.initiated"}, eventNames(f.outbox))
}

func TestInitiatePaymentErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown booking", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.initiator(nil).Handle(ctx, payments.InitiatePaymentCommand{BookingID: "missing", Payer: payer})
		assert.ErrorIs(t, err, payments.ErrBookingNotFound)
		assert.Zero(t, f.gateway.Calls("initialize"))
	})

	t.Run("someone else's booking", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.initiator(nil).Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: policies.PayerInfo{ID: "u2"}})
		assert.ErrorIs(t, err, payments.ErrBookingNotFound)
	})

	t.Run("gateway rejects", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.FailInitialize(&policies.GatewayError{Kind: policies.GatewayRemoteRejected, Message: "invalid email"})
		_, err := f.initiator(nil).Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
		assert.ErrorIs(t, err, payments.ErrInitiationFailed)
		assert.ErrorIs(t, err, policies.ErrRemoteRejected)
		_, lookupErr := f.payments.ByReference(ctx, "booking_b1_u1")
		assert.ErrorIs(t, lookupErr, domainpayments.ErrNotFound)
		assert.Empty(t, f.outbox.Records())
	})

	t.Run("gateway unreachable", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.FailInitialize(sandbox.ErrUnreachable)
		_, err := f.initiator(nil).Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
		assert.ErrorIs(t, err, payments.ErrInitiationFailed)
		live, lookupErr := f.payments.LiveByBooking(ctx, "b1")
		assert.Nil(t, live)
		assert.ErrorIs(t, lookupErr, domainpayments.ErrNotFound)
	})

	t.Run("cancelled booking", func(t *testing.T) {
		f := newFixture(t)
		b, err := f.bookings.ByID(ctx, "b1")
		require.NoError(t, err)
		b.Status = domainbooking.StatusCancelled
		require.NoError(t, f.bookings.Save(ctx, b))
		_, err = f.initiator(nil).Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
		assert.ErrorIs(t, err, payments.ErrInitiationFailed)
	})

	t.Run("missing payer", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.initiator(nil).Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1"})
		assert.ErrorIs(t, err, payments.ErrPayerRequired)
	})
}

func TestInitiatePaymentRejectsSecondLivePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.initiator(nil)

	_, err := h.Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
	require.NoError(t, err)
	_, err = h.Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
	assert.ErrorIs(t, err, payments.ErrPaymentAlreadyInitiated)

	_, err = f.verifier().Handle(ctx, payments.VerifyPaymentCommand{Reference: "booking_b1_u1"})
	require.NoError(t, err)
	_, err = h.Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
	assert.ErrorIs(t, err, payments.ErrPaymentAlreadyInitiated, "completed payments stay live")
}

func TestInitiatePaymentAfterFailureUsesFreshReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.initiator(nil)

	_, err := h.Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
	require.NoError(t, err)
	f.gateway.SetVerdict("booking_b1_u1", domainpayments.RemoteFailed)
	verified, err := f.verifier().Handle(ctx, payments.VerifyPaymentCommand{Reference: "booking_b1_u1"})
	require.NoError(t, err)
	require.Equal(t, "failed", verified.Status)

	res, err := h.Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
	require.NoError(t, err)
	assert.Equal(t, "booking_b1_u1_2", res.Reference)

	all, err := f.payments.ListByBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestInitiatePaymentConcurrentRequestsLeaveOneLivePayment(t *testing.T) {
	for _, tc := range []struct {
		name   string
		locker policies.Locker
	}{
		{name: "with lock", locker: memory.NewKeyedLocker()},
		{name: "repository constraint only"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			h := f.initiator(tc.locker)

			const callers = 16
			var wg sync.WaitGroup
			var succeeded, rejected atomic.Int32
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := h.Handle(context.Background(), payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
					switch {
					case err == nil:
						succeeded.Add(1)
					case errors.Is(err, payments.ErrPaymentAlreadyInitiated):
						rejected.Add(1)
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			assert.EqualValues(t, 1, succeeded.Load())
			assert.EqualValues(t, callers-1, rejected.Load())
			all, err := f.payments.ListByBooking(context.Background(), "b1")
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})
	}
}

// racingGateway records a rival attempt for the same booking while the
// checkout is being created, the window a lock-free initiation leaves open.
type racingGateway struct {
	*sandbox.Gateway
	repo   *memory.PaymentRepository
	reject error
}

func (g *racingGateway) InitializeTransaction(ctx context.Context, req policies.InitializeRequest) (policies.InitializeResult, error) {
	rival, err := domainpayments.NewPayment(domainpayments.CreateParams{
		ID: "rival", BookingID: "b1", PayerID: "u1", Reference: req.Reference,
		Amount: req.Amount, Attempt: 1, Now: now,
	})
	if err != nil {
		return policies.InitializeResult{}, err
	}
	if err := g.repo.Create(ctx, rival); err != nil {
		return policies.InitializeResult{}, err
	}
	if g.reject != nil {
		return policies.InitializeResult{}, g.reject
	}
	return g.Gateway.InitializeTransaction(ctx, req)
}

// referenceFirstRepository reports the tx_ref index before the live-payment
// index, as a store with several unique indexes may.
type referenceFirstRepository struct {
	*memory.PaymentRepository
}

func (r referenceFirstRepository) Create(ctx context.Context, p *domainpayments.Payment) error {
	if _, err := r.ByReference(ctx, p.Reference); err == nil {
		return domainpayments.ErrDuplicateReference
	}
	return r.PaymentRepository.Create(ctx, p)
}

func TestInitiatePaymentLosingRaceReportsAlreadyInitiated(t *testing.T) {
	ctx := context.Background()
	duplicate := &policies.GatewayError{Kind: policies.GatewayRemoteRejected, Op: "initialize", Message: "transaction reference has been used before"}

	for _, tc := range []struct {
		name     string
		reject   error
		refFirst bool
	}{
		{name: "live payment constraint"},
		{name: "reference constraint reported first", refFirst: true},
		{name: "gateway rejects reused reference", reject: duplicate},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.refFirst {
				f.factory.PaymentsRepo = referenceFirstRepository{f.payments}
			}
			h := f.initiator(nil)
			h.Gateway = &racingGateway{Gateway: f.gateway, repo: f.payments, reject: tc.reject}

			_, err := h.Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
			assert.ErrorIs(t, err, payments.ErrPaymentAlreadyInitiated)
			assert.NotErrorIs(t, err, payments.ErrInitiationFailed)

			live, err := f.payments.LiveByBooking(ctx, "b1")
			require.NoError(t, err)
			assert.Equal(t, domainpayments.PaymentID("rival"), live.ID)
		})
	}

	t.Run("rejection without a rival stays an initiation failure", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.FailInitialize(duplicate)
		_, err := f.initiator(nil).Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
		assert.ErrorIs(t, err, payments.ErrInitiationFailed)
	})
}

func TestVerifyPaymentOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		remote  domainpayments.RemoteStatus
		status  string
		message string
		event   string
	}{
		{name: "success completes", remote: domainpayments.RemoteSuccess, status: "completed", message: "Payment successful!", event: "payment.completed"},
		{name: "failed fails", remote: domainpayments.RemoteFailed, status: "failed", message: "Payment failed", event: "payment.failed"},
		{name: "pending fails", remote: domainpayments.RemotePending, status: "failed", message: "Payment failed", event: "payment.failed"},
		{name: "unknown verdict fails", remote: "reversed", status: "failed", message: "Payment failed", event: "payment.failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			_, err := f.initiator(nil).Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
			require.NoError(t, err)
			f.gateway.SetVerdict("booking_b1_u1", tt.remote)

			res, err := f.verifier().Handle(ctx, payments.VerifyPaymentCommand{Reference: "booking_b1_u1", Source: payments.SourceCallback})
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.message, res.Message)
			assert.True(t, res.Changed)

			stored, err := f.payments.ByReference(ctx, "booking_b1_u1")
			require.NoError(t, err)
			assert.Equal(t, domainpayments.Status(tt.status), stored.Status)
			assert.Equal(t, tt.remote, stored.RemoteStatus)
			assert.Equal(t, []string{"payment.initiated", tt.event}, eventNames(f.outbox))
			assert.Equal(t, 1, f.receipts.count())
		})
	}
}

func TestVerifyPaymentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.initiator(nil).Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
	require.NoError(t, err)
	v := f.verifier()

	first, err := v.Handle(ctx, payments.VerifyPaymentCommand{Reference: "booking_b1_u1"})
	require.NoError(t, err)
	require.True(t, first.Changed)

	second, err := v.Handle(ctx, payments.VerifyPaymentCommand{Reference: "booking_b1_u1", Source: payments.SourceWebhook})
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, "completed", second.Status)
	assert.Equal(t, []string{"payment.initiated", "payment.completed"}, eventNames(f.outbox))

	stored, err := f.payments.ByReference(ctx, "booking_b1_u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, stored.Version, "a repeated verdict writes nothing")
	assert.Equal(t, 2, f.gateway.Calls("verify"))
}

func TestVerifyPaymentAppliesLaterGatewayVerdict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.initiator(nil)
	_, err := h.Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
	require.NoError(t, err)
	v := f.verifier()

	f.gateway.SetVerdict("booking_b1_u1", domainpayments.RemotePending)
	early, err := v.Handle(ctx, payments.VerifyPaymentCommand{Reference: "booking_b1_u1", Source: payments.SourceCallback})
	require.NoError(t, err)
	require.Equal(t, "failed", early.Status)

	// The guest finishes checkout and the gateway now reports the charge.
	f.gateway.SetVerdict("booking_b1_u1", domainpayments.RemoteSuccess)
	late, err := v.Handle(ctx, payments.VerifyPaymentCommand{Reference: "booking_b1_u1", Source: payments.SourceWebhook})
	require.NoError(t, err)
	assert.Equal(t, "completed", late.Status)
	assert.Equal(t, "Payment successful!", late.Message)
	assert.True(t, late.Changed)

	stored, err := f.payments.ByReference(ctx, "booking_b1_u1")
	require.NoError(t, err)
	assert.Equal(t, domainpayments.StatusCompleted, stored.Status)
	assert.Equal(t, domainpayments.RemoteSuccess, stored.RemoteStatus)
	assert.Equal(t, []string{"payment.initiated", "payment.failed", "payment.completed"}, eventNames(f.outbox))

	_, err = h.Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
	assert.ErrorIs(t, err, payments.ErrPaymentAlreadyInitiated, "a settled booking takes no further attempts")
	all, err := f.payments.ListByBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestVerifyPaymentRevivalConflictsWithNewerAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.initiator(nil)
	_, err := h.Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
	require.NoError(t, err)
	v := f.verifier()

	f.gateway.SetVerdict("booking_b1_u1", domainpayments.RemoteFailed)
	_, err = v.Handle(ctx, payments.VerifyPaymentCommand{Reference: "booking_b1_u1"})
	require.NoError(t, err)
	retry, err := h.Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
	require.NoError(t, err)
	require.Equal(t, "booking_b1_u1_2", retry.Reference)

	f.gateway.SetVerdict("booking_b1_u1", domainpayments.RemoteSuccess)
	_, err = v.Handle(ctx, payments.VerifyPaymentCommand{Reference: "booking_b1_u1", Source: payments.SourceWebhook})
	assert.ErrorIs(t, err, payments.ErrPaymentConflict)

	stored, err := f.payments.ByReference(ctx, "booking_b1_u1")
	require.NoError(t, err)
	assert.Equal(t, domainpayments.StatusFailed, stored.Status)
	live, err := f.payments.LiveByBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, domainpayments.Reference("booking_b1_u1_2"), live.Reference)
}

func TestVerifyPaymentConcurrentCallsConverge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.initiator(nil).Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
	require.NoError(t, err)

	// Without a lock only the repository's version check keeps writers apart.
	v := f.verifier()
	v.Locker = nil

	var wg sync.WaitGroup
	var changed atomic.Int32
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := v.Handle(ctx, payments.VerifyPaymentCommand{Reference: "booking_b1_u1"})
			if assert.NoError(t, err) {
				assert.Equal(t, "completed", res.Status)
				if res.Changed {
					changed.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, changed.Load())
	assert.Equal(t, []string{"payment.initiated", "payment.completed"}, eventNames(f.outbox))
}

func TestVerifyPaymentGatewayFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown reference never reaches the gateway", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.verifier().Handle(ctx, payments.VerifyPaymentCommand{Reference: "booking_x_y"})
		assert.ErrorIs(t, err, payments.ErrPaymentNotFound)
		assert.Zero(t, f.gateway.Calls("verify"))
	})

	t.Run("network failure leaves pending payment untouched", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.initiator(nil).Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
		require.NoError(t, err)
		f.gateway.FailVerify("booking_b1_u1", sandbox.ErrUnreachable)

		_, err = f.verifier().Handle(ctx, payments.VerifyPaymentCommand{Reference: "booking_b1_u1"})
		assert.ErrorIs(t, err, payments.ErrGatewayUnavailable)
		stored, err := f.payments.ByReference(ctx, "booking_b1_u1")
		require.NoError(t, err)
		assert.Equal(t, domainpayments.StatusPending, stored.Status)
		assert.EqualValues(t, 1, stored.Version)
		assert.Zero(t, f.receipts.count())
	})

	t.Run("network failure on terminal payment returns stored status", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.initiator(nil).Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
		require.NoError(t, err)
		_, err = f.verifier().Handle(ctx, payments.VerifyPaymentCommand{Reference: "booking_b1_u1"})
		require.NoError(t, err)
		f.gateway.FailVerify("booking_b1_u1", sandbox.ErrUnreachable)

		res, err := f.verifier().Handle(ctx, payments.VerifyPaymentCommand{Reference: "booking_b1_u1"})
		require.NoError(t, err)
		assert.Equal(t, "completed", res.Status)
		assert.False(t, res.Changed)
	})

	t.Run("malformed response keeps terminal payment", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.initiator(nil).Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
		require.NoError(t, err)
		_, err = f.verifier().Handle(ctx, payments.VerifyPaymentCommand{Reference: "booking_b1_u1"})
		require.NoError(t, err)
		f.gateway.FailVerify("booking_b1_u1", &policies.GatewayError{Kind: policies.GatewayMalformedResponse, Message: "not json"})

		res, err := f.verifier().Handle(ctx, payments.VerifyPaymentCommand{Reference: "booking_b1_u1"})
		require.NoError(t, err)
		assert.Equal(t, "completed", res.Status)
		assert.False(t, res.Changed)
	})

	t.Run("malformed response fails the payment", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.initiator(nil).Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
		require.NoError(t, err)
		f.gateway.FailVerify("booking_b1_u1", &policies.GatewayError{Kind: policies.GatewayMalformedResponse, Message: "not json"})

		res, err := f.verifier().Handle(ctx, payments.VerifyPaymentCommand{Reference: "booking_b1_u1"})
		require.NoError(t, err)
		assert.Equal(t, "failed", res.Status)
	})

	t.Run("empty reference", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.verifier().Handle(ctx, payments.VerifyPaymentCommand{Reference: "  "})
		assert.ErrorIs(t, err, payments.ErrReferenceRequired)
	})
}

func TestReconcilePendingSweepsOldPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.initiator(nil).Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
	require.NoError(t, err)

	h := &payments.ReconcilePendingHandler{
		UoWFactory: f.factory,
		Verifier:   f.verifier(),
		Now:        func() time.Time { return now.Add(time.Hour) },
	}

	res, err := h.Handle(ctx, payments.ReconcilePendingCommand{MinAge: 2 * time.Hour})
	require.NoError(t, err)
	assert.Zero(t, res.Checked, "payment is younger than the minimum age")

	f.gateway.FailVerify("booking_b1_u1", sandbox.ErrUnreachable)
	res, err = h.Handle(ctx, payments.ReconcilePendingCommand{MinAge: 30 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deferred)

	res, err = h.Handle(ctx, payments.ReconcilePendingCommand{MinAge: 30 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, &payments.ReconcilePendingResult{Checked: 1, Completed: 1}, res)

	res, err = h.Handle(ctx, payments.ReconcilePendingCommand{MinAge: 30 * time.Minute})
	require.NoError(t, err)
	assert.Zero(t, res.Checked)
}

func TestPaymentQueriesAreOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.initiator(nil).Handle(ctx, payments.InitiatePaymentCommand{BookingID: "b1", Payer: payer})
	require.NoError(t, err)

	get := &payments.GetPaymentHandler{UoWFactory: f.factory}
	got, err := get.Handle(ctx, payments.GetPaymentQuery{Reference: "booking_b1_u1", RequesterID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Status)

	_, err = get.Handle(ctx, payments.GetPaymentQuery{Reference: "booking_b1_u1", RequesterID: "u2"})
	assert.ErrorIs(t, err, payments.ErrPaymentNotFound)

	list := &payments.ListBookingPaymentsHandler{UoWFactory: f.factory}
	coll, err := list.Handle(ctx, payments.ListBookingPaymentsQuery{BookingID: "b1", RequesterID: "u1"})
	require.NoError(t, err)
	assert.Len(t, coll.Items, 1)

	_, err = list.Handle(ctx, payments.ListBookingPaymentsQuery{BookingID: "b1", RequesterID: "h1"})
	assert.ErrorIs(t, err, payments.ErrBookingNotFound)
}
