package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staypay/internal/app/commands"
	"staypay/internal/app/middleware"
	"staypay/internal/app/queries"
	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
	domainlistings "staypay/internal/domain/listings"
	domainpayments "staypay/internal/domain/payments"
	domainreviews "staypay/internal/domain/reviews"
)

type chargeResult struct {
	Reference string `json:"reference"`
}

type chargeCommand struct {
	IdemKey    string
	SelfManage bool
}

func (c chargeCommand) Key() string              { return "test.charge" }
func (c chargeCommand) IdempotencyKey() string   { return c.IdemKey }
func (c chargeCommand) ResultPrototype() any     { return &chargeResult{} }
func (c chargeCommand) ManagesTransaction() bool { return c.SelfManage }

type lookupQuery struct{}

func (lookupQuery) Key() string { return "test.lookup" }

var errDeclined = errors.New("test: charge declined")

type temporaryError struct{}

func (temporaryError) Error() string   { return "test: upstream timeout" }
func (temporaryError) Temporary() bool { return true }

type memoryStore struct {
	mu    sync.Mutex
	items map[string]middleware.IdempotencyRecord
}

func (s *memoryStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[key]
	return rec, ok, nil
}

func (s *memoryStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items == nil {
		s.items = map[string]middleware.IdempotencyRecord{}
	}
	s.items[rec.Key] = rec
	return nil
}

type fakeUnit struct {
	commits, rollbacks int
}

func (u *fakeUnit) Listings() domainlistings.ListingRepository { return nil }
func (u *fakeUnit) Booking() domainbooking.Repository          { return nil }
func (u *fakeUnit) Payments() domainpayments.Repository        { return nil }
func (u *fakeUnit) Reviews() domainreviews.Repository          { return nil }
func (u *fakeUnit) Commit(context.Context) error               { u.commits++; return nil }
func (u *fakeUnit) Rollback(context.Context) error             { u.rollbacks++; return nil }

type fakeFactory struct {
	units []*fakeUnit
}

func (f *fakeFactory) Begin(context.Context, uow.TxOptions) (uow.UnitOfWork, error) {
	u := &fakeUnit{}
	f.units = append(f.units, u)
	return u, nil
}

type countingHandler struct {
	calls int
	err   error
}

func (h *countingHandler) Handle(ctx context.Context, cmd chargeCommand) (*chargeResult, error) {
	h.calls++
	if h.err != nil {
		return nil, h.err
	}
	if _, ok := uow.FromContext(ctx); !ok && !cmd.SelfManage {
		return nil, uow.ErrUnitOfWorkMissing
	}
	return &chargeResult{Reference: fmt.Sprintf("ref-%d", h.calls)}, nil
}

func newBus(h *countingHandler, mws ...middleware.CommandMiddleware) commands.Bus {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, chargeCommand{}.Key(), h)
	return middleware.ChainCommands(bus, mws...)
}

func TestChainCommandsRunsOutermostFirst(t *testing.T) {
	var order []string
	tag := func(name string) middleware.CommandMiddleware {
		return func(next commands.Bus) commands.Bus {
			return commandBusFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
				order = append(order, name)
				return next.Dispatch(ctx, cmd)
			})
		}
	}
	bus := newBus(&countingHandler{}, tag("outer"), tag("inner"), middleware.Transaction(&fakeFactory{}, nil))
	_, err := bus.Dispatch(context.Background(), chargeCommand{})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

type commandBusFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f commandBusFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	return f(ctx, cmd)
}

type rejectAll struct{ err error }

func (r rejectAll) Validate(context.Context, any) error  { return r.err }
func (r rejectAll) Authorize(context.Context, any) error { return r.err }

func TestGuardsStopDispatch(t *testing.T) {
	h := &countingHandler{}
	denied := errors.New("test: denied")

	_, err := newBus(h, middleware.Validation(rejectAll{err: denied})).Dispatch(context.Background(), chargeCommand{SelfManage: true})
	assert.ErrorIs(t, err, denied)
	_, err = newBus(h, middleware.Authorization(rejectAll{err: denied})).Dispatch(context.Background(), chargeCommand{SelfManage: true})
	assert.ErrorIs(t, err, denied)
	assert.Zero(t, h.calls)

	_, err = newBus(h, middleware.Validation(rejectAll{})).Dispatch(context.Background(), chargeCommand{SelfManage: true})
	require.NoError(t, err)
	assert.Equal(t, 1, h.calls)

	qbus := queries.NewInMemoryBus()
	queries.RegisterHandler(qbus, lookupQuery{}.Key(), queries.HandlerFunc[lookupQuery, string](
		func(context.Context, lookupQuery) (string, error) { return "found", nil },
	))
	_, err = middleware.ChainQueries(qbus, middleware.QueryAuthorization(rejectAll{err: denied})).Ask(context.Background(), lookupQuery{})
	assert.ErrorIs(t, err, denied)
	out, err := queries.Ask[lookupQuery, string](context.Background(), middleware.ChainQueries(qbus, middleware.QueryValidation(rejectAll{})), lookupQuery{})
	require.NoError(t, err)
	assert.Equal(t, "found", out)
}

func TestIdempotencyReplaysFirstResult(t *testing.T) {
	h := &countingHandler{}
	bus := newBus(h, middleware.Idempotency(&memoryStore{}, nil))
	cmd := chargeCommand{IdemKey: "k1", SelfManage: true}

	first, err := commands.Dispatch[chargeCommand, *chargeResult](context.Background(), bus, cmd)
	require.NoError(t, err)
	second, err := commands.Dispatch[chargeCommand, *chargeResult](context.Background(), bus, cmd)
	require.NoError(t, err)

	assert.Equal(t, 1, h.calls)
	assert.Equal(t, first, second)

	_, err = commands.Dispatch[chargeCommand, *chargeResult](context.Background(), bus, chargeCommand{SelfManage: true})
	require.NoError(t, err)
	assert.Equal(t, 2, h.calls, "commands without a key are never replayed")
}

func TestIdempotencyReplaysKnownFailures(t *testing.T) {
	h := &countingHandler{err: fmt.Errorf("%w: card expired", errDeclined)}
	bus := newBus(h, middleware.Idempotency(&memoryStore{}, nil, errDeclined))
	cmd := chargeCommand{IdemKey: "k2", SelfManage: true}

	_, err := bus.Dispatch(context.Background(), cmd)
	require.ErrorIs(t, err, errDeclined)

	h.err = nil
	_, err = bus.Dispatch(context.Background(), cmd)
	var replayed *middleware.ReplayedError
	require.ErrorAs(t, err, &replayed)
	assert.ErrorIs(t, err, errDeclined)
	assert.Equal(t, "test: charge declined: card expired", err.Error())
	assert.Equal(t, 1, h.calls)
}

func TestIdempotencySkipsTemporaryFailures(t *testing.T) {
	h := &countingHandler{err: fmt.Errorf("charge: %w", temporaryError{})}
	bus := newBus(h, middleware.Idempotency(&memoryStore{}, nil))
	cmd := chargeCommand{IdemKey: "k3", SelfManage: true}

	_, err := bus.Dispatch(context.Background(), cmd)
	require.Error(t, err)

	h.err = nil
	res, err := commands.Dispatch[chargeCommand, *chargeResult](context.Background(), bus, cmd)
	require.NoError(t, err)
	assert.Equal(t, "ref-2", res.Reference)
}

func TestTransactionCommitsOnlyOnSuccess(t *testing.T) {
	factory := &fakeFactory{}
	h := &countingHandler{}
	bus := newBus(h, middleware.Transaction(factory, nil))

	_, err := bus.Dispatch(context.Background(), chargeCommand{})
	require.NoError(t, err)
	h.err = errDeclined
	_, err = bus.Dispatch(context.Background(), chargeCommand{})
	require.ErrorIs(t, err, errDeclined)
	_, err = bus.Dispatch(context.Background(), chargeCommand{SelfManage: true})
	require.ErrorIs(t, err, errDeclined)

	require.Len(t, factory.units, 2, "self-managed commands open no unit")
	assert.Equal(t, 1, factory.units[0].commits)
	assert.Equal(t, 0, factory.units[0].rollbacks)
	assert.Equal(t, 0, factory.units[1].commits)
	assert.Equal(t, 1, factory.units[1].rollbacks)
}
