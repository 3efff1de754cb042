package support

import (
	"context"
	"errors"

	"staypay/internal/app/uow"
)

var ErrUnitOfWorkRequired = errors.New("support: unit of work required")

func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	unit, ok := uow.FromContext(ctx)
	if ok {
		return unit, ctx, nil, nil
	}
	if factory == nil {
		return nil, ctx, nil, uow.ErrUnitOfWorkMissing
	}
	newUnit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	execCtx := uow.Inject(ctx, newUnit)
	cleanup := func() {
		_ = newUnit.Rollback(execCtx)
	}
	return newUnit, execCtx, cleanup, nil
}

// ManagedUnit is a unit of work taken from the context or started on demand.
// Commit and Close only act on units the handler started itself.
type ManagedUnit struct {
	Unit      uow.UnitOfWork
	Ctx       context.Context
	managed   bool
	committed bool
}

func BeginUnit(ctx context.Context, factory uow.UoWFactory) (*ManagedUnit, error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return &ManagedUnit{Unit: unit, Ctx: ctx}, nil
	}
	if factory == nil {
		return nil, ErrUnitOfWorkRequired
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &ManagedUnit{Unit: unit, Ctx: uow.Inject(ctx, unit), managed: true}, nil
}

func (m *ManagedUnit) Commit() error {
	if !m.managed || m.committed {
		return nil
	}
	if err := m.Unit.Commit(m.Ctx); err != nil {
		return err
	}
	m.committed = true
	return nil
}

func (m *ManagedUnit) Close() {
	if m.managed && !m.committed {
		_ = m.Unit.Rollback(m.Ctx)
	}
}
