package service

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/clock"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/idgen"
	"github.com/medflow/pharmacy-backend/pkg/lock"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// Config holds the engine tunables
type Config struct {
	ExpiryToleranceDays int
	RecentBatchDays     int
	// LockTimeout bounds the wait for the receive lock; zero waits forever.
	LockTimeout time.Duration
}

// DefaultConfig returns the standard merge tolerance and recency window.
func DefaultConfig() Config {
	return Config{
		ExpiryToleranceDays: 10,
		RecentBatchDays:     30,
		LockTimeout:         5 * time.Second,
	}
}

// EventPublisher receives notifications after a unit of work commits.
type EventPublisher interface {
	PublishStockMovement(ctx context.Context, entry domain.LedgerEntry)
	PublishStatusChanged(ctx context.Context, change domain.StatusChange)
}

// Engine is the inventory consistency engine. Every exported operation runs
// as one unit of work: stock totals, statuses, ledger entries and order
// state either all commit or all roll back.
type Engine struct {
	store   Store
	clock   clock.Clock
	ids     idgen.Generator
	locker  lock.Locker
	events  EventPublisher
	logger  *logger.Logger
	cfg     Config
	ledger  *TransactionLedger
	batches *BatchManager
	stocks  *StockAggregator
	orders  *OrderStatusMachine
}

// NewEngine creates an engine. locker and events may be nil; row locks in
// the store still serialize receipts without a locker.
func NewEngine(
	store Store,
	clk clock.Clock,
	ids idgen.Generator,
	locker lock.Locker,
	events EventPublisher,
	cfg Config,
	log *logger.Logger,
) *Engine {
	return &Engine{
		store:   store,
		clock:   clk,
		ids:     ids,
		locker:  locker,
		events:  events,
		logger:  log.WithComponent("inventory-engine"),
		cfg:     cfg,
		ledger:  NewTransactionLedger(ids),
		batches: NewBatchManager(domain.MergePolicy{ToleranceDays: cfg.ExpiryToleranceDays, RecentDays: cfg.RecentBatchDays}, ids),
		stocks:  NewStockAggregator(),
		orders:  NewOrderStatusMachine(ids),
	}
}

// UnitOfWork carries one transaction and what it changed. Changes are
// reported only once the transaction commits.
type UnitOfWork struct {
	Tx          Tx
	Now         time.Time
	Today       time.Time
	PerformedBy string

	transitions []domain.StatusChange
	movements   []domain.LedgerEntry
}

func (w *UnitOfWork) transition(entity, id, productID, from, to string) {
	if from == to {
		return
	}
	w.transitions = append(w.transitions, domain.StatusChange{
		Entity:    entity,
		EntityID:  id,
		ProductID: productID,
		From:      from,
		To:        to,
		At:        w.Now,
	})
}

func (w *UnitOfWork) moved(entry domain.LedgerEntry) {
	w.movements = append(w.movements, entry)
}

// run executes fn in a unit of work and reports its changes after commit.
func (e *Engine) run(ctx context.Context, performedBy string, fn func(ctx context.Context, w *UnitOfWork) error) error {
	now := e.clock.Now()
	w := &UnitOfWork{
		Now:         now,
		Today:       clock.DateOf(now),
		PerformedBy: performedBy,
	}

	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		w.Tx = tx
		return fn(ctx, w)
	})
	if err != nil {
		return err
	}

	e.report(ctx, w)
	return nil
}

func (e *Engine) report(ctx context.Context, w *UnitOfWork) {
	for _, c := range w.transitions {
		e.logger.Transition(c.Entity, c.EntityID, c.From, c.To)
		if e.events != nil {
			e.events.PublishStatusChanged(ctx, c)
		}
	}
	if e.events == nil {
		return
	}
	for _, m := range w.movements {
		e.events.PublishStockMovement(ctx, m)
	}
}

// acquire takes the keyed lock when a locker is configured.
func (e *Engine) acquire(ctx context.Context, key string) (lock.Release, error) {
	if e.locker == nil {
		return func() {}, nil
	}
	return e.locker.Acquire(ctx, key, e.cfg.LockTimeout)
}

func requirePerformer(performedBy string) error {
	if performedBy == "" {
		return errors.Validation(map[string]string{"performed_by": "this field is required"})
	}
	return nil
}

func requirePositive(field string, n int) error {
	if n <= 0 {
		return errors.Validation(map[string]string{field: "must be greater than 0"})
	}
	return nil
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, errors.ErrNotFound)
}
