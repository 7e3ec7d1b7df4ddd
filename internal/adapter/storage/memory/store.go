// Package memory is a process-local storage adapter implementing the same ports as
// the PostgreSQL adapter. It backs the "memory" storage driver and scenario tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store holds every table. Units of work are serialized by a single-slot semaphore,
// which stands in for row locks; writes made inside a unit of work are undone on rollback.
type Store struct {
	sem chan struct{}

	mu        sync.RWMutex
	users     map[uuid.UUID]domain.User
	wallets   map[uuid.UUID]*domain.Wallet
	txns      []domain.Transaction
	rateLogs  []domain.ExchangeRateLog
	coupons   map[uuid.UUID]*domain.Coupon
	bindings  map[uuid.UUID]*domain.CouponBinding
	shipments map[uuid.UUID]*domain.Shipment
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sem:       make(chan struct{}, 1),
		users:     make(map[uuid.UUID]domain.User),
		wallets:   make(map[uuid.UUID]*domain.Wallet),
		coupons:   make(map[uuid.UUID]*domain.Coupon),
		bindings:  make(map[uuid.UUID]*domain.CouponBinding),
		shipments: make(map[uuid.UUID]*domain.Shipment),
	}
}

// PutUser registers a user, standing in for the user service.
func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// PutShipment stores a shipment, standing in for the shipment service.
func (s *Store) PutShipment(sh domain.Shipment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shipments[sh.ID] = &sh
}

// Shipment returns a copy of the shipment, or nil.
func (s *Store) Shipment(id uuid.UUID) *domain.Shipment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shipments[id]
	if !ok {
		return nil
	}
	cp := *sh
	return &cp
}

// Transactor implements ports.DBTransactor over a Store.
type Transactor struct {
	store *Store
}

// NewTransactor creates a new Transactor.
func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

// Begin waits for the store to be free and opens a unit of work.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case t.store.sem <- struct{}{}:
		return &memTx{store: t.store}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("begin memory tx: %w", ctx.Err())
	}
}

// memTx satisfies pgx.Tx. Only Commit and Rollback are meaningful; the embedded
// interface is nil so any SQL call on it panics.
type memTx struct {
	pgx.Tx
	store *Store
	undo  []func()
	done  bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	<-t.store.sem
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true

	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()

	t.undo = nil
	<-t.store.sem
	return nil
}

var errForeignTx = errors.New("memory store: transaction was not opened by this store")

// unitOf returns the open unit of work behind tx.
func (s *Store) unitOf(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok || mt.store != s {
		return nil, errForeignTx
	}
	if mt.done {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

// HealthCheck implements ports.HealthChecker for the memory store.
type HealthCheck struct{}

// NewHealthCheck creates a memory store health checker.
func NewHealthCheck() *HealthCheck {
	return &HealthCheck{}
}

// Ping always succeeds.
func (h *HealthCheck) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "memory"
}
