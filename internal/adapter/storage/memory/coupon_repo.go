package memory

import (
	"context"
	"fmt"
	"sort"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CouponRepo implements ports.CouponRepository.
type CouponRepo struct {
	store *Store
}

// NewCouponRepo creates a new CouponRepo.
func NewCouponRepo(store *Store) *CouponRepo {
	return &CouponRepo{store: store}
}

func (r *CouponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.coupons {
		if existing.Code == c.Code {
			return fmt.Errorf("insert coupon: %w", ports.ErrDuplicate)
		}
	}
	cp := *c
	r.store.coupons[c.ID] = &cp
	return nil
}

func (r *CouponRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, c := range r.store.coupons {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *CouponRepo) CreateBinding(ctx context.Context, b *domain.CouponBinding) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.coupons[b.CouponID]; !ok {
		return fmt.Errorf("insert coupon binding: unknown coupon %s", b.CouponID)
	}
	cp := *b
	cp.Coupon = nil
	r.store.bindings[b.ID] = &cp
	return nil
}

func (r *CouponRepo) GetBindingForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.CouponBinding, error) {
	if _, err := r.store.unitOf(tx); err != nil {
		return nil, fmt.Errorf("get coupon binding for update: %w", err)
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	b, ok := r.store.bindings[id]
	if !ok {
		return nil, nil
	}
	return r.store.withCoupon(b), nil
}

func (r *CouponRepo) UpdateBinding(ctx context.Context, tx pgx.Tx, b *domain.CouponBinding) error {
	unit, err := r.store.unitOf(tx)
	if err != nil {
		return fmt.Errorf("update coupon binding: %w", err)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.bindings[b.ID]
	if !ok {
		return fmt.Errorf("coupon binding not found: %s", b.ID)
	}
	prev := *stored
	stored.Used, stored.UsedAt, stored.ShipmentID = b.Used, b.UsedAt, b.ShipmentID
	unit.undo = append(unit.undo, func() { *stored = prev })
	return nil
}

// ListBindingsByUser returns the user's bindings with their coupons, newest first.
func (r *CouponRepo) ListBindingsByUser(ctx context.Context, userID uuid.UUID) ([]domain.CouponBinding, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []domain.CouponBinding
	for _, b := range r.store.bindings {
		if b.UserID == userID {
			out = append(out, *r.store.withCoupon(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// withCoupon copies b and attaches a copy of its coupon; callers hold mu.
func (s *Store) withCoupon(b *domain.CouponBinding) *domain.CouponBinding {
	cp := *b
	if c, ok := s.coupons[b.CouponID]; ok {
		cc := *c
		cp.Coupon = &cc
	}
	return &cp
}
