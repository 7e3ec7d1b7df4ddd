package memory

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ShipmentRepo implements ports.ShipmentRepository.
type ShipmentRepo struct {
	store *Store
}

// NewShipmentRepo creates a new ShipmentRepo.
func NewShipmentRepo(store *Store) *ShipmentRepo {
	return &ShipmentRepo{store: store}
}

func (r *ShipmentRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Shipment, error) {
	if _, err := r.store.unitOf(tx); err != nil {
		return nil, fmt.Errorf("get shipment for update: %w", err)
	}
	return r.store.Shipment(id), nil
}

func (r *ShipmentRepo) UpdateCoupon(ctx context.Context, tx pgx.Tx, s *domain.Shipment) error {
	if s.Total < 0 {
		return fmt.Errorf("update shipment coupon: negative total %d", s.Total)
	}
	unit, err := r.store.unitOf(tx)
	if err != nil {
		return fmt.Errorf("update shipment coupon: %w", err)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.shipments[s.ID]
	if !ok {
		return fmt.Errorf("shipment not found: %s", s.ID)
	}
	prev := *stored
	stored.Total, stored.AppliedCouponBindingID, stored.UpdatedAt = s.Total, s.AppliedCouponBindingID, s.UpdatedAt
	unit.undo = append(unit.undo, func() { *stored = prev })
	return nil
}
