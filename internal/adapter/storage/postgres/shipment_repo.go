package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ShipmentRepo implements ports.ShipmentRepository over the ledger-owned shipment columns.
type ShipmentRepo struct {
	pool Pool
}

// NewShipmentRepo creates a new ShipmentRepo.
func NewShipmentRepo(pool Pool) *ShipmentRepo {
	return &ShipmentRepo{pool: pool}
}

// GetForUpdate locks the shipment row.
func (r *ShipmentRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Shipment, error) {
	query := `SELECT id, user_id, total, currency, applied_coupon_binding_id, updated_at
		FROM shipments WHERE id = $1 FOR UPDATE`

	s := &domain.Shipment{}
	err := tx.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.Total, &s.Currency, &s.AppliedCouponBindingID, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get shipment for update: %w", err)
	}
	return s, nil
}

// UpdateCoupon writes the total and applied binding.
func (r *ShipmentRepo) UpdateCoupon(ctx context.Context, tx pgx.Tx, s *domain.Shipment) error {
	query := `UPDATE shipments SET total = $1, applied_coupon_binding_id = $2, updated_at = $3 WHERE id = $4`

	tag, err := tx.Exec(ctx, query, s.Total, s.AppliedCouponBindingID, s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("update shipment coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("shipment not found: %s", s.ID)
	}
	return nil
}
