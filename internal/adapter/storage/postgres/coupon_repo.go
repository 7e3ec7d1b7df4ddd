package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const couponColumnsSQL = `c.id, c.code, c.discount_amount, c.discount_percentage, c.max_discount_value,
		c.min_purchase_value, c.valid_from, c.valid_to, c.coupon_type, c.is_active, c.created_at`

const bindingColumnsSQL = `b.id, b.user_id, b.coupon_id, b.used, b.used_at, b.shipment_id, b.created_at`

// CouponRepo implements ports.CouponRepository.
type CouponRepo struct {
	pool Pool
}

// NewCouponRepo creates a new CouponRepo.
func NewCouponRepo(pool Pool) *CouponRepo {
	return &CouponRepo{pool: pool}
}

// Create inserts a coupon. A taken code is reported as ports.ErrDuplicate.
func (r *CouponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	query := `INSERT INTO coupons (id, code, discount_amount, discount_percentage, max_discount_value,
		min_purchase_value, valid_from, valid_to, coupon_type, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.Code, c.DiscountAmount, c.DiscountPercentage, c.MaxDiscountValue,
		c.MinPurchaseValue, c.ValidFrom, c.ValidTo, c.Type, c.IsActive, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert coupon: %w", ports.ErrDuplicate)
		}
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

// GetByCode fetches a coupon by its code.
func (r *CouponRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `SELECT ` + couponColumnsSQL + ` FROM coupons c WHERE c.code = $1`

	c := &domain.Coupon{}
	err := r.pool.QueryRow(ctx, query, code).Scan(couponDest(c)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon by code: %w", err)
	}
	return c, nil
}

// CreateBinding grants a coupon to a user.
func (r *CouponRepo) CreateBinding(ctx context.Context, b *domain.CouponBinding) error {
	query := `INSERT INTO coupon_bindings (id, user_id, coupon_id, used, used_at, shipment_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query, b.ID, b.UserID, b.CouponID, b.Used, b.UsedAt, b.ShipmentID, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert coupon binding: %w", err)
	}
	return nil
}

// GetBindingForUpdate locks the binding row (not the shared coupon) and loads its coupon.
func (r *CouponRepo) GetBindingForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.CouponBinding, error) {
	query := `SELECT ` + bindingColumnsSQL + `, ` + couponColumnsSQL + `
		FROM coupon_bindings b JOIN coupons c ON c.id = b.coupon_id
		WHERE b.id = $1 FOR UPDATE OF b`

	b := &domain.CouponBinding{Coupon: &domain.Coupon{}}
	err := tx.QueryRow(ctx, query, id).Scan(bindingDest(b)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon binding for update: %w", err)
	}
	return b, nil
}

// UpdateBinding persists the used flag, timestamp and shipment link.
func (r *CouponRepo) UpdateBinding(ctx context.Context, tx pgx.Tx, b *domain.CouponBinding) error {
	query := `UPDATE coupon_bindings SET used = $1, used_at = $2, shipment_id = $3 WHERE id = $4`

	tag, err := tx.Exec(ctx, query, b.Used, b.UsedAt, b.ShipmentID, b.ID)
	if err != nil {
		return fmt.Errorf("update coupon binding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("coupon binding not found: %s", b.ID)
	}
	return nil
}

// ListBindingsByUser returns the user's bindings with their coupons, newest first.
func (r *CouponRepo) ListBindingsByUser(ctx context.Context, userID uuid.UUID) ([]domain.CouponBinding, error) {
	query := `SELECT ` + bindingColumnsSQL + `, ` + couponColumnsSQL + `
		FROM coupon_bindings b JOIN coupons c ON c.id = b.coupon_id
		WHERE b.user_id = $1 ORDER BY b.created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list coupon bindings: %w", err)
	}
	defer rows.Close()

	var bindings []domain.CouponBinding
	for rows.Next() {
		b := domain.CouponBinding{Coupon: &domain.Coupon{}}
		if err := rows.Scan(bindingDest(&b)...); err != nil {
			return nil, fmt.Errorf("scan coupon binding: %w", err)
		}
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coupon bindings: %w", err)
	}
	return bindings, nil
}

func couponDest(c *domain.Coupon) []any {
	return []any{
		&c.ID, &c.Code, &c.DiscountAmount, &c.DiscountPercentage, &c.MaxDiscountValue,
		&c.MinPurchaseValue, &c.ValidFrom, &c.ValidTo, &c.Type, &c.IsActive, &c.CreatedAt,
	}
}

func bindingDest(b *domain.CouponBinding) []any {
	dest := []any{&b.ID, &b.UserID, &b.CouponID, &b.Used, &b.UsedAt, &b.ShipmentID, &b.CreatedAt}
	return append(dest, couponDest(b.Coupon)...)
}
