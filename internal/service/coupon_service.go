package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// CouponServiceImpl implements ports.CouponService. Only shipping totals are discounted here.
type CouponServiceImpl struct {
	couponRepo   ports.CouponRepository
	shipmentRepo ports.ShipmentRepository
	transactor   ports.DBTransactor
	welcomeCode  string
	log          zerolog.Logger
	now          func() time.Time
}

// NewCouponService creates a new CouponServiceImpl.
func NewCouponService(
	couponRepo ports.CouponRepository,
	shipmentRepo ports.ShipmentRepository,
	transactor ports.DBTransactor,
	welcomeCode string,
	log zerolog.Logger,
) *CouponServiceImpl {
	return &CouponServiceImpl{
		couponRepo:   couponRepo,
		shipmentRepo: shipmentRepo,
		transactor:   transactor,
		welcomeCode:  welcomeCode,
		log:          log,
		now:          time.Now,
	}
}

// ApplyCoupon discounts the shipment total with the binding's coupon and consumes the binding.
func (s *CouponServiceImpl) ApplyCoupon(ctx context.Context, shipmentID, bindingID uuid.UUID) (*ports.CouponApplication, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	shipment, binding, err := s.lockPair(ctx, dbTx, shipmentID, bindingID)
	if err != nil {
		return nil, err
	}
	coupon := binding.Coupon
	now := s.now().UTC()

	switch {
	case binding.Used:
		return nil, apperror.ErrCouponAlreadyUsed()
	case !coupon.IsRedeemableAt(now):
		return nil, apperror.ErrCouponNotValid()
	case !coupon.AppliesTo(domain.CouponTypeShipping):
		return nil, apperror.ErrCouponTypeMismatch()
	case shipment.HasCoupon():
		return nil, apperror.ErrCouponAlreadyApplied()
	case !coupon.MeetsMinimum(shipment.Total):
		return nil, apperror.ErrCouponMinimumNotMet()
	}

	discount, ok := coupon.Discount(shipment.Total)
	if !ok {
		return nil, apperror.ErrCouponHasNoDiscount()
	}

	originalTotal := shipment.Total
	shipment.Total = domain.DiscountedTotal(originalTotal, discount)
	shipment.AppliedCouponBindingID = &binding.ID
	shipment.UpdatedAt = now
	binding.MarkUsed(shipment.ID, now)

	if err := s.shipmentRepo.UpdateCoupon(ctx, dbTx, shipment); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update shipment: %w", err))
	}
	if err := s.couponRepo.UpdateBinding(ctx, dbTx, binding); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update binding: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("shipment_id", shipment.ID.String()).
		Str("binding_id", binding.ID.String()).
		Str("code", coupon.Code).
		Int64("original_total", originalTotal).
		Int64("new_total", shipment.Total).
		Msg("coupon applied")

	return &ports.CouponApplication{
		Shipment:      shipment,
		Binding:       binding,
		OriginalTotal: originalTotal,
		Discount:      originalTotal - shipment.Total,
	}, nil
}

// RemoveCoupon undoes ApplyCoupon, restoring the total the caller held before the discount.
func (s *CouponServiceImpl) RemoveCoupon(ctx context.Context, shipmentID, bindingID uuid.UUID, originalTotal int64) (*domain.Shipment, error) {
	if originalTotal < 0 {
		return nil, apperror.ErrInvalidRequest("original total must not be negative")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	shipment, binding, err := s.lockPair(ctx, dbTx, shipmentID, bindingID)
	if err != nil {
		return nil, err
	}
	if shipment.AppliedCouponBindingID == nil || *shipment.AppliedCouponBindingID != binding.ID {
		return nil, apperror.ErrCouponNotApplied()
	}

	shipment.Total = originalTotal
	shipment.AppliedCouponBindingID = nil
	shipment.UpdatedAt = s.now().UTC()
	binding.Release()

	if err := s.shipmentRepo.UpdateCoupon(ctx, dbTx, shipment); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update shipment: %w", err))
	}
	if err := s.couponRepo.UpdateBinding(ctx, dbTx, binding); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update binding: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("shipment_id", shipment.ID.String()).
		Str("binding_id", binding.ID.String()).
		Int64("restored_total", originalTotal).
		Msg("coupon removed")

	return shipment, nil
}

// lockPair locks the shipment first, then the binding, and checks ownership.
func (s *CouponServiceImpl) lockPair(ctx context.Context, tx pgx.Tx, shipmentID, bindingID uuid.UUID) (*domain.Shipment, *domain.CouponBinding, error) {
	shipment, err := s.shipmentRepo.GetForUpdate(ctx, tx, shipmentID)
	if err != nil {
		return nil, nil, apperror.ErrDatabaseError(fmt.Errorf("lock shipment: %w", err))
	}
	if shipment == nil {
		return nil, nil, apperror.ErrNotFound("shipment")
	}

	binding, err := s.couponRepo.GetBindingForUpdate(ctx, tx, bindingID)
	if err != nil {
		return nil, nil, apperror.ErrDatabaseError(fmt.Errorf("lock coupon binding: %w", err))
	}
	if binding == nil || binding.Coupon == nil {
		return nil, nil, apperror.ErrNotFound("coupon binding")
	}
	if binding.UserID != shipment.UserID {
		return nil, nil, apperror.ErrCouponNotOwned()
	}
	return shipment, binding, nil
}

// CreateCoupon validates and stores a new coupon definition.
func (s *CouponServiceImpl) CreateCoupon(ctx context.Context, c *domain.Coupon) (*domain.Coupon, error) {
	c.Code = strings.TrimSpace(c.Code)
	switch {
	case c.Code == "":
		return nil, apperror.ErrInvalidRequest("coupon code is required")
	case !c.Type.IsValid():
		return nil, apperror.ErrInvalidRequest(fmt.Sprintf("unknown coupon type %q", c.Type))
	case !c.ValidTo.After(c.ValidFrom):
		return nil, apperror.ErrInvalidRequest("valid_to must be after valid_from")
	case c.DiscountAmount == nil && !c.DiscountPercentage.Valid:
		return nil, apperror.ErrInvalidRequest("either discount_amount or discount_percentage is required")
	case c.DiscountAmount != nil && *c.DiscountAmount <= 0:
		return nil, apperror.ErrInvalidRequest("discount_amount must be positive")
	case c.DiscountPercentage.Valid && (!c.DiscountPercentage.Decimal.IsPositive() || c.DiscountPercentage.Decimal.GreaterThan(hundred)):
		return nil, apperror.ErrInvalidRequest("discount_percentage must be in (0, 100]")
	case c.MaxDiscountValue != nil && *c.MaxDiscountValue <= 0:
		return nil, apperror.ErrInvalidRequest("max_discount_value must be positive")
	case c.MinPurchaseValue != nil && *c.MinPurchaseValue < 0:
		return nil, apperror.ErrInvalidRequest("min_purchase_value must not be negative")
	}

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = s.now().UTC()

	if err := s.couponRepo.Create(ctx, c); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrCouponCodeExists()
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create coupon: %w", err))
	}

	s.log.Info().Str("coupon_id", c.ID.String()).Str("code", c.Code).Msg("coupon created")
	return c, nil
}

// GrantCoupon gives the user an unused binding for the coupon with the given code.
func (s *CouponServiceImpl) GrantCoupon(ctx context.Context, userID uuid.UUID, code string) (*domain.CouponBinding, error) {
	coupon, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get coupon: %w", err))
	}
	if coupon == nil {
		return nil, apperror.ErrNotFound("coupon")
	}

	binding := &domain.CouponBinding{
		ID:        uuid.New(),
		UserID:    userID,
		CouponID:  coupon.ID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.couponRepo.CreateBinding(ctx, binding); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create binding: %w", err))
	}
	binding.Coupon = coupon

	s.log.Info().
		Str("user_id", userID.String()).
		Str("binding_id", binding.ID.String()).
		Str("code", code).
		Msg("coupon granted")
	return binding, nil
}

// GrantWelcomeCoupon grants the configured welcome coupon, called once at registration.
func (s *CouponServiceImpl) GrantWelcomeCoupon(ctx context.Context, userID uuid.UUID) (*domain.CouponBinding, error) {
	if s.welcomeCode == "" {
		return nil, apperror.ErrNotFound("welcome coupon")
	}
	return s.GrantCoupon(ctx, userID, s.welcomeCode)
}

func (s *CouponServiceImpl) ListUserCoupons(ctx context.Context, userID uuid.UUID) ([]domain.CouponBinding, error) {
	bindings, err := s.couponRepo.ListBindingsByUser(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list coupons: %w", err))
	}
	if bindings == nil {
		bindings = []domain.CouponBinding{}
	}
	return bindings, nil
}
