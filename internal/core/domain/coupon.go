package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CouponType restricts what a coupon may discount.
type CouponType string

const (
	CouponTypeShipping CouponType = "SHIPPING"
	CouponTypeProduct  CouponType = "PRODUCT"
)

// IsValid reports whether t is a known coupon type.
func (t CouponType) IsValid() bool {
	return t == CouponTypeShipping || t == CouponTypeProduct
}

// Coupon is a promotional discount definition. Money fields are minor units.
type Coupon struct {
	ID                 uuid.UUID           `json:"id"`
	Code               string              `json:"code"`
	DiscountAmount     *int64              `json:"discount_amount,omitempty"`
	DiscountPercentage decimal.NullDecimal `json:"discount_percentage"`
	MaxDiscountValue   *int64              `json:"max_discount_value,omitempty"`
	MinPurchaseValue   *int64              `json:"min_purchase_value,omitempty"`
	ValidFrom          time.Time           `json:"valid_from"`
	ValidTo            time.Time           `json:"valid_to"`
	Type               CouponType          `json:"type"`
	IsActive           bool                `json:"is_active"`
	CreatedAt          time.Time           `json:"created_at"`
}

// IsRedeemableAt reports whether the coupon is active and now is inside [ValidFrom, ValidTo].
func (c *Coupon) IsRedeemableAt(now time.Time) bool {
	return c.IsActive && !now.Before(c.ValidFrom) && !now.After(c.ValidTo)
}

// AppliesTo reports whether the coupon may discount a purchase of the given kind.
func (c *Coupon) AppliesTo(target CouponType) bool {
	return c.Type == target
}

// MeetsMinimum reports whether total satisfies the minimum purchase threshold, if any.
func (c *Coupon) MeetsMinimum(total int64) bool {
	return c.MinPurchaseValue == nil || total >= *c.MinPurchaseValue
}

var hundred = decimal.NewFromInt(100)

// Discount computes the discount for total. A fixed amount wins over a percentage;
// a percentage discount is rounded half-up to minor units and capped by MaxDiscountValue.
// The second return is false when the coupon carries no discount at all.
func (c *Coupon) Discount(total int64) (int64, bool) {
	if c.DiscountAmount != nil {
		return *c.DiscountAmount, true
	}
	if !c.DiscountPercentage.Valid {
		return 0, false
	}

	discount := decimal.NewFromInt(total).
		Mul(c.DiscountPercentage.Decimal).
		Div(hundred).
		Round(0).
		IntPart()
	if c.MaxDiscountValue != nil && discount > *c.MaxDiscountValue {
		discount = *c.MaxDiscountValue
	}
	return discount, true
}

// DiscountedTotal subtracts discount from total, flooring at zero.
func DiscountedTotal(total, discount int64) int64 {
	if discount >= total {
		return 0
	}
	return total - discount
}

// CouponBinding ties one coupon instance to one user and tracks whether it was consumed.
type CouponBinding struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	CouponID   uuid.UUID  `json:"coupon_id"`
	Used       bool       `json:"used"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	ShipmentID *uuid.UUID `json:"shipment_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	Coupon     *Coupon    `json:"coupon,omitempty"` // Populated on reads that join coupons
}

// MarkUsed consumes the binding for a shipment.
func (b *CouponBinding) MarkUsed(shipmentID uuid.UUID, at time.Time) {
	b.Used = true
	b.UsedAt = &at
	b.ShipmentID = &shipmentID
}

// Release returns the binding to the unused state.
func (b *CouponBinding) Release() {
	b.Used = false
	b.UsedAt = nil
	b.ShipmentID = nil
}
