package domain

import (
	"time"

	"github.com/google/uuid"
)

// Shipment carries the payable total of a shipment owned by the shipment service.
// The ledger only touches Total and AppliedCouponBindingID.
type Shipment struct {
	ID                     uuid.UUID  `json:"id"`
	UserID                 uuid.UUID  `json:"user_id"`
	Total                  int64      `json:"total"`
	Currency               string     `json:"currency"`
	AppliedCouponBindingID *uuid.UUID `json:"applied_coupon_binding_id,omitempty"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// HasCoupon reports whether a coupon binding is currently applied.
func (s *Shipment) HasCoupon() bool {
	return s.AppliedCouponBindingID != nil
}
