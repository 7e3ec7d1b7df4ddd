package dto

import "time"

// DepositRequest is the request body for a wallet deposit.
// Amount is the settlement amount to credit, in minor units.
type DepositRequest struct {
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency" binding:"required,len=3"`
	PaymentMethod string `json:"payment_method" binding:"required,max=255,safe_id"`
	AttemptID     string `json:"attempt_id,omitempty" binding:"omitempty,uuid"`
}

// DebitRequest is the request body for an internal debit. Exactly one ref must be set.
type DebitRequest struct {
	UserID      string  `json:"user_id" binding:"required,uuid"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency" binding:"required,len=3"`
	Reason      string  `json:"reason" binding:"required"`
	OrderRef    *string `json:"order_ref,omitempty" binding:"omitempty,max=100,safe_id"`
	ShipmentRef *string `json:"shipment_ref,omitempty" binding:"omitempty,max=100,safe_id"`
}

// RefundRequest is the request body for an internal refund. Amount nil refunds the full debit.
type RefundRequest struct {
	UserID      string  `json:"user_id" binding:"required,uuid"`
	OrderRef    *string `json:"order_ref,omitempty" binding:"omitempty,max=100,safe_id"`
	ShipmentRef *string `json:"shipment_ref,omitempty" binding:"omitempty,max=100,safe_id"`
	Amount      *int64  `json:"amount,omitempty"`
}

// ApplyCouponRequest is the request body for applying a coupon binding to a shipment.
type ApplyCouponRequest struct {
	BindingID string `json:"binding_id" binding:"required,uuid"`
}

// RemoveCouponRequest is the request body for removing a coupon from a shipment.
type RemoveCouponRequest struct {
	BindingID     string `json:"binding_id" binding:"required,uuid"`
	OriginalTotal *int64 `json:"original_total" binding:"required"`
}

// CreateCouponRequest is the request body for defining a coupon.
type CreateCouponRequest struct {
	Code               string    `json:"code" binding:"required,max=64,safe_id"`
	Type               string    `json:"type" binding:"required,oneof=SHIPPING PRODUCT"`
	DiscountAmount     *int64    `json:"discount_amount,omitempty"`
	DiscountPercentage *string   `json:"discount_percentage,omitempty" binding:"omitempty,decimal"`
	MaxDiscountValue   *int64    `json:"max_discount_value,omitempty"`
	MinPurchaseValue   *int64    `json:"min_purchase_value,omitempty"`
	ValidFrom          time.Time `json:"valid_from" binding:"required"`
	ValidTo            time.Time `json:"valid_to" binding:"required"`
	IsActive           *bool     `json:"is_active,omitempty"`
}

// GrantCouponRequest is the request body for binding a coupon to a user.
// An empty code grants the configured welcome coupon.
type GrantCouponRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Code   string `json:"code,omitempty" binding:"omitempty,max=64,safe_id"`
}

// TransactionResponse is the response body for a ledger entry.
type TransactionResponse struct {
	ID                      string  `json:"id"`
	TransactionType         string  `json:"transaction_type"`
	Amount                  int64   `json:"amount"`
	AmountDisplay           string  `json:"amount_display"`
	Currency                string  `json:"currency"`
	OrderRef                *string `json:"order_ref,omitempty"`
	ShipmentRef             *string `json:"shipment_ref,omitempty"`
	ChargedAmount           int64   `json:"charged_amount"`
	ChargedCurrency         string  `json:"charged_currency"`
	ExchangeRate            *string `json:"exchange_rate,omitempty"`
	Fee                     *int64  `json:"fee,omitempty"`
	OriginalAmountDeposited *int64  `json:"original_amount_deposited,omitempty"`
	OriginalCurrency        *string `json:"original_currency,omitempty"`
	ExternalChargeID        *string `json:"external_charge_id,omitempty"`
	CreatedAt               string  `json:"created_at"`
}

// TransactionResultResponse is the response body for every balance-changing call.
type TransactionResultResponse struct {
	Outcome        string              `json:"outcome"`
	Balance        int64               `json:"balance"`
	BalanceDisplay string              `json:"balance_display"`
	Transaction    TransactionResponse `json:"transaction"`
}

// WalletBalanceResponse is the response for balance query.
type WalletBalanceResponse struct {
	Balance        int64  `json:"balance"`
	BalanceDisplay string `json:"balance_display"`
	Currency       string `json:"currency"`
}

// DeletableResponse reports whether a user may be deleted.
type DeletableResponse struct {
	UserID    string `json:"user_id"`
	Deletable bool   `json:"deletable"`
}

// CouponResponse is the response body for a coupon definition.
type CouponResponse struct {
	ID                 string  `json:"id"`
	Code               string  `json:"code"`
	Type               string  `json:"type"`
	DiscountAmount     *int64  `json:"discount_amount,omitempty"`
	DiscountPercentage *string `json:"discount_percentage,omitempty"`
	MaxDiscountValue   *int64  `json:"max_discount_value,omitempty"`
	MinPurchaseValue   *int64  `json:"min_purchase_value,omitempty"`
	ValidFrom          string  `json:"valid_from"`
	ValidTo            string  `json:"valid_to"`
	IsActive           bool    `json:"is_active"`
}

// CouponBindingResponse is the response body for a user's coupon.
type CouponBindingResponse struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Used       bool            `json:"used"`
	UsedAt     *string         `json:"used_at,omitempty"`
	ShipmentID *string         `json:"shipment_id,omitempty"`
	Coupon     *CouponResponse `json:"coupon,omitempty"`
}

// ShipmentResponse is the response body for a shipment total.
type ShipmentResponse struct {
	ID                     string  `json:"id"`
	Total                  int64   `json:"total"`
	TotalDisplay           string  `json:"total_display"`
	Currency               string  `json:"currency"`
	AppliedCouponBindingID *string `json:"applied_coupon_binding_id,omitempty"`
}

// CouponApplicationResponse is the response body for a coupon application.
type CouponApplicationResponse struct {
	Shipment      ShipmentResponse      `json:"shipment"`
	Binding       CouponBindingResponse `json:"binding"`
	OriginalTotal int64                 `json:"original_total"`
	Discount      int64                 `json:"discount"`
}

// ExchangeRateResponse is one entry of the rate log.
type ExchangeRateResponse struct {
	FromCurrency string `json:"from_currency"`
	ToCurrency   string `json:"to_currency"`
	Rate         string `json:"rate"`
	Source       string `json:"source"`
	FetchedAt    string `json:"fetched_at"`
}
