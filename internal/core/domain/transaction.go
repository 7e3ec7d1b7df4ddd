package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of balance movement.
type TransactionType string

const (
	TransactionTypeDeposit                   TransactionType = "DEPOSIT"
	TransactionTypeWithdrawalProductPayment  TransactionType = "WITHDRAWAL_PRODUCT_PAYMENT"
	TransactionTypeWithdrawalShippingPayment TransactionType = "WITHDRAWAL_SHIPPING_PAYMENT"
	TransactionTypeRefund                    TransactionType = "REFUND"
)

// IsValid reports whether t is one of the known transaction types.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawalProductPayment,
		TransactionTypeWithdrawalShippingPayment, TransactionTypeRefund:
		return true
	}
	return false
}

// IsWithdrawal reports whether t debits the wallet.
func (t TransactionType) IsWithdrawal() bool {
	return t == TransactionTypeWithdrawalProductPayment || t == TransactionTypeWithdrawalShippingPayment
}

// Transaction is an immutable ledger entry. Amount is signed: positive credits, negative debits.
type Transaction struct {
	ID                      uuid.UUID           `json:"id"`
	WalletID                uuid.UUID           `json:"wallet_id"`
	UserID                  uuid.UUID           `json:"user_id"`
	TransactionType         TransactionType     `json:"transaction_type"`
	Amount                  int64               `json:"amount"`
	Currency                string              `json:"currency"`
	RelatedOrderRef         *string             `json:"related_order_ref,omitempty"`
	RelatedShipmentRef      *string             `json:"related_shipment_ref,omitempty"`
	ChargedAmount           int64               `json:"charged_amount"`
	ChargedCurrency         string              `json:"charged_currency"`
	ExchangeRate            decimal.NullDecimal `json:"exchange_rate"`
	Fee                     *int64              `json:"fee,omitempty"`
	OriginalAmountDeposited *int64              `json:"original_amount_deposited,omitempty"`
	OriginalCurrency        *string             `json:"original_currency,omitempty"`
	ExternalChargeID        *string             `json:"external_charge_id,omitempty"`
	CreatedAt               time.Time           `json:"created_at"`
}

// Reference returns the business reference the transaction is tied to, if any.
func (t *Transaction) Reference() (Reference, bool) {
	switch {
	case t.RelatedOrderRef != nil:
		return OrderReference(*t.RelatedOrderRef), true
	case t.RelatedShipmentRef != nil:
		return ShipmentReference(*t.RelatedShipmentRef), true
	}
	return Reference{}, false
}

// ReferenceKind distinguishes order and shipment references.
type ReferenceKind string

const (
	ReferenceKindOrder    ReferenceKind = "order"
	ReferenceKindShipment ReferenceKind = "shipment"
)

// Reference points at exactly one business event owned by the order or shipment service.
type Reference struct {
	Kind ReferenceKind
	ID   string
}

// OrderReference builds an order reference.
func OrderReference(id string) Reference {
	return Reference{Kind: ReferenceKindOrder, ID: id}
}

// ShipmentReference builds a shipment reference.
func ShipmentReference(id string) Reference {
	return Reference{Kind: ReferenceKindShipment, ID: id}
}

// NewReference builds a reference from a pair of optional ids. Exactly one must be set.
func NewReference(orderRef, shipmentRef *string) (Reference, bool) {
	hasOrder := orderRef != nil && *orderRef != ""
	hasShipment := shipmentRef != nil && *shipmentRef != ""
	switch {
	case hasOrder && !hasShipment:
		return OrderReference(*orderRef), true
	case hasShipment && !hasOrder:
		return ShipmentReference(*shipmentRef), true
	}
	return Reference{}, false
}

// Apply sets the matching related-ref column on the transaction.
func (r Reference) Apply(t *Transaction) {
	id := r.ID
	switch r.Kind {
	case ReferenceKindOrder:
		t.RelatedOrderRef = &id
	case ReferenceKindShipment:
		t.RelatedShipmentRef = &id
	}
}

func (r Reference) String() string {
	return string(r.Kind) + ":" + r.ID
}

// DebitReason is the business purpose a caller states for a debit.
type DebitReason string

const (
	DebitReasonProductPayment  DebitReason = "PRODUCT_PAYMENT"
	DebitReasonShippingPayment DebitReason = "SHIPPING_PAYMENT"
)

// TransactionType maps the reason to the withdrawal type recorded in the ledger.
func (r DebitReason) TransactionType() (TransactionType, bool) {
	switch r {
	case DebitReasonProductPayment:
		return TransactionTypeWithdrawalProductPayment, true
	case DebitReasonShippingPayment:
		return TransactionTypeWithdrawalShippingPayment, true
	}
	return "", false
}
