package domain

import (
	"github.com/google/uuid"
)

// BuildDebitIdempotencyKey constructs the key for one debit per business event.
// Format: "user_id:kind:reference:type".
func BuildDebitIdempotencyKey(userID uuid.UUID, ref Reference, txType TransactionType) string {
	return userID.String() + ":" + ref.String() + ":" + string(txType)
}

// BuildDepositChargeKey constructs the idempotency key sent to the payment gateway
// for a single deposit attempt.
func BuildDepositChargeKey(userID uuid.UUID, attemptID uuid.UUID) string {
	return "deposit:" + userID.String() + ":" + attemptID.String()
}
