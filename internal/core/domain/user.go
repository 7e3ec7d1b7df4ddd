package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity the user directory hands to the ledger.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
