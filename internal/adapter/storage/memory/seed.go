package memory

import (
	"encoding/json"
	"fmt"
	"io"

	"wallet-ledger/internal/core/domain"
)

// Seed is the fixture format accepted by LoadSeed. Users and shipments belong to
// other services, so a memory-backed server needs them handed in up front.
type Seed struct {
	Users     []domain.User     `json:"users"`
	Shipments []domain.Shipment `json:"shipments"`
}

// LoadSeed reads a JSON Seed from r into the store.
func (s *Store) LoadSeed(r io.Reader) (users, shipments int, err error) {
	var seed Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return 0, 0, fmt.Errorf("decode seed: %w", err)
	}
	for _, u := range seed.Users {
		s.PutUser(u)
	}
	for _, sh := range seed.Shipments {
		if sh.Total < 0 {
			return 0, 0, fmt.Errorf("seed shipment %s: negative total", sh.ID)
		}
		s.PutShipment(sh)
	}
	return len(seed.Users), len(seed.Shipments), nil
}
