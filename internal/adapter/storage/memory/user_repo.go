package memory

import (
	"context"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// UserRepo implements ports.UserDirectory over users registered with PutUser.
type UserRepo struct {
	store *Store
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(store *Store) *UserRepo {
	return &UserRepo{store: store}
}

func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}
