package user

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-user-identity/internal/types"
)

var _ UserRepo = (*MemoryUserRepo)(nil)

// MemoryUserRepo keeps users in process memory. It backs the "memory" storage
// driver and the service tests. Records are copied in and out so callers never
// share state with the store.
type MemoryUserRepo struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]*types.User
	byUsername map[string]uuid.UUID
	order      []uuid.UUID
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:       make(map[uuid.UUID]*types.User),
		byUsername: make(map[string]uuid.UUID),
	}
}

func clone(u *types.User) *types.User {
	c := *u
	if u.RefreshToken != nil {
		t := *u.RefreshToken
		c.RefreshToken = &t
	}
	return &c
}

func (r *MemoryUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*types.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return clone(u), nil
}

func (r *MemoryUserRepo) FindByUsername(ctx context.Context, username string) (*types.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, types.ErrNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *MemoryUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byUsername[username]
	return ok, nil
}

func (r *MemoryUserRepo) Insert(ctx context.Context, user *types.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[user.ID]; ok {
		return fmt.Errorf("user id %s already exists: %w", user.ID, types.ErrConflict)
	}
	if _, ok := r.byUsername[user.Username]; ok {
		return fmt.Errorf("user %q already exists: %w", user.Username, types.ErrConflict)
	}
	r.byID[user.ID] = clone(user)
	r.byUsername[user.Username] = user.ID
	r.order = append(r.order, user.ID)
	return nil
}

func (r *MemoryUserRepo) Update(ctx context.Context, user *types.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[user.ID]
	if !ok {
		return types.ErrNotFound
	}
	if owner, taken := r.byUsername[user.Username]; taken && owner != user.ID {
		return fmt.Errorf("username %q is taken: %w", user.Username, types.ErrConflict)
	}

	delete(r.byUsername, current.Username)
	next := clone(user)
	next.CreatedAt = current.CreatedAt
	r.byID[user.ID] = next
	r.byUsername[user.Username] = user.ID
	return nil
}

func (r *MemoryUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return types.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byUsername, u.Username)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryUserRepo) ListAll(ctx context.Context) ([]types.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]types.User, 0, len(r.order))
	for _, id := range r.order {
		users = append(users, *clone(r.byID[id]))
	}
	return users, nil
}
