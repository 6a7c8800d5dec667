package user

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/go-user-identity/internal/types"
)

var _ UserRepo = (*CachedUserRepo)(nil)

// CachedUserRepo fronts another UserRepo with a process-local read cache for
// single-user lookups. Writes go straight to the wrapped repo and then evict
// the cached entries for the affected user, so a caller always reads its own
// writes. ListAll and ExistsByUsername are never cached.
//
// The cache only sees writes made through this value, so it must not front a
// store shared with other processes.
type CachedUserRepo struct {
	next  UserRepo
	cache *cache.Cache

	// mu orders fills against evictions. epoch moves on every write; a fill
	// that started before a write is dropped instead of re-caching old data.
	mu    sync.Mutex
	epoch uint64
}

func NewCachedUserRepo(next UserRepo, ttl, cleanupInterval time.Duration) *CachedUserRepo {
	return &CachedUserRepo{
		next:  next,
		cache: cache.New(ttl, cleanupInterval),
	}
}

func idKey(id uuid.UUID) string { return "id:" + id.String() }
func usernameKey(name string) string { return "username:" + name }

func (r *CachedUserRepo) lookup(key string) (*types.User, bool) {
	cached, found := r.cache.Get(key)
	if !found {
		return nil, false
	}
	u, ok := cached.(*types.User)
	if !ok {
		r.cache.Delete(key)
		return nil, false
	}
	return clone(u), true
}

func (r *CachedUserRepo) currentEpoch() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch
}

// fill caches u unless a write landed since seen was taken. The username key
// is set first so it never outlives the id key that evict reads it from.
func (r *CachedUserRepo) fill(seen uint64, u *types.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.epoch != seen {
		return
	}
	c := clone(u)
	r.cache.Set(usernameKey(c.Username), c, cache.DefaultExpiration)
	r.cache.Set(idKey(c.ID), c, cache.DefaultExpiration)
}

// evict drops the id entry and the username entry cached alongside it, which
// may hold a name the user no longer has.
func (r *CachedUserRepo) evict(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	key := idKey(id)
	if cached, found := r.cache.Get(key); found {
		if u, ok := cached.(*types.User); ok {
			r.cache.Delete(usernameKey(u.Username))
		}
	}
	r.cache.Delete(key)
}

func (r *CachedUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*types.User, error) {
	if u, ok := r.lookup(idKey(id)); ok {
		return u, nil
	}
	seen := r.currentEpoch()
	u, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.fill(seen, u)
	return u, nil
}

func (r *CachedUserRepo) FindByUsername(ctx context.Context, username string) (*types.User, error) {
	if u, ok := r.lookup(usernameKey(username)); ok {
		return u, nil
	}
	seen := r.currentEpoch()
	u, err := r.next.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	r.fill(seen, u)
	return u, nil
}

func (r *CachedUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.next.ExistsByUsername(ctx, username)
}

func (r *CachedUserRepo) Insert(ctx context.Context, user *types.User) error {
	err := r.next.Insert(ctx, user)
	r.evict(user.ID)
	return err
}

func (r *CachedUserRepo) Update(ctx context.Context, user *types.User) error {
	err := r.next.Update(ctx, user)
	r.evict(user.ID)
	return err
}

func (r *CachedUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.next.Delete(ctx, id)
	r.evict(id)
	return err
}

func (r *CachedUserRepo) ListAll(ctx context.Context) ([]types.User, error) {
	return r.next.ListAll(ctx)
}
