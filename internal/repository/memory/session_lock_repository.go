package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// SessionLockRepository hands out one mutex per session. Idle locks expire with the TTL.
type SessionLockRepository struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewSessionLockRepository(ttl time.Duration) *SessionLockRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SessionLockRepository{
		cache: cache.New(ttl, ttl/2),
	}
}

// TryLock returns a release func, or false if a turn is already running for the session.
func (r *SessionLockRepository) TryLock(sessionID uuid.UUID) (func(), bool) {
	key := sessionID.String()

	r.mu.Lock()
	var lock *sync.Mutex
	if x, found := r.cache.Get(key); found {
		lock = x.(*sync.Mutex)
	} else {
		lock = &sync.Mutex{}
	}
	// refresh expiry on every use
	r.cache.Set(key, lock, cache.DefaultExpiration)
	r.mu.Unlock()

	if !lock.TryLock() {
		return nil, false
	}

	var once sync.Once
	return func() { once.Do(lock.Unlock) }, true
}
