package terminology

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tissguard/validator/cache"
)

// DefaultCacheSize is the number of lookups kept by NewCachedStore.
const DefaultCacheSize = 50_000

// CachedStore wraps a Store with an LRU cache of Exists results.
// The cache is dropped after every successful BulkReplace, and a lookup
// that started before an import never lands in the cache after it.
type CachedStore struct {
	inner Store
	cache *cache.Cache[string, bool]

	// generation is bumped by every import; mu orders the bump and the
	// cache clear against lookups storing their answers
	generation atomic.Uint64
	mu         sync.RWMutex
}

// NewCachedStore creates a cached view of inner. A non-positive size uses
// DefaultCacheSize.
func NewCachedStore(inner Store, size int) *CachedStore {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &CachedStore{
		inner: inner,
		cache: cache.New[string, bool](size),
	}
}

// Inner returns the wrapped store.
func (s *CachedStore) Inner() Store {
	return s.inner
}

// Init initializes the wrapped store.
func (s *CachedStore) Init(ctx context.Context) error {
	return s.inner.Init(ctx)
}

// Exists consults the cache before the wrapped store. Errors are not cached.
func (s *CachedStore) Exists(ctx context.Context, code string) (bool, error) {
	if ok, hit := s.cache.Get(code); hit {
		return ok, nil
	}
	gen := s.generation.Load()
	ok, err := s.inner.Exists(ctx, code)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	if s.generation.Load() == gen {
		s.cache.Set(code, ok)
	}
	s.mu.RUnlock()
	return ok, nil
}

// Count is not cached.
func (s *CachedStore) Count(ctx context.Context) (int, error) {
	return s.inner.Count(ctx)
}

// BulkReplace replaces the wrapped table and clears the cache.
func (s *CachedStore) BulkReplace(ctx context.Context, entries []Entry) (int, error) {
	n, err := s.inner.BulkReplace(ctx, entries)
	if err != nil {
		return n, err
	}
	s.mu.Lock()
	s.generation.Add(1)
	s.cache.Clear()
	s.mu.Unlock()
	return n, nil
}

// Stats returns cache statistics.
func (s *CachedStore) Stats() cache.Stats {
	return s.cache.Stats()
}
