package terminology

import (
	"context"
	"sync/atomic"
)

// MemoryStore keeps the table in an immutable map that is replaced as a
// whole on import, so lookups never take a lock.
type MemoryStore struct {
	table atomic.Pointer[map[string]string]
}

// NewMemoryStore creates an empty, ready to use store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	empty := map[string]string{}
	s.table.Store(&empty)
	return s
}

// Init is a no-op; the store is ready on construction.
func (s *MemoryStore) Init(context.Context) error {
	return nil
}

// Exists reports whether the code is in the table.
func (s *MemoryStore) Exists(_ context.Context, code string) (bool, error) {
	_, ok := (*s.table.Load())[code]
	return ok, nil
}

// Count returns the number of codes.
func (s *MemoryStore) Count(context.Context) (int, error) {
	return len(*s.table.Load()), nil
}

// Description returns the description stored for a code.
func (s *MemoryStore) Description(code string) (string, bool) {
	d, ok := (*s.table.Load())[code]
	return d, ok
}

// BulkReplace swaps in a new table built from entries.
func (s *MemoryStore) BulkReplace(ctx context.Context, entries []Entry) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	norm := Normalize(entries)
	next := make(map[string]string, len(norm))
	for _, e := range norm {
		next[e.Code] = e.Description
	}
	s.table.Store(&next)
	return len(next), nil
}
