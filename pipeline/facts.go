package pipeline

import "sync"

// Facts carries observations across the passes of one streamed document.
// Rules whose verdict depends on the whole document note what they see in
// each guide and in the envelope, then decide once in the summary pass.
// A nil *Facts ignores notes and holds nothing.
type Facts struct {
	mu     sync.Mutex
	values map[string]string
}

// NewFacts creates an empty Facts.
func NewFacts() *Facts {
	return &Facts{values: make(map[string]string)}
}

// Note records value under key. The first value noted for a key is kept.
func (f *Facts) Note(key, value string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		f.values[key] = value
	}
}

// Get returns the value noted under key.
func (f *Facts) Get(key string) (string, bool) {
	if f == nil {
		return "", false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

// Has reports whether anything was noted under key.
func (f *Facts) Has(key string) bool {
	_, ok := f.Get(key)
	return ok
}
