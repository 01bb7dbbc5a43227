package pool

import "sync"

var segmentPool = sync.Pool{
	New: func() any {
		s := make([]string, 0, 16)
		return &s
	},
}

// AcquireSegments gets an empty path-segment stack from the pool.
func AcquireSegments() *[]string {
	s := segmentPool.Get().(*[]string)
	*s = (*s)[:0]
	return s
}

// ReleaseSegments returns a segment stack to the pool.
func ReleaseSegments(s *[]string) {
	if s == nil {
		return
	}
	// Don't return oversized slices
	if cap(*s) <= 256 {
		segmentPool.Put(s)
	}
}

// WindowPool hands out fixed-size read buffers for the stream processor.
type WindowPool struct {
	size int
	pool sync.Pool
}

// NewWindowPool creates a pool of byte buffers of the given size.
func NewWindowPool(size int) *WindowPool {
	p := &WindowPool{size: size}
	p.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return p
}

// Size returns the buffer size handed out by the pool.
func (p *WindowPool) Size() int {
	return p.size
}

// Acquire gets a full-length buffer from the pool.
func (p *WindowPool) Acquire() *[]byte {
	b := p.pool.Get().(*[]byte)
	*b = (*b)[:p.size]
	return b
}

// Release returns a buffer to the pool.
func (p *WindowPool) Release(b *[]byte) {
	if b == nil || cap(*b) != p.size {
		return
	}
	p.pool.Put(b)
}

// SetPool provides pooled sets for de-duplicating values.
type SetPool[K comparable] struct {
	pool sync.Pool
	cap  int
}

// NewSetPool creates a new pool for sets with the given initial capacity.
func NewSetPool[K comparable](initialCap int) *SetPool[K] {
	return &SetPool[K]{
		pool: sync.Pool{
			New: func() any {
				return make(map[K]struct{}, initialCap)
			},
		},
		cap: initialCap,
	}
}

// Acquire gets an empty set from the pool.
func (p *SetPool[K]) Acquire() map[K]struct{} {
	return p.pool.Get().(map[K]struct{})
}

// Release clears the set and returns it to the pool.
func (p *SetPool[K]) Release(m map[K]struct{}) {
	if m == nil {
		return
	}
	n := len(m)
	clear(m)
	// Don't return oversized sets
	if n <= p.cap*4 {
		p.pool.Put(m)
	}
}
