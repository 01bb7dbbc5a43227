// Package pool provides sync.Pool wrappers for reducing GC pressure.
package pool

import (
	"strconv"
	"sync"
)

// PathSeparator joins location segments in findings ("a > b > c").
const PathSeparator = " > "

// PathBuilder builds human readable location strings.
// It uses a byte buffer that grows as needed and can be reused via sync.Pool.
type PathBuilder struct {
	buf []byte
}

var pathBuilderPool = sync.Pool{
	New: func() any {
		return &PathBuilder{
			buf: make([]byte, 0, 256),
		}
	},
}

// AcquirePathBuilder gets a PathBuilder from the pool.
// Call Release() when done to return it to the pool.
func AcquirePathBuilder() *PathBuilder {
	pb := pathBuilderPool.Get().(*PathBuilder)
	pb.Reset()
	return pb
}

// Release returns the PathBuilder to the pool.
func (b *PathBuilder) Release() {
	if b == nil {
		return
	}
	// Don't return oversized buffers to the pool
	if cap(b.buf) <= 4096 {
		pathBuilderPool.Put(b)
	}
}

// Reset clears the buffer without deallocating.
func (b *PathBuilder) Reset() {
	b.buf = b.buf[:0]
}

// Len returns the current length of the path.
func (b *PathBuilder) Len() int {
	return len(b.buf)
}

// Segment appends a segment, preceded by the separator unless the
// buffer is empty.
func (b *PathBuilder) Segment(name string) {
	if len(b.buf) > 0 {
		b.buf = append(b.buf, PathSeparator...)
	}
	b.buf = append(b.buf, name...)
}

// Segments appends every segment in order.
func (b *PathBuilder) Segments(names ...string) {
	for _, name := range names {
		b.Segment(name)
	}
}

// AppendIndex appends a 1-based sequence position in brackets [n].
func (b *PathBuilder) AppendIndex(index int) {
	b.buf = append(b.buf, '[')
	b.buf = strconv.AppendInt(b.buf, int64(index), 10)
	b.buf = append(b.buf, ']')
}

// String returns the built path as a string.
func (b *PathBuilder) String() string {
	return string(b.buf)
}

// JoinPath joins location segments with PathSeparator.
func JoinPath(segments ...string) string {
	switch len(segments) {
	case 0:
		return ""
	case 1:
		return segments[0]
	}

	pb := AcquirePathBuilder()
	defer pb.Release()
	pb.Segments(segments...)
	return pb.String()
}

// IndexedName returns "name[index]".
func IndexedName(name string, index int) string {
	pb := AcquirePathBuilder()
	defer pb.Release()
	pb.buf = append(pb.buf, name...)
	pb.AppendIndex(index)
	return pb.String()
}
