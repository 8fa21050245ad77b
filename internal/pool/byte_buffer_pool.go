// Package pool provides pooled scratch buffers for the hot paths that churn
// through many short-lived byte slices: page compression (codec package) and
// WAL record framing (wal package).
package pool

import "sync"

const (
	// PageBufferDefaultSize covers a single default 4 KiB page plus header slack.
	PageBufferDefaultSize = 4096
	// PageBufferMaxThreshold discards oversized buffers instead of pooling
	// them, so one unusually large page doesn't bloat the pool forever.
	PageBufferMaxThreshold = 64 * 1024
	// WALBufferDefaultSize covers a full page snapshot plus WAL record framing.
	WALBufferDefaultSize = 8 * 1024
	// WALBufferMaxThreshold bounds retained WAL scratch buffers.
	WALBufferMaxThreshold = 256 * 1024
)

// ByteBuffer is a reusable, growable byte slice wrapper.
type ByteBuffer struct {
	B []byte
}

// NewByteBuffer creates a new ByteBuffer with the given starting capacity.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{B: make([]byte, 0, defaultSize)}
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte { return bb.B }

// Reset empties the buffer while retaining its backing array.
func (bb *ByteBuffer) Reset() { bb.B = bb.B[:0] }

// Len returns the number of bytes currently held.
func (bb *ByteBuffer) Len() int { return len(bb.B) }

// Cap returns the buffer's current capacity.
func (bb *ByteBuffer) Cap() int { return cap(bb.B) }

// MustWrite appends data, growing the backing array if needed.
func (bb *ByteBuffer) MustWrite(data []byte) {
	bb.B = append(bb.B, data...)
}

// Slice returns bb.B[start:end]; panics if the indices are out of bounds.
func (bb *ByteBuffer) Slice(start, end int) []byte {
	if start < 0 || end < start || end > cap(bb.B) {
		panic("pool: Slice: invalid indices")
	}

	return bb.B[start:end]
}

// SetLength sets the buffer's length to n; panics if n is out of bounds.
func (bb *ByteBuffer) SetLength(n int) {
	if n < 0 || n > cap(bb.B) {
		panic("pool: SetLength: invalid length")
	}
	bb.B = bb.B[:n]
}

// Grow ensures at least requiredBytes of spare capacity beyond the current
// length, reallocating if necessary.
func (bb *ByteBuffer) Grow(requiredBytes int) {
	if cap(bb.B)-len(bb.B) >= requiredBytes {
		return
	}

	newBuf := make([]byte, len(bb.B), len(bb.B)+requiredBytes)
	copy(newBuf, bb.B)
	bb.B = newBuf
}

// Write implements io.Writer.
func (bb *ByteBuffer) Write(data []byte) (int, error) {
	bb.B = append(bb.B, data...)
	return len(data), nil
}

// BufferPool is a sync.Pool of ByteBuffers with an eviction threshold for
// oversized buffers.
type BufferPool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewBufferPool creates a BufferPool whose buffers start at defaultSize and
// are discarded (not pooled) once they grow past maxThreshold.
func NewBufferPool(defaultSize, maxThreshold int) *BufferPool {
	return &BufferPool{
		pool:         sync.Pool{New: func() any { return NewByteBuffer(defaultSize) }},
		maxThreshold: maxThreshold,
	}
}

// Get retrieves a ByteBuffer from the pool, allocating one if empty.
func (p *BufferPool) Get() *ByteBuffer {
	bb, _ := p.pool.Get().(*ByteBuffer)
	return bb
}

// Put returns a ByteBuffer to the pool, discarding it instead if it has
// grown past the pool's max threshold.
func (p *BufferPool) Put(bb *ByteBuffer) {
	if bb == nil {
		return
	}

	if p.maxThreshold > 0 && cap(bb.B) > p.maxThreshold {
		return
	}

	bb.Reset()
	p.pool.Put(bb)
}

var (
	pagePool = NewBufferPool(PageBufferDefaultSize, PageBufferMaxThreshold)
	walPool  = NewBufferPool(WALBufferDefaultSize, WALBufferMaxThreshold)
)

// GetPageBuffer retrieves a scratch buffer from the default page pool.
func GetPageBuffer() *ByteBuffer { return pagePool.Get() }

// PutPageBuffer returns a scratch buffer to the default page pool.
func PutPageBuffer(bb *ByteBuffer) { pagePool.Put(bb) }

// GetWALBuffer retrieves a scratch buffer from the default WAL pool.
func GetWALBuffer() *ByteBuffer { return walPool.Get() }

// PutWALBuffer returns a scratch buffer to the default WAL pool.
func PutWALBuffer(bb *ByteBuffer) { walPool.Put(bb) }
