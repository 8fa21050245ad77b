package pool

import "sync"

// Typed slice pools used by codec.Restore and the query engine's decode path
// to avoid reallocating timestamp/value arrays per page.
var (
	int64SlicePool   = sync.Pool{New: func() any { return &[]int64{} }}
	float64SlicePool = sync.Pool{New: func() any { return &[]float64{} }}
)

// GetInt64Slice retrieves an int64 slice of exact length size from the pool,
// along with a cleanup function the caller must invoke (typically via
// defer) to return it.
func GetInt64Slice(size int) ([]int64, func()) {
	ptr, _ := int64SlicePool.Get().(*[]int64)
	slice := (*ptr)[:0]
	if cap(slice) < size {
		slice = make([]int64, size)
	} else {
		slice = slice[:size]
	}
	*ptr = slice

	return slice, func() { int64SlicePool.Put(ptr) }
}

// GetFloat64Slice retrieves a float64 slice of exact length size from the
// pool, along with a cleanup function the caller must invoke to return it.
func GetFloat64Slice(size int) ([]float64, func()) {
	ptr, _ := float64SlicePool.Get().(*[]float64)
	slice := (*ptr)[:0]
	if cap(slice) < size {
		slice = make([]float64, size)
	} else {
		slice = slice[:size]
	}
	*ptr = slice

	return slice, func() { float64SlicePool.Put(ptr) }
}
