package codec

import (
	"math"

	"github.com/relaydb/relaydb/internal/bitio"
)

const rawRecordSize = 16 // 8-byte timestamp + 8-byte float64, little-endian

// RawCodec is the V0Raw page codec: fixed-width, uncompressed (timestamp,
// value) records. It never fails to decode and needs no bit-level cursor,
// which makes it the format a writer falls back to for out-of-order points
// and the scratch codec compaction reads every other encoding into before
// re-encoding.
type RawCodec struct {
	buf       []byte
	count     int
	lastTS    int64
	hasPoints bool
}

var _ PageCodec = (*RawCodec)(nil)

// Init implements PageCodec.
func (c *RawCodec) Init(_ int64, buf []byte) error {
	c.buf = buf
	c.count = 0
	c.lastTS = 0
	c.hasPoints = false

	return nil
}

// Compress implements PageCodec.
func (c *RawCodec) Compress(ts int64, val float64) bool {
	offset := c.count * rawRecordSize
	if offset+rawRecordSize > len(c.buf) {
		return false
	}

	littleEndianEngine.PutUint64(c.buf[offset:], uint64(ts)) //nolint:gosec
	littleEndianEngine.PutUint64(c.buf[offset+8:], math.Float64bits(val))

	c.count++
	c.lastTS = ts
	c.hasPoints = true

	return true
}

// Save implements PageCodec.
func (c *RawCodec) Save() bitio.Position {
	return bitio.Position{Offset: uint16(c.count * rawRecordSize)} //nolint:gosec
}

// Restore implements PageCodec.
func (c *RawCodec) Restore(dst *DataPointContainer, pos bitio.Position, _ []byte) error {
	n := int(pos.Offset) / rawRecordSize
	for i := 0; i < n; i++ {
		offset := i * rawRecordSize
		if offset+rawRecordSize > len(c.buf) {
			break
		}

		ts := int64(littleEndianEngine.Uint64(c.buf[offset:])) //nolint:gosec
		val := math.Float64frombits(littleEndianEngine.Uint64(c.buf[offset+8:]))
		dst.Append(ts, val)
	}

	return nil
}

// Rebase implements PageCodec.
func (c *RawCodec) Rebase(buf []byte) { c.buf = buf }

// IsFull implements PageCodec.
func (c *RawCodec) IsFull() bool { return (c.count+1)*rawRecordSize > len(c.buf) }

// IsEmpty implements PageCodec.
func (c *RawCodec) IsEmpty() bool { return !c.hasPoints }

// Size implements PageCodec.
func (c *RawCodec) Size() int { return c.count * rawRecordSize }

// DataPointCount implements PageCodec.
func (c *RawCodec) DataPointCount() int { return c.count }

// LastTimestamp implements PageCodec.
func (c *RawCodec) LastTimestamp() int64 { return c.lastTS }

// Recycle implements PageCodec.
func (c *RawCodec) Recycle() {
	c.buf = nil
	c.count = 0
	c.hasPoints = false
}
