package codec

import (
	"encoding/binary"
	"math"

	"github.com/relaydb/relaydb/errs"
	"github.com/relaydb/relaydb/internal/bitio"
)

// DeltaXORCodec is the V1DeltaXOR page codec: timestamps are delta-of-delta
// and zigzag+varint encoded (grounded on the teacher's
// TimestampDeltaEncoder), and values are XOR-compressed against the
// previous value using a whole-byte lane mask rather than the bit-level
// leading/trailing-zero windows V2Gorilla uses. It trades some of V2's
// density for a branch-light, byte-aligned encode/decode path.
type DeltaXORCodec struct {
	buf    []byte
	offset int

	count     int
	firstTS   int64
	prevTS    int64
	prevDelta int64
	prevBits  uint64
	lastTS    int64
}

var _ PageCodec = (*DeltaXORCodec)(nil)

// Init implements PageCodec.
func (c *DeltaXORCodec) Init(_ int64, buf []byte) error {
	c.buf = buf
	c.offset = 0
	c.count = 0
	c.prevTS = 0
	c.prevDelta = 0
	c.prevBits = 0
	c.lastTS = 0

	return nil
}

// Compress implements PageCodec.
func (c *DeltaXORCodec) Compress(ts int64, val float64) bool {
	var scratch [32]byte
	n := c.encodePoint(scratch[:], ts, val)
	if n == 0 {
		return false
	}
	if c.offset+n > len(c.buf) {
		return false
	}

	copy(c.buf[c.offset:], scratch[:n])
	c.offset += n

	if c.count == 0 {
		c.firstTS = ts
	}
	c.count++
	c.prevBits = math.Float64bits(val)
	if c.count == 1 {
		c.prevDelta = 0
	} else {
		c.prevDelta = ts - c.prevTS
	}
	c.prevTS = ts
	c.lastTS = ts

	return true
}

// encodePoint writes one point's wire form into dst and returns the number
// of bytes used, or 0 if the point cannot be encoded (never happens for
// finite values; dst is always large enough for a single point).
func (c *DeltaXORCodec) encodePoint(dst []byte, ts int64, val float64) int {
	n := 0
	valBits := math.Float64bits(val)

	if c.count == 0 {
		n += binary.PutUvarint(dst[n:], uint64(ts)) //nolint:gosec
		littleEndianEngine.PutUint64(dst[n:], valBits)
		n += 8

		return n
	}

	delta := ts - c.prevTS
	var deltaOfDelta int64
	if c.count == 1 {
		deltaOfDelta = delta
	} else {
		deltaOfDelta = delta - c.prevDelta
	}
	n += binary.PutUvarint(dst[n:], zigzagEncode(deltaOfDelta))

	xor := valBits ^ c.prevBits
	if xor == 0 {
		dst[n] = 0
		n++

		return n
	}

	var laneMask byte
	var lanes [8]byte
	laneCount := 0
	for i := 0; i < 8; i++ {
		b := byte(xor >> (56 - 8*i)) //nolint:gosec
		if b != 0 {
			laneMask |= 1 << (7 - i)
			lanes[laneCount] = b
			laneCount++
		}
	}

	dst[n] = 0x80 | laneMask
	n++
	copy(dst[n:], lanes[:laneCount])
	n += laneCount

	return n
}

// Save implements PageCodec.
func (c *DeltaXORCodec) Save() bitio.Position {
	return bitio.Position{Offset: uint16(c.offset)} //nolint:gosec
}

// Restore implements PageCodec.
func (c *DeltaXORCodec) Restore(dst *DataPointContainer, pos bitio.Position, _ []byte) error {
	limit := int(pos.Offset)
	offset := 0
	var curTS int64
	var prevDelta int64
	var curBits uint64
	count := 0

	for offset < limit {
		if count == 0 {
			v, n := binary.Uvarint(c.buf[offset:limit])
			if n <= 0 {
				return errs.New(errs.KindCorrupted, "codec.DeltaXORCodec.Restore", errs.ErrCorrupted)
			}
			offset += n
			curTS = int64(v) //nolint:gosec
			if offset+8 > limit {
				return errs.New(errs.KindCorrupted, "codec.DeltaXORCodec.Restore", errs.ErrCorrupted)
			}
			curBits = littleEndianEngine.Uint64(c.buf[offset:])
			offset += 8
			dst.Append(curTS, math.Float64frombits(curBits))
			count++

			continue
		}

		zz, n := binary.Uvarint(c.buf[offset:limit])
		if n <= 0 {
			return errs.New(errs.KindCorrupted, "codec.DeltaXORCodec.Restore", errs.ErrCorrupted)
		}
		offset += n
		deltaOfDelta := zigzagDecode(zz)

		var delta int64
		if count == 1 {
			delta = deltaOfDelta
		} else {
			delta = prevDelta + deltaOfDelta
		}
		curTS += delta
		prevDelta = delta

		if offset >= limit {
			return errs.New(errs.KindCorrupted, "codec.DeltaXORCodec.Restore", errs.ErrCorrupted)
		}
		control := c.buf[offset]
		offset++

		if control == 0 {
			dst.Append(curTS, math.Float64frombits(curBits))
			count++

			continue
		}

		laneMask := control &^ 0x80
		var xor uint64
		for i := 0; i < 8; i++ {
			if laneMask&(1<<(7-i)) == 0 {
				continue
			}
			if offset >= limit {
				return errs.New(errs.KindCorrupted, "codec.DeltaXORCodec.Restore", errs.ErrCorrupted)
			}
			xor |= uint64(c.buf[offset]) << (56 - 8*i) //nolint:gosec
			offset++
		}

		curBits ^= xor
		dst.Append(curTS, math.Float64frombits(curBits))
		count++
	}

	return nil
}

// Rebase implements PageCodec.
func (c *DeltaXORCodec) Rebase(buf []byte) { c.buf = buf }

// deltaXORMaxPointSize bounds one point's worst-case encoding: a 10-byte
// varint delta-of-delta plus a 1-byte lane control and 8 data bytes.
const deltaXORMaxPointSize = binary.MaxVarintLen64 + 1 + 8

// IsFull implements PageCodec.
func (c *DeltaXORCodec) IsFull() bool { return len(c.buf)-c.offset < deltaXORMaxPointSize }

// IsEmpty implements PageCodec.
func (c *DeltaXORCodec) IsEmpty() bool { return c.count == 0 }

// Size implements PageCodec.
func (c *DeltaXORCodec) Size() int { return c.offset }

// DataPointCount implements PageCodec.
func (c *DeltaXORCodec) DataPointCount() int { return c.count }

// LastTimestamp implements PageCodec.
func (c *DeltaXORCodec) LastTimestamp() int64 { return c.lastTS }

// Recycle implements PageCodec.
func (c *DeltaXORCodec) Recycle() {
	c.buf = nil
	c.count = 0
	c.offset = 0
}
