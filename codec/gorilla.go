package codec

import (
	"math"

	"github.com/relaydb/relaydb/errs"
	"github.com/relaydb/relaydb/internal/bitio"
)

// gorillaStageSize bounds the worst-case bits a single point can take: a
// 4-bit bucket prefix plus a 64-bit overflow payload for the timestamp, and
// a 2-bit control plus 5+6+64 bits for an all-new Gorilla value window.
// Both comfortably fit in 24 bytes; 32 leaves slack for the int fast path's
// own bucket write.
const gorillaStageSize = 32

// GorillaCodec implements both V2Gorilla and V3GorillaInt, which share
// every mechanic except how they compress values: V2 always XOR-compresses,
// V3 first checks whether both the previous and current value are integral
// and if so bit-packs their difference instead. useIntFastPath selects
// between them.
//
// Every Compress call stages its point's bits into a small local buffer
// first and only commits them into the page's real bit cursor if they fit,
// so a page that fills mid-point never ends up with a truncated, unreadable
// tail record.
type GorillaCodec struct {
	buf            []byte
	writer         *bitio.Writer
	useIntFastPath bool

	count     int
	prevTS    int64
	prevDelta int64
	prevBits  uint64
	prevInt   int64
	prevIsInt bool
	valState  gorillaValueState
	lastTS    int64
}

var _ PageCodec = (*GorillaCodec)(nil)

// Init implements PageCodec.
func (c *GorillaCodec) Init(_ int64, buf []byte) error {
	c.buf = buf
	c.writer = bitio.NewWriter(buf)
	c.count = 0
	c.prevTS = 0
	c.prevDelta = 0
	c.prevBits = 0
	c.prevInt = 0
	c.prevIsInt = false
	c.valState = gorillaValueState{}
	c.lastTS = 0

	return nil
}

// Compress implements PageCodec.
func (c *GorillaCodec) Compress(ts int64, val float64) bool {
	var stage [gorillaStageSize]byte
	sw := bitio.NewWriter(stage[:])

	valBits := math.Float64bits(val)
	intVal, isInt := isIntegral(val)

	if !c.encodeStage(sw, ts, valBits, intVal, isInt) {
		return false
	}

	n := sw.BitLen()
	if n > c.writer.Cap() {
		return false
	}

	sr := bitio.NewReader(stage[:])
	if !copyBits(c.writer, sr, n) {
		return false
	}

	c.applyState(ts, valBits, intVal, isInt)

	return true
}

// encodeStage writes one point's encoding into sw, a writer over a local
// scratch buffer large enough to hold any single point.
func (c *GorillaCodec) encodeStage(sw *bitio.Writer, ts int64, valBits uint64, intVal int64, isInt bool) bool {
	if c.count == 0 {
		return sw.WriteBits(uint64(ts), 64) && sw.WriteBits(valBits, 64) //nolint:gosec
	}

	delta := ts - c.prevTS
	var dod int64
	if c.count == 1 {
		dod = delta
	} else {
		dod = delta - c.prevDelta
	}
	if !writeBucketed(sw, dod) {
		return false
	}

	if !c.useIntFastPath {
		state := c.valState
		return writeGorillaValue(sw, &state, c.prevBits, valBits)
	}

	if isInt && c.prevIsInt {
		if !sw.WriteBit(true) || !sw.WriteBit(false) {
			return false
		}

		return writeBucketed(sw, intVal-c.prevInt)
	}

	if !sw.WriteBit(true) || !sw.WriteBit(true) {
		return false
	}
	state := c.valState

	return writeGorillaValue(sw, &state, c.prevBits, valBits)
}

// applyState advances the codec's running state after a successful commit;
// it re-derives the same branch encodeStage took so valState stays in sync
// with what was actually written.
func (c *GorillaCodec) applyState(ts int64, valBits uint64, intVal int64, isInt bool) {
	if c.count > 0 {
		delta := ts - c.prevTS
		c.prevDelta = delta

		if !c.useIntFastPath || !(isInt && c.prevIsInt) {
			xor := c.prevBits ^ valBits
			if xor != 0 {
				leading, trailing, blockSize := gorillaWindow(xor)
				c.valState = gorillaValueState{leading: leading, trailing: trailing, blockSize: blockSize, valid: true}
			}
		}
	}

	c.prevTS = ts
	c.prevBits = valBits
	c.prevInt = intVal
	c.prevIsInt = isInt
	c.count++
	c.lastTS = ts
}

// Save implements PageCodec.
func (c *GorillaCodec) Save() bitio.Position { return c.writer.Position() }

// Restore implements PageCodec.
func (c *GorillaCodec) Restore(dst *DataPointContainer, pos bitio.Position, _ []byte) error {
	reader := bitio.NewReader(c.buf)

	limitBits := int(pos.Offset)*8 + int(pos.Start)

	var curTS, prevDelta, prevInt int64
	var curBits uint64
	var prevIsInt bool
	state := gorillaValueState{}
	count := 0

	bitsRead := func() int {
		p := reader.Position()
		return int(p.Offset)*8 + int(p.Start)
	}

	for bitsRead() < limitBits {
		if count == 0 {
			tsBits, ok := reader.ReadBits(64)
			if !ok {
				return errs.New(errs.KindCorrupted, "codec.GorillaCodec.Restore", errs.ErrCorrupted)
			}
			valBits, ok := reader.ReadBits(64)
			if !ok {
				return errs.New(errs.KindCorrupted, "codec.GorillaCodec.Restore", errs.ErrCorrupted)
			}
			curTS = int64(tsBits) //nolint:gosec
			curBits = valBits
			curInt, isInt := isIntegral(math.Float64frombits(curBits))
			prevInt, prevIsInt = curInt, isInt
			dst.Append(curTS, math.Float64frombits(curBits))
			count++

			continue
		}

		dod, ok := readBucketed(reader)
		if !ok {
			return errs.New(errs.KindCorrupted, "codec.GorillaCodec.Restore", errs.ErrCorrupted)
		}
		var delta int64
		if count == 1 {
			delta = dod
		} else {
			delta = prevDelta + dod
		}
		curTS += delta
		prevDelta = delta

		if c.useIntFastPath {
			xorPath, ok := reader.ReadBit()
			if !ok {
				return errs.New(errs.KindCorrupted, "codec.GorillaCodec.Restore", errs.ErrCorrupted)
			}
			if xorPath {
				isIntPath, ok := reader.ReadBit()
				if !ok {
					return errs.New(errs.KindCorrupted, "codec.GorillaCodec.Restore", errs.ErrCorrupted)
				}
				if !isIntPath {
					dv, ok := readBucketed(reader)
					if !ok {
						return errs.New(errs.KindCorrupted, "codec.GorillaCodec.Restore", errs.ErrCorrupted)
					}
					curInt := prevInt + dv
					curBits = math.Float64bits(float64(curInt))
					prevInt, prevIsInt = curInt, true
					dst.Append(curTS, math.Float64frombits(curBits))
					count++

					continue
				}
			}
		}

		var ok bool
		curBits, ok = readGorillaValue(reader, &state, curBits)
		if !ok {
			return errs.New(errs.KindCorrupted, "codec.GorillaCodec.Restore", errs.ErrCorrupted)
		}
		curInt, isInt := isIntegral(math.Float64frombits(curBits))
		prevInt, prevIsInt = curInt, isInt
		dst.Append(curTS, math.Float64frombits(curBits))
		count++
	}

	return nil
}

// Rebase implements PageCodec.
func (c *GorillaCodec) Rebase(buf []byte) {
	c.buf = buf
	c.writer.Rebase(buf)
}

// IsFull implements PageCodec.
func (c *GorillaCodec) IsFull() bool { return c.writer.Cap() < gorillaStageSize*8 }

// IsEmpty implements PageCodec.
func (c *GorillaCodec) IsEmpty() bool { return c.count == 0 }

// Size implements PageCodec.
func (c *GorillaCodec) Size() int { return (c.writer.BitLen() + 7) / 8 }

// DataPointCount implements PageCodec.
func (c *GorillaCodec) DataPointCount() int { return c.count }

// LastTimestamp implements PageCodec.
func (c *GorillaCodec) LastTimestamp() int64 { return c.lastTS }

// Recycle implements PageCodec.
func (c *GorillaCodec) Recycle() {
	c.buf = nil
	c.writer = nil
	c.count = 0
}
