package codec

import (
	"math/bits"

	"github.com/relaydb/relaydb/internal/bitio"
)

// gorillaValueState tracks the leading/trailing zero window of the previous
// non-zero XOR, so a run of values whose meaningful bits fall inside the
// same window can skip re-sending the window bounds. Grounded on the
// teacher's NumericGorillaEncoder/Decoder block-reuse logic, reimplemented
// against a resumable bitio cursor instead of an internally accumulated
// buffer.
type gorillaValueState struct {
	leading   int
	trailing  int
	blockSize int
	valid     bool
}

// writeGorillaValue XOR-compresses valBits against prevBits and appends the
// result to w, updating state for the next call. The first value of a page
// must be written with w.WriteBits(valBits, 64) directly (see GorillaCodec
// and gorillaValueBitLen), since there is no previous value to XOR against.
func writeGorillaValue(w *bitio.Writer, state *gorillaValueState, prevBits, valBits uint64) bool {
	xor := prevBits ^ valBits
	if xor == 0 {
		return w.WriteBit(false)
	}

	if !w.WriteBit(true) {
		return false
	}

	leading, trailing, blockSize := gorillaWindow(xor)

	if state.valid && leading >= state.leading && trailing >= state.trailing {
		if !w.WriteBit(false) {
			return false
		}

		return w.WriteBits(xor>>state.trailing, state.blockSize)
	}

	if !w.WriteBit(true) {
		return false
	}
	if !w.WriteBits(uint64(leading), 5) { //nolint:gosec
		return false
	}
	if !w.WriteBits(uint64(blockSize-1), 6) { //nolint:gosec
		return false
	}
	if !w.WriteBits(xor>>trailing, blockSize) {
		return false
	}

	state.leading, state.trailing, state.blockSize, state.valid = leading, trailing, blockSize, true

	return true
}

// readGorillaValue reverses writeGorillaValue.
func readGorillaValue(r *bitio.Reader, state *gorillaValueState, prevBits uint64) (uint64, bool) {
	changed, ok := r.ReadBit()
	if !ok {
		return 0, false
	}
	if !changed {
		return prevBits, true
	}

	reuse, ok := r.ReadBit()
	if !ok {
		return 0, false
	}

	var trailing, blockSize int
	if reuse {
		if !state.valid {
			return 0, false
		}
		trailing, blockSize = state.trailing, state.blockSize
	} else {
		leadingBits, ok := r.ReadBits(5)
		if !ok {
			return 0, false
		}
		blockSizeBits, ok := r.ReadBits(6)
		if !ok {
			return 0, false
		}
		blockSize = int(blockSizeBits) + 1
		trailing = 64 - int(leadingBits) - blockSize
		if trailing < 0 || blockSize < 1 || blockSize > 64 {
			return 0, false
		}

		state.leading, state.trailing, state.blockSize, state.valid = int(leadingBits), trailing, blockSize, true
	}

	meaningful, ok := r.ReadBits(blockSize)
	if !ok {
		return 0, false
	}

	return prevBits ^ (meaningful << trailing), true
}

// gorillaWindow returns the Gorilla leading/trailing zero window for a
// non-zero XOR, clamping leading to 5 bits (0-31) as the wire format
// requires.
func gorillaWindow(xor uint64) (leading, trailing, blockSize int) {
	leading = bits.LeadingZeros64(xor)
	trailing = bits.TrailingZeros64(xor)
	if leading > 31 {
		adjust := leading - 31
		leading = 31
		trailing -= adjust
		if trailing < 0 {
			trailing = 0
		}
	}
	blockSize = 64 - leading - trailing

	return leading, trailing, blockSize
}
