package codec

import "github.com/relaydb/relaydb/internal/bitio"

// writeBucketed bit-packs a signed delta into one of five fixed-width
// buckets selected by the magnitude of its zigzag encoding, the same
// "small deltas cost fewer bits" idea Facebook's Gorilla paper applies to
// delta-of-delta timestamps. V2Gorilla and V3GorillaInt both use it: the
// former for every delta-of-delta timestamp, the latter also for
// consecutive-integer value deltas.
//
// Bucket layout (prefix -> payload width, chosen by zigzag(v)'s range):
//
//	0            -> (none)    v == 0
//	10           -> 7 bits    zigzag(v) < 1<<7
//	110          -> 9 bits    zigzag(v) < 1<<9
//	1110         -> 12 bits   zigzag(v) < 1<<12
//	1111         -> 64 bits   otherwise
func writeBucketed(w *bitio.Writer, v int64) bool {
	zz := zigzagEncode(v)

	switch {
	case zz == 0:
		return w.WriteBit(false)
	case zz < 1<<7:
		return w.WriteBits(0b10, 2) && w.WriteBits(zz, 7)
	case zz < 1<<9:
		return w.WriteBits(0b110, 3) && w.WriteBits(zz, 9)
	case zz < 1<<12:
		return w.WriteBits(0b1110, 4) && w.WriteBits(zz, 12)
	default:
		return w.WriteBits(0b1111, 4) && w.WriteBits(zz, 64)
	}
}

// readBucketed reverses writeBucketed.
func readBucketed(r *bitio.Reader) (int64, bool) {
	bit, ok := r.ReadBit()
	if !ok {
		return 0, false
	}
	if !bit {
		return 0, true
	}

	bit, ok = r.ReadBit()
	if !ok {
		return 0, false
	}
	if !bit {
		zz, ok := r.ReadBits(7)
		if !ok {
			return 0, false
		}

		return zigzagDecode(zz), true
	}

	bit, ok = r.ReadBit()
	if !ok {
		return 0, false
	}
	if !bit {
		zz, ok := r.ReadBits(9)
		if !ok {
			return 0, false
		}

		return zigzagDecode(zz), true
	}

	bit, ok = r.ReadBit()
	if !ok {
		return 0, false
	}
	if !bit {
		zz, ok := r.ReadBits(12)
		if !ok {
			return 0, false
		}

		return zigzagDecode(zz), true
	}

	zz, ok := r.ReadBits(64)
	if !ok {
		return 0, false
	}

	return zigzagDecode(zz), true
}

// copyBits transfers exactly nbits bits from src to dst, chunked to stay
// within a single uint64 WriteBits/ReadBits call. Used to commit a point
// staged in a scratch buffer into the page's real bit cursor once its exact
// length is known to fit.
func copyBits(dst *bitio.Writer, src *bitio.Reader, nbits int) bool {
	for nbits > 0 {
		chunk := nbits
		if chunk > 32 {
			chunk = 32
		}
		v, ok := src.ReadBits(chunk)
		if !ok || !dst.WriteBits(v, chunk) {
			return false
		}
		nbits -= chunk
	}

	return true
}
