// Package codec implements the four page encodings a Tsdb data file can use
// to compress a single time series' (timestamp, value) pairs within one
// fixed-size page: V0Raw, V1DeltaXOR, V2Gorilla and V3GorillaInt.
//
// Every codec operates directly on an external byte slice -- typically a
// window into a memory-mapped DataFile page -- rather than an internally
// owned buffer, and exposes a resumable bitio.Position so the writer of a
// page can suspend mid-byte when the page fills and later verify or replay
// exactly where it left off. This mirrors the teacher corpus's columnar
// encoders, adapted from whole-blob buffers to single fixed-size pages.
package codec

import (
	"math"

	"github.com/relaydb/relaydb/endian"
	"github.com/relaydb/relaydb/errs"
	"github.com/relaydb/relaydb/format"
	"github.com/relaydb/relaydb/internal/bitio"
)

// DataPointContainer accumulates decoded (timestamp, value) pairs from a
// Restore call. It is reused across pages by callers (series.PageInMemory,
// query.Engine) to avoid a slice allocation per page decode.
type DataPointContainer struct {
	Timestamps []int64
	Values     []float64
}

// Reset empties the container while retaining its backing arrays.
func (c *DataPointContainer) Reset() {
	c.Timestamps = c.Timestamps[:0]
	c.Values = c.Values[:0]
}

// Append records one decoded data point.
func (c *DataPointContainer) Append(ts int64, val float64) {
	c.Timestamps = append(c.Timestamps, ts)
	c.Values = append(c.Values, val)
}

// Len reports how many points the container currently holds.
func (c *DataPointContainer) Len() int { return len(c.Timestamps) }

// PageCodec compresses and decompresses the (timestamp, value) stream of a
// single time series within a single fixed-size page.
//
// A codec's lifecycle is: Init against a freshly zeroed page region, then
// repeated Compress calls until either the caller stops or Compress reports
// !ok because the page is full, then Save to persist the resumable cursor
// into the page header. A later process reopens the page by constructing a
// zero-valued codec of the matching PageEncoding and calling Restore.
type PageCodec interface {
	// Init prepares the codec to compress into buf, a zeroed region of a
	// page, starting the series at startTS.
	Init(startTS int64, buf []byte) error

	// Compress appends one data point. It reports false without modifying
	// codec state if buf has no room left for the point; the caller must
	// start a new page and retry there.
	Compress(ts int64, val float64) (ok bool)

	// Save returns the resumable bit cursor marking the end of the data
	// written so far, for persistence in the page's PageInfo.
	Save() bitio.Position

	// Restore decodes every point between the start of buf and pos into
	// dst, appending to whatever dst already holds. external, when
	// non-nil, is a page used to resolve cross-page state the teacher's
	// whole-blob codecs never needed (unused by the fixed-size page
	// codecs below; kept for forward compatibility with multi-page
	// series spanning a chain).
	Restore(dst *DataPointContainer, pos bitio.Position, external []byte) error

	// Rebase repoints the codec at a new backing slice after an mmap
	// remap moved the page's base address, without losing cursor state.
	Rebase(buf []byte)

	// IsFull reports whether the codec believes no further point can fit.
	IsFull() bool

	// IsEmpty reports whether no point has been compressed yet.
	IsEmpty() bool

	// Size returns the number of bytes consumed by the compressed stream
	// so far.
	Size() int

	// DataPointCount returns the number of points compressed so far.
	DataPointCount() int

	// LastTimestamp returns the most recently compressed timestamp, or 0
	// if the codec is empty.
	LastTimestamp() int64

	// Recycle releases any pooled scratch state the codec borrowed,
	// making the codec unusable until the next Init.
	Recycle()
}

// New constructs a zero-valued PageCodec for the given encoding, ready for
// Init or Restore.
func New(enc format.PageEncoding) (PageCodec, error) {
	switch enc {
	case format.V0Raw:
		return &RawCodec{}, nil
	case format.V1DeltaXOR:
		return &DeltaXORCodec{}, nil
	case format.V2Gorilla:
		return &GorillaCodec{useIntFastPath: false}, nil
	case format.V3GorillaInt:
		return &GorillaCodec{useIntFastPath: true}, nil
	default:
		return nil, errs.New(errs.KindBadRequest, "codec.New", errs.ErrInvalidHeaderFlags)
	}
}

// isIntegral reports whether v has no fractional component and fits losslessly
// in an int64, the precondition V3GorillaInt checks before taking its integer
// fast path.
func isIntegral(v float64) (int64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	i := int64(v)
	if float64(i) != v {
		return 0, false
	}

	return i, true
}

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// littleEndianEngine is the engine every page codec marshals fixed-width
// fields with; page flags record this choice via endian.ResolveEngine so a
// page written on a big-endian host can still be parsed correctly.
var littleEndianEngine = endian.GetLittleEndianEngine()
