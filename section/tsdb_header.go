package section

import (
	"github.com/relaydb/relaydb/clock"
	"github.com/relaydb/relaydb/endian"
	"github.com/relaydb/relaydb/errs"
	"github.com/relaydb/relaydb/format"
)

// TsdbHeader is the fixed-size record at the start of every HeaderFile,
// describing one (HeaderFile, DataFile) pair within a metric directory.
type TsdbHeader struct {
	MajorVersion      uint8
	MinorVersion      uint16
	Compressor        format.PageEncoding // bits 0-1 of on-disk flags
	Resolution        clock.Resolution    // bit 6 of on-disk flags
	Compacted         bool                // bit 7 of on-disk flags
	PageCount         uint32
	HeaderIndex       uint32 // next free header slot
	PageIndex         uint32 // next free page
	StartTstamp       uint64
	EndTstamp         uint64
	ActualPageCount   uint32 // may shrink after compaction
	PageSize          uint16
}

// NewTsdbHeader creates a header for a freshly created (HeaderFile,
// DataFile) pair covering no pages yet.
func NewTsdbHeader(compressor format.PageEncoding, resolution clock.Resolution, pageSize uint16) TsdbHeader {
	return TsdbHeader{
		MajorVersion: MajorVersion,
		MinorVersion: MinorVersion,
		Compressor:   compressor,
		Resolution:   resolution,
		PageSize:     pageSize,
	}
}

func (h TsdbHeader) flagsByte() byte {
	var b byte
	b |= byte(h.Compressor) & headerFlagCompressorMask
	if h.Resolution == clock.Millisecond {
		b |= headerFlagMillisecond
	}
	if h.Compacted {
		b |= headerFlagCompacted
	}

	return b
}

func parseHeaderFlags(h *TsdbHeader, b byte) {
	h.Compressor = format.PageEncoding(b & headerFlagCompressorMask)
	if b&headerFlagMillisecond != 0 {
		h.Resolution = clock.Millisecond
	} else {
		h.Resolution = clock.Second
	}
	h.Compacted = b&headerFlagCompacted != 0
}

// Bytes serializes h into a new TsdbHeaderSize-byte little-endian buffer.
func (h TsdbHeader) Bytes() []byte {
	b := make([]byte, TsdbHeaderSize)
	engine := endian.GetLittleEndianEngine()

	b[0] = h.MajorVersion
	engine.PutUint16(b[1:3], h.MinorVersion)
	b[3] = h.flagsByte()
	engine.PutUint32(b[4:8], h.PageCount)
	engine.PutUint32(b[8:12], h.HeaderIndex)
	engine.PutUint32(b[12:16], h.PageIndex)
	engine.PutUint64(b[16:24], h.StartTstamp)
	engine.PutUint64(b[24:32], h.EndTstamp)
	engine.PutUint32(b[32:36], h.ActualPageCount)
	engine.PutUint16(b[36:38], h.PageSize)

	return b
}

// ParseTsdbHeader parses a TsdbHeader from the first TsdbHeaderSize bytes of
// data.
func ParseTsdbHeader(data []byte) (TsdbHeader, error) {
	if len(data) < TsdbHeaderSize {
		return TsdbHeader{}, errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()
	var h TsdbHeader
	h.MajorVersion = data[0]
	h.MinorVersion = engine.Uint16(data[1:3])
	parseHeaderFlags(&h, data[3])
	h.PageCount = engine.Uint32(data[4:8])
	h.HeaderIndex = engine.Uint32(data[8:12])
	h.PageIndex = engine.Uint32(data[12:16])
	h.StartTstamp = engine.Uint64(data[16:24])
	h.EndTstamp = engine.Uint64(data[24:32])
	h.ActualPageCount = engine.Uint32(data[32:36])
	h.PageSize = engine.Uint16(data[36:38])

	if h.MajorVersion != MajorVersion {
		return TsdbHeader{}, errs.ErrInvalidHeaderFlags
	}
	if !h.Compressor.Valid() {
		return TsdbHeader{}, errs.ErrInvalidHeaderFlags
	}

	return h, nil
}
