package section

import (
	"github.com/relaydb/relaydb/endian"
	"github.com/relaydb/relaydb/errs"
	"github.com/relaydb/relaydb/internal/bitio"
)

// PageInfo is one page_info_on_disk record: the in-header-file metadata for
// a single data page, and the node of a time series' singly linked page
// chain within one Tsdb. Two trailing bytes are reserved for forward
// compatibility (the format documents the record as 26 bytes; the fields
// below account for 24).
type PageInfo struct {
	Offset     uint16 // byte offset of this page within the DataFile
	Size       uint16 // page size in bytes
	Cursor     uint16 // bitio.Position.Offset, the codec's resumable cursor
	Start      uint8  // bitio.Position.Start
	Full       bool   // pageFlagFull
	OutOfOrder bool   // pageFlagOutOfOrder
	PageIndex  uint32
	TstampFrom uint32
	TstampTo   uint32
	NextFile   uint16 // InvalidFileIndex terminates the chain
	NextHeader uint16 // InvalidHeaderIndex terminates the chain
}

// NewPageInfo creates a PageInfo for a freshly allocated page with no
// successor yet.
func NewPageInfo(pageIndex uint32, offset, size uint16) PageInfo {
	return PageInfo{
		Offset:     offset,
		Size:       size,
		PageIndex:  pageIndex,
		NextFile:   InvalidFileIndex,
		NextHeader: InvalidHeaderIndex,
	}
}

// Position returns the codec cursor stored in this page's Cursor/Start
// fields.
func (p PageInfo) Position() bitio.Position {
	return bitio.Position{Offset: p.Cursor, Start: p.Start}
}

// SetPosition stores pos into the page's Cursor/Start fields.
func (p *PageInfo) SetPosition(pos bitio.Position) {
	p.Cursor = pos.Offset
	p.Start = pos.Start
}

// HasNext reports whether this page links to a successor in the chain.
func (p PageInfo) HasNext() bool {
	return p.NextFile != InvalidFileIndex && p.NextHeader != InvalidHeaderIndex
}

func (p PageInfo) flagsByte() byte {
	var b byte
	if p.Full {
		b |= pageFlagFull
	}
	if p.OutOfOrder {
		b |= pageFlagOutOfOrder
	}

	return b
}

// Bytes serializes p into a new PageInfoSize-byte little-endian buffer.
func (p PageInfo) Bytes() []byte {
	b := make([]byte, PageInfoSize)
	engine := endian.GetLittleEndianEngine()

	engine.PutUint16(b[0:2], p.Offset)
	engine.PutUint16(b[2:4], p.Size)
	engine.PutUint16(b[4:6], p.Cursor)
	b[6] = p.Start
	b[7] = p.flagsByte()
	engine.PutUint32(b[8:12], p.PageIndex)
	engine.PutUint32(b[12:16], p.TstampFrom)
	engine.PutUint32(b[16:20], p.TstampTo)
	engine.PutUint16(b[20:22], p.NextFile)
	engine.PutUint16(b[22:24], p.NextHeader)
	// b[24:26] reserved, left zero.

	return b
}

// ParsePageInfo parses a PageInfo from the first PageInfoSize bytes of data.
func ParsePageInfo(data []byte) (PageInfo, error) {
	if len(data) < PageInfoSize {
		return PageInfo{}, errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()
	var p PageInfo
	p.Offset = engine.Uint16(data[0:2])
	p.Size = engine.Uint16(data[2:4])
	p.Cursor = engine.Uint16(data[4:6])
	p.Start = data[6]
	flags := data[7]
	p.Full = flags&pageFlagFull != 0
	p.OutOfOrder = flags&pageFlagOutOfOrder != 0
	p.PageIndex = engine.Uint32(data[8:12])
	p.TstampFrom = engine.Uint32(data[12:16])
	p.TstampTo = engine.Uint32(data[16:20])
	p.NextFile = engine.Uint16(data[20:22])
	p.NextHeader = engine.Uint16(data[22:24])

	return p, nil
}
