package section

import (
	"github.com/relaydb/relaydb/endian"
	"github.com/relaydb/relaydb/errs"
)

// IndexEntry is one index_entry record in an IndexFile: the page-chain
// entry points for a single TimeSeriesId within one Tsdb. The "second"
// pair seeds a query whose range starts past the Tsdb's time midpoint,
// letting it skip the first half of the chain.
type IndexEntry struct {
	OutOfOrder  bool // indexFlagOutOfOrder
	File        uint16
	Header      uint16
	File2       uint16
	Header2     uint16
	RollupIndex uint32
}

// NewIndexEntry returns an entry with both chain heads and the rollup
// pointer set to their invalid sentinels, the state of every IndexFile slot
// before a TS first writes to a Tsdb.
func NewIndexEntry() IndexEntry {
	return IndexEntry{
		File:        InvalidFileIndex,
		Header:      InvalidHeaderIndex,
		File2:       InvalidFileIndex,
		Header2:     InvalidHeaderIndex,
		RollupIndex: InvalidRollupIndex,
	}
}

// HasFirst reports whether the first chain head has been set.
func (e IndexEntry) HasFirst() bool {
	return e.File != InvalidFileIndex && e.Header != InvalidHeaderIndex
}

// HasSecond reports whether the midpoint chain head has been set.
func (e IndexEntry) HasSecond() bool {
	return e.File2 != InvalidFileIndex && e.Header2 != InvalidHeaderIndex
}

func (e IndexEntry) flagsByte() byte {
	if e.OutOfOrder {
		return indexFlagOutOfOrder
	}

	return 0
}

// Bytes serializes e into a new IndexEntrySize-byte little-endian buffer.
func (e IndexEntry) Bytes() []byte {
	b := make([]byte, IndexEntrySize)
	engine := endian.GetLittleEndianEngine()

	b[0] = e.flagsByte()
	engine.PutUint16(b[1:3], e.File)
	engine.PutUint16(b[3:5], e.Header)
	engine.PutUint16(b[5:7], e.File2)
	engine.PutUint16(b[7:9], e.Header2)
	engine.PutUint32(b[9:13], e.RollupIndex)

	return b
}

// ParseIndexEntry parses an IndexEntry from the first IndexEntrySize bytes
// of data.
func ParseIndexEntry(data []byte) (IndexEntry, error) {
	if len(data) < IndexEntrySize {
		return IndexEntry{}, errs.ErrInvalidIndexEntrySize
	}

	engine := endian.GetLittleEndianEngine()
	var e IndexEntry
	e.OutOfOrder = data[0]&indexFlagOutOfOrder != 0
	e.File = engine.Uint16(data[1:3])
	e.Header = engine.Uint16(data[3:5])
	e.File2 = engine.Uint16(data[5:7])
	e.Header2 = engine.Uint16(data[7:9])
	e.RollupIndex = engine.Uint32(data[9:13])

	return e, nil
}
