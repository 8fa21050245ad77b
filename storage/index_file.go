package storage

import (
	"github.com/relaydb/relaydb/mmapfile"
	"github.com/relaydb/relaydb/section"
)

// indexChunkEntries is the number of index_entry slots an IndexFile grows
// by at a time.
const indexChunkEntries = 4096

// IndexFile is the dense, TimeSeriesID-indexed array of index_entry
// records for one Tsdb. Writes are single-writer per TS from the ingest
// path; reads are unsynchronized beyond the embedded mmap lock and may
// observe a stale entry, which callers handle by re-validating the chain
// they walk from it.
type IndexFile struct {
	mf *mmapfile.File
}

// OpenIndexFile opens or creates the IndexFile at path with room for at
// least one chunk of entries.
func OpenIndexFile(path string, readOnly bool) (*IndexFile, error) {
	if readOnly {
		mf, err := mmapfile.OpenExisting(path, true)
		if err != nil {
			return nil, err
		}

		return &IndexFile{mf: mf}, nil
	}

	mf, err := mmapfile.Open(path, indexChunkEntries*section.IndexEntrySize, false)
	if err != nil {
		return nil, err
	}

	return &IndexFile{mf: mf}, nil
}

// Close closes the underlying mapping.
func (f *IndexFile) Close() error { return f.mf.Close() }

// Flush flushes the underlying mapping.
func (f *IndexFile) Flush(sync bool) error { return f.mf.Flush(sync) }

// Count returns the number of entry slots currently allocated.
func (f *IndexFile) Count() int {
	f.mf.RLock()
	defer f.mf.RUnlock()

	return len(f.mf.Bytes()) / section.IndexEntrySize
}

// ensureCapacity grows the file by whole chunks until it can hold id.
// Callers must hold the writer lock.
func (f *IndexFile) ensureCapacity(id TimeSeriesID) error {
	need := (int(id) + 1) * section.IndexEntrySize
	cur := len(f.mf.Bytes())
	if need <= cur {
		return nil
	}

	chunks := (need-cur)/(indexChunkEntries*section.IndexEntrySize) + 1
	newLen := cur + chunks*indexChunkEntries*section.IndexEntrySize

	if err := f.mf.Resize(int64(newLen)); err != nil {
		return err
	}

	blank := section.NewIndexEntry().Bytes()
	data := f.mf.Bytes()
	for off := cur; off < newLen; off += section.IndexEntrySize {
		copy(data[off:off+section.IndexEntrySize], blank)
	}

	return nil
}

// Get returns the entry for id, or a fresh invalid entry if id has never
// been written.
func (f *IndexFile) Get(id TimeSeriesID) (section.IndexEntry, error) {
	f.mf.RLock()
	defer f.mf.RUnlock()

	off := int(id) * section.IndexEntrySize
	if off+section.IndexEntrySize > len(f.mf.Bytes()) {
		return section.NewIndexEntry(), nil
	}

	return section.ParseIndexEntry(f.mf.Bytes()[off : off+section.IndexEntrySize])
}

func (f *IndexFile) write(id TimeSeriesID, e section.IndexEntry) error {
	f.mf.Lock()
	defer f.mf.Unlock()

	if err := f.ensureCapacity(id); err != nil {
		return err
	}

	off := int(id) * section.IndexEntrySize
	copy(f.mf.Bytes()[off:off+section.IndexEntrySize], e.Bytes())

	return nil
}

// SetIndices records the first page-chain head for id: the start of its
// page chain within this Tsdb.
func (f *IndexFile) SetIndices(id TimeSeriesID, file FileIndex, header HeaderIndex) error {
	e, err := f.Get(id)
	if err != nil {
		return err
	}
	e.File = uint16(file)
	e.Header = uint16(header)

	return f.write(id, e)
}

// SetIndices2 records the midpoint page-chain head for id, seeding queries
// whose range starts past the Tsdb's time midpoint.
func (f *IndexFile) SetIndices2(id TimeSeriesID, file FileIndex, header HeaderIndex) error {
	e, err := f.Get(id)
	if err != nil {
		return err
	}
	e.File2 = uint16(file)
	e.Header2 = uint16(header)

	return f.write(id, e)
}

// SetOutOfOrder marks id as having received an out-of-order point within
// this Tsdb, a sticky flag that disables rollup for the series here.
func (f *IndexFile) SetOutOfOrder(id TimeSeriesID) error {
	e, err := f.Get(id)
	if err != nil {
		return err
	}
	if e.OutOfOrder {
		return nil
	}
	e.OutOfOrder = true

	return f.write(id, e)
}

// SetRollupIndex records the rollup header-array slot for id.
func (f *IndexFile) SetRollupIndex(id TimeSeriesID, rollupIndex uint32) error {
	e, err := f.Get(id)
	if err != nil {
		return err
	}
	e.RollupIndex = rollupIndex

	return f.write(id, e)
}
