package storage

import (
	"sync"

	"github.com/relaydb/relaydb/clock"
	"github.com/relaydb/relaydb/errs"
	"github.com/relaydb/relaydb/format"
	"github.com/relaydb/relaydb/mmapfile"
	"github.com/relaydb/relaydb/section"
)

// maxHeadersPerFile bounds a single HeaderFile's page_info_on_disk array.
// Once exhausted, new_header_index reports the array full and the Tsdb
// opens a fresh (HeaderFile, DataFile) pair rather than growing this one
// without bound.
const maxHeadersPerFile = 4096

// HeaderFile is a tsdb_header followed by a fixed-capacity array of
// page_info_on_disk records, identified by a 5-digit file index within a
// metric directory.
type HeaderFile struct {
	mu     sync.Mutex
	mf     *mmapfile.File
	header section.TsdbHeader
}

// CreateHeaderFile creates a new HeaderFile at path sized for
// maxHeadersPerFile page slots.
func CreateHeaderFile(path string, compressor format.PageEncoding, resolution clock.Resolution, pageSize uint16) (*HeaderFile, error) {
	total := section.TsdbHeaderSize + maxHeadersPerFile*section.PageInfoSize

	mf, err := mmapfile.Open(path, int64(total), false)
	if err != nil {
		return nil, err
	}

	h := section.NewTsdbHeader(compressor, resolution, pageSize)
	copy(mf.Bytes()[:section.TsdbHeaderSize], h.Bytes())

	return &HeaderFile{mf: mf, header: h}, nil
}

// OpenHeaderFile opens an existing HeaderFile at path.
func OpenHeaderFile(path string, readOnly bool) (*HeaderFile, error) {
	var (
		mf  *mmapfile.File
		err error
	)
	if readOnly {
		mf, err = mmapfile.OpenExisting(path, true)
	} else {
		mf, err = mmapfile.OpenExisting(path, false)
	}
	if err != nil {
		return nil, err
	}

	h, err := section.ParseTsdbHeader(mf.Bytes()[:section.TsdbHeaderSize])
	if err != nil {
		mf.Close()
		return nil, err
	}

	return &HeaderFile{mf: mf, header: h}, nil
}

// Close closes the underlying mapping.
func (f *HeaderFile) Close() error { return f.mf.Close() }

// Flush flushes the underlying mapping.
func (f *HeaderFile) Flush(sync bool) error { return f.mf.Flush(sync) }

// Header returns a copy of the current in-memory tsdb_header.
func (f *HeaderFile) Header() section.TsdbHeader {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.header
}

func (f *HeaderFile) syncHeaderLocked() {
	f.mf.Lock()
	copy(f.mf.Bytes()[:section.TsdbHeaderSize], f.header.Bytes())
	f.mf.Unlock()
}

// IsFull reports whether this HeaderFile's page array is exhausted.
func (f *HeaderFile) IsFull() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.header.HeaderIndex >= maxHeadersPerFile
}

// NewHeaderIndex reserves the next header slot, returning
// section.InvalidHeaderIndex if the array is full.
func (f *HeaderFile) NewHeaderIndex() (HeaderIndex, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.header.HeaderIndex >= maxHeadersPerFile {
		return section.InvalidHeaderIndex, nil
	}

	idx := HeaderIndex(f.header.HeaderIndex)
	f.header.HeaderIndex++
	f.syncHeaderLocked()

	return idx, nil
}

func (f *HeaderFile) slotOffset(idx HeaderIndex) int {
	return section.TsdbHeaderSize + int(idx)*section.PageInfoSize
}

// WritePageInfo stores info into the header array slot idx.
func (f *HeaderFile) WritePageInfo(idx HeaderIndex, info section.PageInfo) error {
	if int(idx) >= maxHeadersPerFile {
		return errs.New(errs.KindBadRequest, "storage.WritePageInfo", errs.ErrInvalidHeaderIndex)
	}

	off := f.slotOffset(idx)

	f.mf.Lock()
	defer f.mf.Unlock()

	copy(f.mf.Bytes()[off:off+section.PageInfoSize], info.Bytes())

	return nil
}

// ReadPageInfo loads the header array slot idx.
func (f *HeaderFile) ReadPageInfo(idx HeaderIndex) (section.PageInfo, error) {
	if int(idx) >= maxHeadersPerFile {
		return section.PageInfo{}, errs.New(errs.KindBadRequest, "storage.ReadPageInfo", errs.ErrInvalidHeaderIndex)
	}

	off := f.slotOffset(idx)

	f.mf.RLock()
	defer f.mf.RUnlock()

	return section.ParsePageInfo(f.mf.Bytes()[off : off+section.PageInfoSize])
}

// UpdateNext links the page at idx to its successor (nextFile, nextHeader),
// making the new page visible at the end of the chain.
func (f *HeaderFile) UpdateNext(idx HeaderIndex, nextFile FileIndex, nextHeader HeaderIndex) error {
	info, err := f.ReadPageInfo(idx)
	if err != nil {
		return err
	}
	info.NextFile = uint16(nextFile)
	info.NextHeader = uint16(nextHeader)

	return f.WritePageInfo(idx, info)
}

// UpdateRange updates the in-memory and on-disk tsdb_header's page_index,
// actual_page_count, and time bounds after a page append.
func (f *HeaderFile) UpdateRange(pageIndex uint32, tstampFrom, tstampTo uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.header.PageIndex = pageIndex + 1
	f.header.PageCount = f.header.PageIndex
	f.header.ActualPageCount = f.header.PageIndex
	if f.header.StartTstamp == 0 || uint64(tstampFrom) < f.header.StartTstamp {
		f.header.StartTstamp = uint64(tstampFrom)
	}
	if uint64(tstampTo) > f.header.EndTstamp {
		f.header.EndTstamp = uint64(tstampTo)
	}

	f.syncHeaderLocked()
}

// MarkCompacted sets the header's compacted flag.
func (f *HeaderFile) MarkCompacted() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.header.Compacted = true
	f.syncHeaderLocked()
}
