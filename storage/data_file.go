package storage

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/relaydb/relaydb/errs"
	"github.com/relaydb/relaydb/mmapfile"
)

// dataFileGrowPages is how many page-sized slots a DataFile preallocates
// at a time, amortizing mmap resize calls across many page appends.
const dataFileGrowPages = 64

// DataFile is the sequential array of fixed-size pages backing one
// HeaderFile's page_info_on_disk entries; page i lives at byte offset
// i*pageSize.
type DataFile struct {
	mu            sync.Mutex
	mf            *mmapfile.File
	pageSize      uint16
	nextPageIndex uint32
	lastRead      atomic.Int64
	lastWrite     atomic.Int64
}

// CreateDataFile creates a new DataFile at path with room for an initial
// batch of pages of size pageSize.
func CreateDataFile(path string, pageSize uint16) (*DataFile, error) {
	mf, err := mmapfile.Open(path, int64(pageSize)*dataFileGrowPages, false)
	if err != nil {
		return nil, err
	}

	return &DataFile{mf: mf, pageSize: pageSize}, nil
}

// OpenDataFile reopens an existing DataFile, resuming the page cursor at
// nextPageIndex (typically the owning HeaderFile's tsdb_header.page_index).
func OpenDataFile(path string, pageSize uint16, nextPageIndex uint32, readOnly bool) (*DataFile, error) {
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

	return &DataFile{mf: mf, pageSize: pageSize, nextPageIndex: nextPageIndex}, nil
}

// Close closes the underlying mapping.
func (f *DataFile) Close() error { return f.mf.Close() }

// Flush flushes the underlying mapping.
func (f *DataFile) Flush(sync bool) error { return f.mf.Flush(sync) }

// PageSize returns the fixed page size this DataFile was created with.
func (f *DataFile) PageSize() uint16 { return f.pageSize }

// AllocatePage reserves the next page slot, growing the file in
// dataFileGrowPages-page batches if needed, and returns its index along
// with a direct slice into the mapped page bytes for a codec to write
// into. The returned slice is only valid until the next AllocatePage call
// on this DataFile (which may remap the file).
func (f *DataFile) AllocatePage() (uint32, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.nextPageIndex
	need := (int64(idx) + 1) * int64(f.pageSize)

	f.mf.Lock()
	if int64(f.mf.Len()) < need {
		batches := (need-int64(f.mf.Len()))/(int64(f.pageSize)*dataFileGrowPages) + 1
		newLen := int64(f.mf.Len()) + batches*int64(f.pageSize)*dataFileGrowPages
		if err := f.mf.Resize(newLen); err != nil {
			f.mf.Unlock()
			return 0, nil, err
		}
	}
	data := f.mf.Bytes()
	f.mf.Unlock()

	f.nextPageIndex = idx + 1
	f.lastWrite.Store(time.Now().UnixNano())

	off := int64(idx) * int64(f.pageSize)

	return idx, data[off : off+int64(f.pageSize)], nil
}

// Page returns the byte window for an already-allocated page, for
// restoring or rebasing a codec against an existing page.
func (f *DataFile) Page(idx uint32) ([]byte, error) {
	f.mf.RLock()
	defer f.mf.RUnlock()

	off := int64(idx) * int64(f.pageSize)
	if off+int64(f.pageSize) > int64(len(f.mf.Bytes())) {
		return nil, errs.New(errs.KindNotFound, "storage.Page", errs.ErrNotFound)
	}
	f.lastRead.Store(time.Now().UnixNano())

	data := f.mf.Bytes()

	return data[off : off+int64(f.pageSize)], nil
}

// LastRead returns the unix-nano timestamp of the last Page call.
func (f *DataFile) LastRead() int64 { return f.lastRead.Load() }

// LastWrite returns the unix-nano timestamp of the last AllocatePage call.
func (f *DataFile) LastWrite() int64 { return f.lastWrite.Load() }
