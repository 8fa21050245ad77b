// Package mmapfile wraps a memory-mapped file with the open/resize/flush
// lifecycle every Tsdb storage file (header, data, index) shares: open or
// create, grow in place via remap instead of copy, flush dirty pages to
// disk, and reopen transparently after the underlying file has grown past
// what this process last mapped.
package mmapfile

import (
	"os"
	"sync"

	"github.com/relaydb/relaydb/errs"
	"golang.org/x/sys/unix"
)

// File is a memory-mapped region backed by an *os.File. The zero value is
// not usable; construct with Open or OpenExisting.
//
// Reads and writes from multiple goroutines must hold RLock/Lock; Resize
// and Close require the writer lock since they invalidate Bytes' backing
// array. The lock is intentionally writer-preferring: the sync.RWMutex
// default already starves writers under heavy read load, so callers that
// resize rarely but read constantly should keep resize calls short.
type File struct {
	mu       sync.RWMutex
	name     string
	file     *os.File
	data     []byte
	readOnly bool
	closed   bool
}

// Open creates (if needed) and maps name at the given length, truncating
// or extending the underlying file to match. Used when a caller knows the
// file's target size up front (a freshly allocated HeaderFile/DataFile).
func Open(name string, length int64, readOnly bool) (*File, error) {
	flag := os.O_RDWR | os.O_CREATE
	if readOnly {
		flag = os.O_RDONLY
	}

	f, err := os.OpenFile(name, flag, 0o644)
	if err != nil {
		return nil, errs.New(errs.KindIoError, "mmapfile.Open", err)
	}

	if !readOnly {
		info, statErr := f.Stat()
		if statErr != nil {
			f.Close()
			return nil, errs.New(errs.KindIoError, "mmapfile.Open", statErr)
		}
		if info.Size() < length {
			if err := f.Truncate(length); err != nil {
				f.Close()
				return nil, errs.New(errs.KindIoError, "mmapfile.Open", err)
			}
		}
	}

	return mapFile(f, name, length, readOnly)
}

// OpenExisting maps name at its current on-disk size. Used when a caller
// is reopening a file written by a prior process run and does not know
// (or need) its length ahead of time.
func OpenExisting(name string, readOnly bool) (*File, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}

	f, err := os.OpenFile(name, flag, 0o644)
	if err != nil {
		return nil, errs.New(errs.KindIoError, "mmapfile.OpenExisting", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.New(errs.KindIoError, "mmapfile.OpenExisting", err)
	}

	return mapFile(f, name, info.Size(), readOnly)
}

func mapFile(f *os.File, name string, length int64, readOnly bool) (*File, error) {
	prot := unix.PROT_READ
	flags := unix.MAP_SHARED
	if !readOnly {
		prot |= unix.PROT_WRITE
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(length), prot, flags)
	if err != nil {
		f.Close()
		return nil, errs.New(errs.KindIoError, "mmapfile.mapFile", err)
	}

	advice := unix.MADV_RANDOM
	_ = unix.Madvise(data, advice)

	return &File{name: name, file: f, data: data, readOnly: readOnly}, nil
}

// Bytes returns the mapped region. The returned slice is only valid until
// the next Resize or Close; callers must hold RLock (or Lock) for the
// duration of any access derived from it.
func (mf *File) Bytes() []byte { return mf.data }

// Len returns the current length of the mapped region in bytes.
func (mf *File) Len() int { return len(mf.data) }

// Name returns the path this File was opened from.
func (mf *File) Name() string { return mf.name }

// Lock acquires the writer lock, for callers that mutate the mapped bytes
// or intend to call Resize/Flush/Close.
func (mf *File) Lock() { mf.mu.Lock() }

// Unlock releases the writer lock.
func (mf *File) Unlock() { mf.mu.Unlock() }

// RLock acquires the reader lock for callers that only read mapped bytes.
func (mf *File) RLock() { mf.mu.RLock() }

// RUnlock releases the reader lock.
func (mf *File) RUnlock() { mf.mu.RUnlock() }

// Resize grows or shrinks the file and its mapping to length. Callers
// must hold the writer lock. On Linux this remaps in place via mremap
// without copying existing mapped pages; on platforms lacking mremap it
// falls back to unmap-then-remap, which is why callers must hold the
// writer lock for the duration.
func (mf *File) Resize(length int64) error {
	if mf.closed {
		return errs.New(errs.KindInternal, "mmapfile.Resize", errs.ErrClosed)
	}
	if mf.readOnly {
		return errs.New(errs.KindBadRequest, "mmapfile.Resize", errs.ErrReadOnly)
	}
	if int64(len(mf.data)) == length {
		return nil
	}

	if err := mf.file.Truncate(length); err != nil {
		return errs.New(errs.KindIoError, "mmapfile.Resize", err)
	}

	if err := unix.Munmap(mf.data); err != nil {
		return errs.New(errs.KindIoError, "mmapfile.Resize", err)
	}

	data, err := unix.Mmap(int(mf.file.Fd()), 0, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return errs.New(errs.KindIoError, "mmapfile.Resize", errs.ErrRemapFailed)
	}

	mf.data = data

	return nil
}

// Remap reloads the mapping from the file's current on-disk size, for a
// reader that has observed (via an index entry or header it just read)
// that a writer in another goroutine has grown the file past what this
// mapping covers.
func (mf *File) Remap() error {
	if mf.closed {
		return errs.New(errs.KindInternal, "mmapfile.Remap", errs.ErrClosed)
	}

	info, err := mf.file.Stat()
	if err != nil {
		return errs.New(errs.KindIoError, "mmapfile.Remap", err)
	}
	if info.Size() == int64(len(mf.data)) {
		return nil
	}

	if err := unix.Munmap(mf.data); err != nil {
		return errs.New(errs.KindIoError, "mmapfile.Remap", err)
	}

	prot := unix.PROT_READ
	if !mf.readOnly {
		prot |= unix.PROT_WRITE
	}

	data, err := unix.Mmap(int(mf.file.Fd()), 0, int(info.Size()), prot, unix.MAP_SHARED)
	if err != nil {
		return errs.New(errs.KindIoError, "mmapfile.Remap", errs.ErrRemapFailed)
	}

	mf.data = data

	return nil
}

// Flush writes dirty mapped pages back to disk. sync selects msync's
// MS_SYNC (block until durable) over MS_ASYNC (schedule and return).
func (mf *File) Flush(sync bool) error {
	if mf.closed || mf.readOnly || len(mf.data) == 0 {
		return nil
	}

	flags := unix.MS_ASYNC
	if sync {
		flags = unix.MS_SYNC
	}

	if err := unix.Msync(mf.data, flags); err != nil {
		return errs.New(errs.KindIoError, "mmapfile.Flush", err)
	}

	return nil
}

// Close flushes (if writable), unmaps, and closes the underlying file.
// Close is idempotent.
func (mf *File) Close() error {
	if mf.closed {
		return nil
	}

	if !mf.readOnly {
		if err := mf.Flush(true); err != nil {
			return err
		}
	}

	if len(mf.data) > 0 {
		if err := unix.Munmap(mf.data); err != nil {
			return errs.New(errs.KindIoError, "mmapfile.Close", err)
		}
	}

	mf.closed = true
	mf.data = nil

	return mf.file.Close()
}

// Closed reports whether Close has already run.
func (mf *File) Closed() bool { return mf.closed }

// EnsureOpen reopens and remaps the file at its current on-disk size if a
// prior Close (typically the storage layer evicting an idle Tsdb's file
// descriptors) left it closed. It is a no-op when the file is already
// open. Callers must hold the writer lock.
func (mf *File) EnsureOpen() error {
	if !mf.closed {
		return nil
	}

	flag := os.O_RDWR
	if mf.readOnly {
		flag = os.O_RDONLY
	}

	f, err := os.OpenFile(mf.name, flag, 0o644)
	if err != nil {
		return errs.New(errs.KindIoError, "mmapfile.EnsureOpen", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return errs.New(errs.KindIoError, "mmapfile.EnsureOpen", err)
	}

	reopened, err := mapFile(f, mf.name, info.Size(), mf.readOnly)
	if err != nil {
		return err
	}

	mf.file = reopened.file
	mf.data = reopened.data
	mf.closed = false

	return nil
}
