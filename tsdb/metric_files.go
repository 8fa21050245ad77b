package tsdb

import (
	"os"
	"sync"

	"github.com/relaydb/relaydb/clock"
	"github.com/relaydb/relaydb/errs"
	"github.com/relaydb/relaydb/format"
	"github.com/relaydb/relaydb/storage"
)

// fileSet is one (HeaderFile, DataFile) pair within a metric directory.
type fileSet struct {
	idx    storage.FileIndex
	header *storage.HeaderFile
	data   *storage.DataFile
}

// metricFiles owns every (HeaderFile, DataFile) pair a Tsdb has opened for
// one metric, in file-index order. Pairs are only ever appended; a full
// header array causes a new pair to be opened rather than reusing one.
type metricFiles struct {
	mu       sync.Mutex
	dir      string
	sets     []*fileSet
	pageSize uint16
	compressor format.PageEncoding
	resolution clock.Resolution
}

func (mf *metricFiles) current() *fileSet {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	if len(mf.sets) == 0 {
		return nil
	}

	return mf.sets[len(mf.sets)-1]
}

func (mf *metricFiles) createNext() (*fileSet, error) {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	if err := os.MkdirAll(mf.dir, 0o755); err != nil {
		return nil, errs.New(errs.KindIoError, "tsdb.metricFiles.createNext", err)
	}

	idx := storage.FileIndex(len(mf.sets))

	header, err := storage.CreateHeaderFile(storage.HeaderPath(mf.dir, idx), mf.compressor, mf.resolution, mf.pageSize)
	if err != nil {
		return nil, err
	}

	data, err := storage.CreateDataFile(storage.DataPath(mf.dir, idx), mf.pageSize)
	if err != nil {
		header.Close()
		return nil, err
	}

	fs := &fileSet{idx: idx, header: header, data: data}
	mf.sets = append(mf.sets, fs)

	return fs, nil
}

func (mf *metricFiles) byIndex(idx storage.FileIndex) *fileSet {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	if int(idx) >= len(mf.sets) {
		return nil
	}

	return mf.sets[idx]
}

func (mf *metricFiles) flush(sync bool) error {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	var firstErr error
	for _, fs := range mf.sets {
		if err := fs.data.Flush(sync); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := fs.header.Flush(sync); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (mf *metricFiles) close() error {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	var firstErr error
	for _, fs := range mf.sets {
		if err := fs.data.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := fs.header.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
