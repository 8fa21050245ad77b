package storage

import (
	"bufio"
	"os"
	"sync"

	"github.com/relaydb/relaydb/errs"
	"github.com/relaydb/relaydb/section"
)

// MetaFile is the append-only record of every metric, time series, and
// measurement a Tsdb directory has ever seen. Replaying it in order at
// startup rebuilds the MetricID map and every Mapping/TimeSeries with
// empty in-memory pages; the WAL then replays actual data points on top.
type MetaFile struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

// OpenMetaFile opens (creating if necessary) the MetaFile at path and
// replays every record already in it, in order. Replay stops at the first
// malformed line or duplicate `ts` record, both of which indicate
// corruption the caller should surface as fatal.
func OpenMetaFile(path string) (*MetaFile, []section.MetaRecord, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errs.New(errs.KindIoError, "storage.OpenMetaFile", err)
	}

	records, err := replayMetaFile(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	return &MetaFile{f: f, w: bufio.NewWriter(f)}, records, nil
}

func replayMetaFile(f *os.File) ([]section.MetaRecord, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return nil, errs.New(errs.KindIoError, "storage.replayMetaFile", err)
	}

	seenTS := make(map[string]struct{})
	var records []section.MetaRecord

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		rec, err := section.ParseMetaRecord(line)
		if err != nil {
			return nil, errs.New(errs.KindCorrupted, "storage.replayMetaFile", err)
		}

		if rec.Kind == section.MetaRecordTimeSeries {
			key := rec.MetricName + "\x00" + rec.TagString
			if _, dup := seenTS[key]; dup {
				return nil, errs.New(errs.KindCorrupted, "storage.replayMetaFile", errs.ErrDuplicateTimeSeries)
			}
			seenTS[key] = struct{}{}
		}

		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.New(errs.KindIoError, "storage.replayMetaFile", err)
	}

	if _, err := f.Seek(0, 2); err != nil {
		return nil, errs.New(errs.KindIoError, "storage.replayMetaFile", err)
	}

	return records, nil
}

// Append writes one record to the end of the file. Callers are
// responsible for calling Flush at rotation boundaries; Append itself
// only buffers.
func (m *MetaFile) Append(rec section.MetaRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.w.WriteString(rec.Encode()); err != nil {
		return errs.New(errs.KindIoError, "storage.MetaFile.Append", err)
	}

	return nil
}

// Flush flushes buffered writes and fsyncs the underlying file, matching
// the flushed-fsync-on-rotate contract.
func (m *MetaFile) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.w.Flush(); err != nil {
		return errs.New(errs.KindIoError, "storage.MetaFile.Flush", err)
	}
	if err := m.f.Sync(); err != nil {
		return errs.New(errs.KindIoError, "storage.MetaFile.Flush", err)
	}

	return nil
}

// Close flushes and closes the underlying file.
func (m *MetaFile) Close() error {
	if err := m.Flush(); err != nil {
		return err
	}

	return m.f.Close()
}
