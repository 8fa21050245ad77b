package rollup

import (
	"bufio"
	"io"
	"os"
	"sync"

	"github.com/relaydb/relaydb/errs"
	"github.com/relaydb/relaydb/storage"
)

// File is the append-only log of rollup records for one metric directory
// at one aggregation level (hourly or daily). Replaying it at Open rebuilds
// an in-memory index keyed by (TS, bucket start), the same
// append-then-replay shape storage.MetaFile uses for metric/series
// records; unlike a page's header array, a rollup bucket's "index" is
// simply its bucket start timestamp, and a missing map entry plays the
// role of spec.md's INVALID_ROLLUP_INDEX sentinel.
type File struct {
	mu      sync.Mutex
	f       *os.File
	w       *bufio.Writer
	buckets map[storage.TimeSeriesID]map[int64]Bucket
}

// Open opens (creating if necessary) the rollup log at path and replays
// every record already in it.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errs.New(errs.KindIoError, "rollup.Open", err)
	}

	buckets, err := replay(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &File{f: f, w: bufio.NewWriter(f), buckets: buckets}, nil
}

func replay(f *os.File) (map[storage.TimeSeriesID]map[int64]Bucket, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, errs.New(errs.KindIoError, "rollup.replay", err)
	}

	buckets := make(map[storage.TimeSeriesID]map[int64]Bucket)
	buf := make([]byte, recordSize)
	for {
		if _, err := io.ReadFull(f, buf); err != nil {
			if err == io.EOF {
				break
			}
			if err == io.ErrUnexpectedEOF {
				// Truncated trailing record from an interrupted write; the
				// log's durability contract only covers whole records.
				break
			}
			return nil, errs.New(errs.KindIoError, "rollup.replay", err)
		}

		rec, err := parseRecord(buf)
		if err != nil {
			return nil, err
		}

		byHour := buckets[rec.TSID]
		if byHour == nil {
			byHour = make(map[int64]Bucket)
			buckets[rec.TSID] = byHour
		}
		byHour[rec.Bucket.BucketStart] = rec.Bucket
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return nil, errs.New(errs.KindIoError, "rollup.replay", err)
	}

	return buckets, nil
}

// Put upserts bucket for tsid, both in memory and durably in the log. A
// rebuild that recomputes the same bucket overwrites the in-memory
// entry; the log itself is append-only, so the latest record for a given
// (tsid, bucket start) wins on replay.
func (rf *File) Put(tsid storage.TimeSeriesID, bucket Bucket) error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	rec := record{TSID: tsid, Bucket: bucket}
	if _, err := rf.w.Write(rec.bytes()); err != nil {
		return errs.New(errs.KindIoError, "rollup.File.Put", err)
	}

	byHour := rf.buckets[tsid]
	if byHour == nil {
		byHour = make(map[int64]Bucket)
		rf.buckets[tsid] = byHour
	}
	byHour[bucket.BucketStart] = bucket

	return nil
}

// Get returns the bucket stored for (tsid, bucketStart), or false if that
// bucket is the equivalent of INVALID_ROLLUP_INDEX: never computed.
func (rf *File) Get(tsid storage.TimeSeriesID, bucketStart int64) (Bucket, bool) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	byHour, ok := rf.buckets[tsid]
	if !ok {
		return Bucket{}, false
	}

	b, ok := byHour[bucketStart]

	return b, ok
}

// Range returns every bucket stored for tsid with BucketStart in
// [start, end), sorted by BucketStart.
func (rf *File) Range(tsid storage.TimeSeriesID, start, end int64) []Bucket {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	byHour, ok := rf.buckets[tsid]
	if !ok {
		return nil
	}

	var out []Bucket
	for ts, b := range byHour {
		if ts >= start && ts < end {
			out = append(out, b)
		}
	}

	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].BucketStart > out[j].BucketStart; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}

	return out
}

// Flush flushes buffered writes and fsyncs the underlying file.
func (rf *File) Flush() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if err := rf.w.Flush(); err != nil {
		return errs.New(errs.KindIoError, "rollup.File.Flush", err)
	}
	if err := rf.f.Sync(); err != nil {
		return errs.New(errs.KindIoError, "rollup.File.Flush", err)
	}

	return nil
}

// Close flushes and closes the underlying file.
func (rf *File) Close() error {
	rf.mu.Lock()
	if err := rf.w.Flush(); err != nil {
		rf.mu.Unlock()
		return errs.New(errs.KindIoError, "rollup.File.Close", err)
	}
	rf.mu.Unlock()

	return rf.f.Close()
}
