package wal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/relaydb/relaydb/errs"
	"github.com/relaydb/relaydb/internal/pool"
	"github.com/relaydb/relaydb/metrics"
	"go.uber.org/zap"
)

// DefaultFlushFrequency is append.log.flush.frequency's default.
const DefaultFlushFrequency = 5 * time.Minute

// DefaultRotationFrequency is append.log.rotation.frequency's default.
const DefaultRotationFrequency = 5 * time.Minute

// AppendLog is one writer goroutine's durability log: every page snapshot
// it flushes is mirrored here, zlib-compressed, with a flush boundary
// after each record so a reader can always decode a prefix of the file
// even if the process crashed mid-write.
type AppendLog struct {
	mu       sync.Mutex
	dir      string
	tag      string
	epoch    int64
	f        *os.File
	zw       *zlib.Writer
	logger   *zap.Logger
	lastFlush time.Time
}

// Open creates a new append log file under dir named
// append.<epoch>.<tag>.log.zip.
func Open(dir, tag string, epoch int64, logger *zap.Logger) (*AppendLog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.New(errs.KindIoError, "wal.Open", err)
	}

	path := logPath(dir, tag, epoch)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errs.New(errs.KindIoError, "wal.Open", err)
	}

	zw := zlib.NewWriter(f)

	return &AppendLog{
		dir:       dir,
		tag:       tag,
		epoch:     epoch,
		f:         f,
		zw:        zw,
		logger:    logger,
		lastFlush: time.Now(),
	}, nil
}

func logPath(dir, tag string, epoch int64) string {
	return filepath.Join(dir, fmt.Sprintf("append.%d.%s.log.zip", epoch, tag))
}

// Append writes one record and issues a zlib sync flush, so every record
// boundary is independently recoverable.
func (l *AppendLog) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bb := pool.GetWALBuffer()
	defer pool.PutWALBuffer(bb)

	bb.B = rec.Encode(bb.B[:0])

	if _, err := l.zw.Write(bb.B); err != nil {
		return errs.New(errs.KindIoError, "wal.AppendLog.Append", err)
	}
	if err := l.zw.Flush(); err != nil {
		return errs.New(errs.KindIoError, "wal.AppendLog.Append", err)
	}

	metrics.ObserveWALWrite()

	return nil
}

// MaybeFlush fsyncs the underlying file if frequency has elapsed since the
// last flush. Callers not driven by a config.WALConfig can pass
// DefaultFlushFrequency directly.
func (l *AppendLog) MaybeFlush(now time.Time, frequency time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastFlush) < frequency {
		return nil
	}

	if err := l.f.Sync(); err != nil {
		return errs.New(errs.KindIoError, "wal.AppendLog.MaybeFlush", err)
	}
	l.lastFlush = now

	return nil
}

// Path returns the file path this log writes to.
func (l *AppendLog) Path() string { return logPath(l.dir, l.tag, l.epoch) }

// Close flushes and closes the underlying file.
func (l *AppendLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.zw.Close(); err != nil {
		l.f.Close()
		return errs.New(errs.KindIoError, "wal.AppendLog.Close", err)
	}

	return l.f.Close()
}

// Rotate closes this log and opens a fresh one under the same tag at a new
// epoch, returning the new AppendLog. The caller is responsible for
// pruning logs past the retention window.
func (l *AppendLog) Rotate(newEpoch int64) (*AppendLog, error) {
	if err := l.Close(); err != nil {
		return nil, err
	}

	metrics.ObserveWALRotation()

	return Open(l.dir, l.tag, newEpoch, l.logger)
}

// Replay decompresses every record in the append log at path and invokes
// fn for each one in order. A truncated trailing record (the tail of a
// file a crash interrupted mid-write) is treated as end-of-log rather
// than an error, since AppendLog only ever promises whole-record
// durability up to the last completed Flush.
func Replay(path string, fn func(Record) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errs.New(errs.KindIoError, "wal.Replay", err)
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, errs.New(errs.KindCorrupted, "wal.Replay", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil && len(raw) == 0 {
		return 0, errs.New(errs.KindCorrupted, "wal.Replay", err)
	}

	count := 0
	for len(raw) > 0 {
		rec, n, decErr := DecodeRecord(raw)
		if decErr != nil {
			break
		}

		if err := fn(rec); err != nil {
			return count, err
		}

		raw = raw[n:]
		count++
	}

	return count, nil
}

// ListLogs returns every append log file under dir, oldest epoch first —
// the order a caller must replay them in to reconstruct a TS's page chain
// the way it was originally appended. Returns an empty slice, not an
// error, if dir does not exist yet.
func ListLogs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, errs.New(errs.KindIoError, "wal.ListLogs", err)
	}

	type logFile struct {
		path  string
		epoch int64
	}

	var logs []logFile

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		epoch, ok := parseLogEpoch(e.Name())
		if !ok {
			continue
		}

		logs = append(logs, logFile{path: filepath.Join(dir, e.Name()), epoch: epoch})
	}

	sort.Slice(logs, func(i, j int) bool { return logs[i].epoch < logs[j].epoch })

	paths := make([]string, len(logs))
	for i, l := range logs {
		paths[i] = l.path
	}

	return paths, nil
}

// parseLogEpoch extracts the epoch from an append.<epoch>.<tag>.log.zip
// file name.
func parseLogEpoch(name string) (int64, bool) {
	if !strings.HasPrefix(name, "append.") || !strings.HasSuffix(name, ".log.zip") {
		return 0, false
	}

	mid := strings.TrimSuffix(strings.TrimPrefix(name, "append."), ".log.zip")

	epochStr, _, ok := strings.Cut(mid, ".")
	if !ok {
		return 0, false
	}

	epoch, err := strconv.ParseInt(epochStr, 10, 64)
	if err != nil {
		return 0, false
	}

	return epoch, true
}
