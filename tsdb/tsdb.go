// Package tsdb implements the central per-time-window coordinator: one
// Tsdb owns a metric directory tree (HeaderFile/DataFile pairs and an
// IndexFile) for the duration its time range is active, serializes page
// allocation under a single mutex, and answers range queries by walking
// each matched time series's page chain.
package tsdb

import (
	"container/heap"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relaydb/relaydb/clock"
	"github.com/relaydb/relaydb/codec"
	"github.com/relaydb/relaydb/errs"
	"github.com/relaydb/relaydb/format"
	"github.com/relaydb/relaydb/internal/bitio"
	"github.com/relaydb/relaydb/internal/pool"
	"github.com/relaydb/relaydb/metrics"
	"github.com/relaydb/relaydb/section"
	"github.com/relaydb/relaydb/series"
	"github.com/relaydb/relaydb/storage"
	"github.com/relaydb/relaydb/wal"
	"go.uber.org/zap"
)

// seriesCursor tracks, for one TimeSeries within this Tsdb, where its page
// chain currently ends and whether the midpoint entry has been set yet.
type seriesCursor struct {
	lastFile     storage.FileIndex
	lastHeader   storage.HeaderIndex
	hasLast      bool
	crossedMid   bool
}

// Tsdb coordinates durable storage for one bounded time window [From, To).
type Tsdb struct {
	From, To int64

	dataDir    string
	pageSize   uint16
	compressor format.PageEncoding
	resolution clock.Resolution
	logger     *zap.Logger
	wal        *wal.AppendLog

	mu      sync.Mutex // serializes append_page, per spec.md §5
	mode    atomic.Uint32
	touched atomic.Int64

	index   *storage.IndexFile
	metrics map[storage.MetricID]*metricFiles
	cursors map[storage.TimeSeriesID]*seriesCursor
}

// Option configures a Tsdb at construction time.
type Option func(*Tsdb)

// WithLogger attaches a structured logger; the default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tsdb) { t.logger = l }
}

// WithWAL attaches a durability log: every AppendPage call mirrors the
// full page it just persisted into w before returning. Without this
// option AppendPage has no crash-recovery story beyond what is already
// flushed to the HeaderFile/DataFile pair.
func WithWAL(w *wal.AppendLog) Option {
	return func(t *Tsdb) { t.wal = w }
}

// Open opens or creates the Tsdb rooted at dataDir for the range
// [from, to).
func Open(dataDir string, from, to int64, pageSize uint16, compressor format.PageEncoding, resolution clock.Resolution, opts ...Option) (*Tsdb, error) {
	return openAt(storage.TsdbDir(dataDir, from, to), from, to, pageSize, compressor, resolution, opts...)
}

// openAt constructs a Tsdb rooted directly at dir, bypassing the
// YYYY/MM/<range> layout Open derives from a data-dir root. Compact uses
// this to build a packed replacement under a sibling ".temp" directory
// before the rename dance swaps it into place.
func openAt(dir string, from, to int64, pageSize uint16, compressor format.PageEncoding, resolution clock.Resolution, opts ...Option) (*Tsdb, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.New(errs.KindIoError, "tsdb.Open", err)
	}

	index, err := storage.OpenIndexFile(storage.IndexPath(dir), false)
	if err != nil {
		return nil, err
	}

	t := &Tsdb{
		From:       from,
		To:         to,
		dataDir:    dir,
		pageSize:   pageSize,
		compressor: compressor,
		resolution: resolution,
		logger:     zap.NewNop(),
		index:      index,
		metrics:    make(map[storage.MetricID]*metricFiles),
		cursors:    make(map[storage.TimeSeriesID]*seriesCursor),
	}
	t.mode.Store(uint32(ModeRead | ModeWrite))
	t.touched.Store(time.Now().Unix())

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// Mode returns the current mode bit flags.
func (t *Tsdb) Mode() Mode { return Mode(t.mode.Load()) }

// SetMode overwrites the mode bit flags.
func (t *Tsdb) SetMode(m Mode) { t.mode.Store(uint32(m)) }

// Touch records that this Tsdb was just used, for the thrashing-threshold
// rotation policy.
func (t *Tsdb) Touch() { t.touched.Store(time.Now().Unix()) }

// LastTouched returns the unix timestamp Touch last recorded.
func (t *Tsdb) LastTouched() int64 { return t.touched.Load() }

// midpoint returns the Tsdb's time midpoint, used to decide whether the
// IndexFile's secondary chain head should be set for a TS.
func (t *Tsdb) midpoint() int64 { return t.From + (t.To-t.From)/2 }

// getOrCreateMetric returns (creating if needed) the metricFiles for mid.
// Callers must already hold t.mu; append_page is the sole caller and
// serializes every metric directory's file-pair lifecycle through it.
func (t *Tsdb) getOrCreateMetric(mid storage.MetricID) (*metricFiles, error) {
	if mf, ok := t.metrics[mid]; ok {
		return mf, nil
	}

	mf := &metricFiles{
		dir:        storage.MetricDir(t.dataDir, mid),
		pageSize:   t.pageSize,
		compressor: t.compressor,
		resolution: t.resolution,
	}

	if _, err := mf.createNext(); err != nil {
		return nil, err
	}

	t.metrics[mid] = mf

	return mf, nil
}

// NewPage allocates an in-memory page for ts, backed by a pooled scratch
// buffer (not yet durable). The caller compresses points into it and
// later calls AppendPage to persist it once full or on flush.
func (t *Tsdb) NewPage(ts *series.TimeSeries, startTS int64, outOfOrder bool) (*series.PageInMemory, error) {
	c, err := codec.New(t.compressor)
	if err != nil {
		return nil, err
	}
	if outOfOrder {
		c, err = codec.New(format.V0Raw)
		if err != nil {
			return nil, err
		}
	}

	bb := pool.GetPageBuffer()
	bb.Grow(int(t.pageSize))
	bb.SetLength(int(t.pageSize))

	if err := c.Init(startTS, bb.Bytes()); err != nil {
		pool.PutPageBuffer(bb)
		return nil, err
	}

	return &series.PageInMemory{
		Codec:       c,
		Scratch:     bb,
		HeaderIndex: storage.HeaderIndex(section.InvalidHeaderIndex),
		FileIndex:   storage.FileIndex(section.InvalidFileIndex),
		OutOfOrder:  outOfOrder,
		TstampFrom:  startTS,
	}, nil
}

// AppendPage persists an in-memory page to durable storage: it allocates
// a DataFile page, copies the compressed bytes in, reserves a HeaderFile
// slot, links it into the TS's page chain for this Tsdb, and updates the
// IndexFile. Implements spec.md §4.5's append_page write path.
func (t *Tsdb) AppendPage(ts *series.TimeSeries, page *series.PageInMemory) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveAppend(time.Since(start), err) }()

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.Mode().Has(ModeWrite) {
		return errs.New(errs.KindBadRequest, "tsdb.AppendPage", errs.ErrOutOfRange)
	}

	mf, err := t.getOrCreateMetric(ts.MetricID)
	if err != nil {
		return err
	}

	fs := mf.current()
	if fs == nil || fs.header.IsFull() {
		fs, err = mf.createNext()
		if err != nil {
			return err
		}
	}

	pageIndex, dst, err := fs.data.AllocatePage()
	if err != nil {
		return err
	}

	copy(dst, page.Scratch.Bytes())
	page.Codec.Rebase(dst)
	page.ReleaseScratch()

	headerIdx, err := fs.header.NewHeaderIndex()
	if err != nil {
		return err
	}
	if uint32(headerIdx) == section.InvalidHeaderIndex {
		return errs.New(errs.KindFull, "tsdb.AppendPage", errs.ErrFileIndexFull)
	}

	pos := page.Codec.Save()
	info := section.NewPageInfo(pageIndex, 0, t.pageSize)
	info.SetPosition(pos)
	info.Full = page.Codec.IsFull()
	info.OutOfOrder = page.OutOfOrder
	info.TstampFrom = uint32(page.TstampFrom)
	info.TstampTo = uint32(page.Codec.LastTimestamp())

	if err := fs.header.WritePageInfo(headerIdx, info); err != nil {
		return err
	}
	fs.header.UpdateRange(pageIndex, info.TstampFrom, info.TstampTo)

	if t.wal != nil {
		prev := t.cursors[ts.ID]
		rec := wal.Record{
			MetricID:   ts.MetricID,
			TSID:       ts.ID,
			Tstamp0:    page.TstampFrom,
			Offset:     pos.Offset,
			Start:      pos.Start,
			Full:       info.Full,
			OutOfOrder: page.OutOfOrder,
			Data:       dst,
		}
		if prev != nil && prev.hasLast {
			rec.PrevFile = prev.lastFile
			rec.PrevHeader = prev.lastHeader
		} else {
			rec.PrevFile = storage.FileIndex(section.InvalidFileIndex)
			rec.PrevHeader = storage.HeaderIndex(section.InvalidHeaderIndex)
		}
		if err := t.wal.Append(rec); err != nil {
			return err
		}
	}

	cursor := t.cursors[ts.ID]
	if cursor == nil {
		cursor = &seriesCursor{}
		t.cursors[ts.ID] = cursor
	}

	if !cursor.hasLast {
		if err := t.index.SetIndices(ts.ID, fs.idx, headerIdx); err != nil {
			return err
		}
	} else {
		prevFS := mf.byIndex(cursor.lastFile)
		if prevFS == nil {
			return errs.New(errs.KindCorrupted, "tsdb.AppendPage", errs.ErrCorrupted)
		}
		if err := prevFS.header.UpdateNext(cursor.lastHeader, fs.idx, headerIdx); err != nil {
			return err
		}
	}

	if page.OutOfOrder {
		if err := t.index.SetOutOfOrder(ts.ID); err != nil {
			return err
		}
	}

	if !cursor.crossedMid && int64(info.TstampTo) >= t.midpoint() {
		cursor.crossedMid = true
		if err := t.index.SetIndices2(ts.ID, fs.idx, headerIdx); err != nil {
			return err
		}
	}

	cursor.lastFile = fs.idx
	cursor.lastHeader = headerIdx
	cursor.hasLast = true

	page.FileIndex = fs.idx
	page.HeaderIndex = headerIdx
	page.PageIndex = pageIndex

	t.Touch()

	return nil
}

// ReplayRecord restores one page from a WAL record recovered after a
// crash. Unlike AppendPage it never compresses fresh data: rec.Data is
// already the full compressed page snapshot that was durably mirrored to
// the log before the crash, so ReplayRecord only has to re-run
// AppendPage's file-level placement (allocate a DataFile page, copy the
// bytes in, reserve a HeaderFile slot, relink the TS's page chain).
//
// Records must be replayed in the order AppendLog.Append originally wrote
// them; wal.Replay already preserves that order. This Tsdb's own cursors
// are rebuilt purely from the records replayed so far, not from rec's
// PrevFile/PrevHeader, since those refer to HeaderFile slots the crash may
// have left only partially linked.
func (t *Tsdb) ReplayRecord(rec wal.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	mf, err := t.getOrCreateMetric(rec.MetricID)
	if err != nil {
		return err
	}

	fs := mf.current()
	if fs == nil || fs.header.IsFull() {
		fs, err = mf.createNext()
		if err != nil {
			return err
		}
	}

	pageIndex, dst, err := fs.data.AllocatePage()
	if err != nil {
		return err
	}
	copy(dst, rec.Data)

	headerIdx, err := fs.header.NewHeaderIndex()
	if err != nil {
		return err
	}
	if uint32(headerIdx) == section.InvalidHeaderIndex {
		return errs.New(errs.KindFull, "tsdb.ReplayRecord", errs.ErrFileIndexFull)
	}

	info := section.NewPageInfo(pageIndex, 0, t.pageSize)
	info.SetPosition(bitio.Position{Offset: rec.Offset, Start: rec.Start})
	info.Full = rec.Full
	info.OutOfOrder = rec.OutOfOrder
	info.TstampFrom = uint32(rec.Tstamp0) //nolint:gosec

	c, err := codec.New(t.compressor)
	if err != nil {
		return err
	}
	if rec.OutOfOrder {
		c, err = codec.New(format.V0Raw)
		if err != nil {
			return err
		}
	}
	if err := c.Init(rec.Tstamp0, dst); err != nil {
		return err
	}

	var decoded codec.DataPointContainer
	if err := c.Restore(&decoded, info.Position(), nil); err != nil {
		return err
	}
	info.TstampTo = info.TstampFrom
	if n := decoded.Len(); n > 0 {
		info.TstampTo = uint32(decoded.Timestamps[n-1]) //nolint:gosec
	}

	if err := fs.header.WritePageInfo(headerIdx, info); err != nil {
		return err
	}
	fs.header.UpdateRange(pageIndex, info.TstampFrom, info.TstampTo)

	cursor := t.cursors[rec.TSID]
	if cursor == nil {
		cursor = &seriesCursor{}
		t.cursors[rec.TSID] = cursor
	}

	if !cursor.hasLast {
		if err := t.index.SetIndices(rec.TSID, fs.idx, headerIdx); err != nil {
			return err
		}
	} else {
		prevFS := mf.byIndex(cursor.lastFile)
		if prevFS == nil {
			return errs.New(errs.KindCorrupted, "tsdb.ReplayRecord", errs.ErrCorrupted)
		}
		if err := prevFS.header.UpdateNext(cursor.lastHeader, fs.idx, headerIdx); err != nil {
			return err
		}
	}

	if rec.OutOfOrder {
		if err := t.index.SetOutOfOrder(rec.TSID); err != nil {
			return err
		}
	}

	if !cursor.crossedMid && int64(info.TstampTo) >= t.midpoint() {
		cursor.crossedMid = true
		if err := t.index.SetIndices2(rec.TSID, fs.idx, headerIdx); err != nil {
			return err
		}
	}

	cursor.lastFile = fs.idx
	cursor.lastHeader = headerIdx
	cursor.hasLast = true

	t.Touch()

	return nil
}

// Recover replays every append log under walDir into t in epoch order,
// restoring any page an AppendPage call durably logged but that never
// reached t's HeaderFile before a crash. It returns the total number of
// records replayed. Callers run this once, right after Open and before
// accepting new writes or queries, against the same walDir a WithWAL
// option's AppendLog was (or will be) opened under.
func Recover(t *Tsdb, walDir string) (int, error) {
	paths, err := wal.ListLogs(walDir)
	if err != nil {
		return 0, err
	}

	total := 0

	for _, path := range paths {
		n, err := wal.Replay(path, t.ReplayRecord)
		total += n

		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// Flush msyncs every open metric file and the IndexFile. On the ingest
// path this runs async between rotations and sync at rotation
// boundaries, per spec.md §4.4's flush(sync) contract.
func (t *Tsdb) Flush(sync bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var firstErr error
	for _, mf := range t.metrics {
		if err := mf.flush(sync); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := t.index.Flush(sync); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// Close closes every open metric file and the IndexFile.
func (t *Tsdb) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var firstErr error
	for _, mf := range t.metrics {
		if err := mf.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := t.index.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// queryHeapItem is one pending (file, header) page-chain link to visit
// during a range query, ordered so the oldest page pops first.
type queryHeapItem struct {
	fileIndex   storage.FileIndex
	headerIndex storage.HeaderIndex
}

type queryHeap []queryHeapItem

func (h queryHeap) Len() int { return len(h) }
func (h queryHeap) Less(i, j int) bool {
	if h[i].fileIndex != h[j].fileIndex {
		return h[i].fileIndex < h[j].fileIndex
	}

	return h[i].headerIndex < h[j].headerIndex
}
func (h queryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *queryHeap) Push(x any)   { *h = append(*h, x.(queryHeapItem)) }
func (h *queryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]

	return item
}

// QueryForData walks ts's page chain within this Tsdb and decodes every
// page overlapping [start, end) into dst, merge-sorting the result by
// timestamp if the TS has ever received an out-of-order point.
// Implements spec.md §4.5's query_for_data read path.
func (t *Tsdb) QueryForData(ts *series.TimeSeries, start, end int64, dst *codec.DataPointContainer) error {
	queryStart := time.Now()
	before := dst.Len()

	err := t.queryForData(ts, start, end, dst)

	metrics.ObserveQuery(time.Since(queryStart), dst.Len()-before)

	return err
}

// OutOfOrder reports whether tsID has ever received an out-of-order point
// within this Tsdb. Callers that must not double-count revised points
// (rollup computation, per spec.md §4.8) check this before scanning a
// series' pages. A tsID never written to this Tsdb reports false.
func (t *Tsdb) OutOfOrder(tsID storage.TimeSeriesID) (bool, error) {
	entry, err := t.index.Get(tsID)
	if err != nil {
		return false, err
	}

	return entry.OutOfOrder, nil
}

func (t *Tsdb) queryForData(ts *series.TimeSeries, start, end int64, dst *codec.DataPointContainer) error {
	entry, err := t.index.Get(ts.ID)
	if err != nil {
		return err
	}

	var seed queryHeapItem
	if start > t.midpoint() && entry.HasSecond() {
		seed = queryHeapItem{fileIndex: storage.FileIndex(entry.File2), headerIndex: storage.HeaderIndex(entry.Header2)}
	} else if entry.HasFirst() {
		seed = queryHeapItem{fileIndex: storage.FileIndex(entry.File), headerIndex: storage.HeaderIndex(entry.Header)}
	} else {
		return nil
	}

	h := &queryHeap{seed}
	heap.Init(h)

	t.mu.Lock()
	mf := t.metrics[ts.MetricID]
	t.mu.Unlock()
	if mf == nil {
		return nil
	}

	for h.Len() > 0 {
		item := heap.Pop(h).(queryHeapItem)

		fs := mf.byIndex(item.fileIndex)
		if fs == nil {
			continue
		}

		info, err := fs.header.ReadPageInfo(item.headerIndex)
		if err != nil {
			return err
		}

		if int64(info.TstampFrom) > end {
			continue
		}
		if int64(info.TstampTo) >= start {
			pageBytes, err := fs.data.Page(info.PageIndex)
			if err != nil {
				return err
			}

			c, err := codec.New(t.compressor)
			if err != nil {
				return err
			}
			if info.OutOfOrder {
				c, err = codec.New(format.V0Raw)
				if err != nil {
					return err
				}
			}
			if err := c.Init(int64(info.TstampFrom), pageBytes); err != nil {
				return err
			}
			if err := c.Restore(dst, info.Position(), nil); err != nil {
				return err
			}
		}

		if info.HasNext() {
			heap.Push(h, queryHeapItem{fileIndex: storage.FileIndex(info.NextFile), headerIndex: storage.HeaderIndex(info.NextHeader)})
		}
	}

	if entry.OutOfOrder {
		sortDataPoints(dst)
	}

	return nil
}

// sortDataPoints stably sorts a decoded container by timestamp, the
// merge step spec.md's query_for_data requires once any out-of-order
// page may have interleaved points outside the chain's normal
// chronological order.
func sortDataPoints(dst *codec.DataPointContainer) {
	sort.Stable(dataPointsByTimestamp(*dst))
}

type dataPointsByTimestamp codec.DataPointContainer

func (d dataPointsByTimestamp) Len() int { return len(d.Timestamps) }
func (d dataPointsByTimestamp) Less(i, j int) bool { return d.Timestamps[i] < d.Timestamps[j] }
func (d dataPointsByTimestamp) Swap(i, j int) {
	d.Timestamps[i], d.Timestamps[j] = d.Timestamps[j], d.Timestamps[i]
	d.Values[i], d.Values[j] = d.Values[j], d.Values[i]
}
