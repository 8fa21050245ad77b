package tsdb

import (
	"os"
	"path/filepath"

	"github.com/relaydb/relaydb/codec"
	"github.com/relaydb/relaydb/errs"
	"github.com/relaydb/relaydb/series"
	"github.com/relaydb/relaydb/storage"
)

// Compact rewrites this Tsdb into a fresh set of metric files with
// packed page sizes and swaps them into place atomically, implementing
// spec.md §4.5's `<range>.temp` → `<range>.done` → `<range>` rename
// sequence (the previous contents are moved to `<range>.back` first, not
// deleted, so a crash mid-swap never loses data). On success the Tsdb's
// mode gains ModeCompacted.
//
// Compact needs a registry to resolve TimeSeriesID to MetricID, since
// the IndexFile records a TS's page chain heads but not which metric it
// belongs to; it walks every registered series and skips those with no
// entry in this Tsdb's IndexFile. This is O(total series in the
// process) per compaction, acceptable for a background sweep that runs
// at most once per Tsdb per off-hours window.
//
// Compact must not run concurrently with AppendPage on the same Tsdb;
// callers only schedule it once a Tsdb's mode has dropped ModeWrite, so
// the repack loop below reads through QueryForData (which takes its own
// brief lock on t.metrics) without holding t.mu for the whole operation.
// Only the final file swap and handle reopen need it.
func (t *Tsdb) Compact(registry *series.Registry) error {
	if t.Mode().Has(ModeWrite) {
		return errs.New(errs.KindBadRequest, "tsdb.Compact", errs.ErrOutOfRange)
	}

	parent := filepath.Dir(t.dataDir)
	rangeName := filepath.Base(t.dataDir)
	tempDir := filepath.Join(parent, rangeName+".temp")
	doneDir := filepath.Join(parent, rangeName+".done")
	backDir := filepath.Join(parent, rangeName+".back")

	_ = os.RemoveAll(tempDir)
	_ = os.RemoveAll(doneDir)

	packed, err := openAt(tempDir, t.From, t.To, t.pageSize, t.compressor, t.resolution, WithLogger(t.logger))
	if err != nil {
		return err
	}

	var dst codec.DataPointContainer
	for _, mapping := range registry.AllMappings() {
		for _, ts := range mapping.Snapshot() {
			entry, err := t.index.Get(ts.ID)
			if err != nil {
				_ = packed.Close()
				return err
			}
			if !entry.HasFirst() {
				continue
			}

			dst.Reset()
			if err := t.QueryForData(ts, t.From, t.To, &dst); err != nil {
				_ = packed.Close()
				return err
			}
			if dst.Len() == 0 {
				continue
			}

			if err := repackSeries(packed, ts, &dst); err != nil {
				_ = packed.Close()
				return err
			}
		}
	}

	if err := packed.Close(); err != nil {
		return err
	}

	if err := os.Rename(tempDir, doneDir); err != nil {
		return errs.New(errs.KindIoError, "tsdb.Compact", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	_ = os.RemoveAll(backDir)
	if err := os.Rename(t.dataDir, backDir); err != nil {
		return errs.New(errs.KindIoError, "tsdb.Compact", err)
	}
	if err := os.Rename(doneDir, t.dataDir); err != nil {
		return errs.New(errs.KindIoError, "tsdb.Compact", err)
	}

	if err := t.reopenLocked(); err != nil {
		return err
	}

	t.mode.Store(uint32(t.Mode() | ModeCompacted))

	return nil
}

// repackSeries writes every point in dst into packed, filling one page
// at a time so compaction produces the densest possible page chain.
func repackSeries(packed *Tsdb, ts *series.TimeSeries, dst *codec.DataPointContainer) error {
	i := 0
	for i < dst.Len() {
		page, err := packed.NewPage(ts, dst.Timestamps[i], false)
		if err != nil {
			return err
		}

		for i < dst.Len() {
			if !page.Codec.Compress(dst.Timestamps[i], dst.Values[i]) {
				break
			}
			i++
		}
		page.TstampTo = page.Codec.LastTimestamp()

		if err := packed.AppendPage(ts, page); err != nil {
			return err
		}
	}

	return nil
}

// reopenLocked closes the handles this Tsdb holds on its (now stale,
// post-swap) directory and reopens them against the same path, which
// after Compact's rename dance now contains the packed replacement.
// Callers must already hold t.mu.
func (t *Tsdb) reopenLocked() error {
	for _, mf := range t.metrics {
		if err := mf.close(); err != nil {
			return err
		}
	}
	if err := t.index.Close(); err != nil {
		return err
	}

	fresh, err := openAt(t.dataDir, t.From, t.To, t.pageSize, t.compressor, t.resolution, WithLogger(t.logger))
	if err != nil {
		return err
	}

	t.index = fresh.index
	t.metrics = fresh.metrics
	t.cursors = make(map[storage.TimeSeriesID]*seriesCursor)

	return nil
}
