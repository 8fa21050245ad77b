package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/relaydb/relaydb/clock"
	"github.com/relaydb/relaydb/format"
	"github.com/relaydb/relaydb/rollup"
	"github.com/relaydb/relaydb/series"
	"github.com/relaydb/relaydb/storage"
	"github.com/relaydb/relaydb/tsdb"
	"github.com/stretchr/testify/require"
)

func newTestWindow(t *testing.T, from, to int64) *tsdb.Tsdb {
	t.Helper()

	w, err := tsdb.Open(t.TempDir(), from, to, 4096, format.V2Gorilla, clock.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	return w
}

func TestFlushTaskFlushesEveryWindow(t *testing.T) {
	c := &Coordinator{}
	w := newTestWindow(t, 0, 3600)

	ts := series.New(1, 1, nil)
	page, err := w.NewPage(ts, 0, false)
	require.NoError(t, err)
	require.True(t, page.Codec.Compress(0, 1))
	require.NoError(t, w.AppendPage(ts, page))

	require.NoError(t, c.FlushTask([]*tsdb.Tsdb{w}, true)(context.Background()))
}

func TestRotateTaskArchivesIdleWindows(t *testing.T) {
	w := newTestWindow(t, 0, 500)
	w.SetMode(tsdb.ModeRead) // not writable, so it is eligible for archival once idle

	later := time.Now().Add(2 * time.Second)
	c := &Coordinator{
		Thresholds: Thresholds{Thrashing: time.Second, Archive: time.Hour, ReadOnly: time.Hour},
		Now:        func() time.Time { return later },
	}

	windows := []*tsdb.Tsdb{w}
	require.NoError(t, c.RotateTask(&windows)(context.Background()))

	require.Len(t, windows, 0, "an idle, non-writable window should be archived and dropped")
}

func TestRotateTaskKeepsActiveWindows(t *testing.T) {
	c := &Coordinator{
		Thresholds: Thresholds{Thrashing: time.Hour, Archive: time.Hour, ReadOnly: time.Hour},
		Now:        func() time.Time { return time.Now() },
	}

	w := newTestWindow(t, 0, 500)
	w.Touch()

	windows := []*tsdb.Tsdb{w}
	require.NoError(t, c.RotateTask(&windows)(context.Background()))

	require.Len(t, windows, 1)
}

func TestCompactTaskOnlyRunsInOffHoursWindow(t *testing.T) {
	registry := series.NewRegistry()

	daytime := time.Date(2026, 1, 1, 14, 0, 0, 0, time.UTC)
	c := &Coordinator{Registry: registry, Now: func() time.Time { return daytime }}

	w := newTestWindow(t, 0, 500)
	w.SetMode(tsdb.ModeRead)

	require.NoError(t, c.CompactTask([]*tsdb.Tsdb{w}, 2, 4)(context.Background()))
	require.False(t, w.Mode().Has(tsdb.ModeCompacted), "compaction must not run outside the off-hours window")
}

func TestCompactTaskRunsWithinOffHoursWindow(t *testing.T) {
	mapping := series.NewMapping(storage.MetricID(1), "cpu")
	registry := series.NewRegistry()
	registry.Restore(mapping.MetricID, mapping.MetricName)

	night := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	c := &Coordinator{Registry: registry, Now: func() time.Time { return night }}

	w := newTestWindow(t, 0, 500)
	w.SetMode(tsdb.ModeRead)

	require.NoError(t, c.CompactTask([]*tsdb.Tsdb{w}, 2, 4)(context.Background()))
	require.True(t, w.Mode().Has(tsdb.ModeCompacted))
}

func TestRollupTaskSkipsRecentWindows(t *testing.T) {
	registry := series.NewRegistry()
	c := &Coordinator{
		Registry:   registry,
		Thresholds: Thresholds{RollupAge: time.Hour},
		Now:        func() time.Time { return time.Unix(1000, 0) },
	}

	w := newTestWindow(t, 0, 500)
	dir := filepath.Join(t.TempDir(), "rollup.data")

	require.NoError(t, c.RollupTask([]*tsdb.Tsdb{w}, func(*tsdb.Tsdb) string { return dir })(context.Background()))
	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err), "rollup file should not be created for a window younger than RollupAge")
}

func TestRollupTaskSkipsOutOfOrderSeries(t *testing.T) {
	registry := series.NewRegistry()
	mapping := registry.Restore(storage.MetricID(1), "cpu")

	w := newTestWindow(t, 0, 7200)

	var nextID storage.TimeSeriesID
	allocate := func() (storage.TimeSeriesID, error) { nextID++; return nextID, nil }

	clean, _, err := mapping.GetOrCreate([]series.Tag{{Key: "host", Value: "a"}}, allocate, func(*series.TimeSeries) error { return nil })
	require.NoError(t, err)
	ooo, _, err := mapping.GetOrCreate([]series.Tag{{Key: "host", Value: "b"}}, allocate, func(*series.TimeSeries) error { return nil })
	require.NoError(t, err)

	for _, ts := range []*series.TimeSeries{clean, ooo} {
		page, err := w.NewPage(ts, 0, false)
		require.NoError(t, err)
		require.True(t, page.Codec.Compress(0, 1))
		page.TstampTo = page.Codec.LastTimestamp()
		require.NoError(t, w.AppendPage(ts, page))
	}

	oooPage, err := w.NewPage(ooo, 3600, true)
	require.NoError(t, err)
	require.True(t, oooPage.Codec.Compress(3600, 2))
	oooPage.TstampTo = oooPage.Codec.LastTimestamp()
	require.NoError(t, w.AppendPage(ooo, oooPage))

	c := &Coordinator{
		Registry:   registry,
		Thresholds: Thresholds{RollupAge: time.Hour},
		Now:        func() time.Time { return time.Unix(w.To+3601, 0) },
	}

	dir := filepath.Join(t.TempDir(), "rollup.data")
	require.NoError(t, c.RollupTask([]*tsdb.Tsdb{w}, func(*tsdb.Tsdb) string { return dir })(context.Background()))

	hourly, err := rollup.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hourly.Close() })

	_, ok := hourly.Get(clean.ID, rollup.AlignToHour(w.From))
	require.True(t, ok, "the series with no out-of-order points should have been rolled up")

	_, ok = hourly.Get(ooo.ID, rollup.AlignToHour(w.From))
	require.False(t, ok, "a series with its out-of-order bit set must not be rolled up")
}

func TestRetentionTaskKeepsNewestFilesPerTag(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"append.1.a.log.zip",
		"append.2.a.log.zip",
		"append.3.a.log.zip",
		"append.1.b.log.zip",
	}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}

	c := &Coordinator{Thresholds: Thresholds{WALRetentionFiles: 1}}
	require.NoError(t, c.RetentionTask(dir)(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2, "one newest file should survive per tag")
}

func TestWalTagParsesFilename(t *testing.T) {
	require.Equal(t, "primary", walTag("append.42.primary.log.zip"))
	require.Equal(t, "", walTag("not-a-wal-file"))
}
