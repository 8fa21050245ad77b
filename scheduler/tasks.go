package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/relaydb/relaydb/rollup"
	"github.com/relaydb/relaydb/series"
	"github.com/relaydb/relaydb/tsdb"
	"go.uber.org/zap"
)

// Thresholds holds the configured time boundaries the scheduled tasks
// compare a Tsdb's age against, per spec.md §4.5's mode_of() inputs and
// §4.8's rollup.threshold.
type Thresholds struct {
	Archive           time.Duration
	ReadOnly          time.Duration
	Thrashing         time.Duration
	RollupAge         time.Duration
	WALRetentionFiles int
}

// Coordinator owns the set of open Tsdbs a running process is serving
// and drives their periodic flush/rotate/compact/rollup/retention work.
// It holds no locks of its own across task runs; each Tsdb already
// serializes its own mutating operations, so the Coordinator only needs
// to avoid submitting two conflicting tasks for the same Tsdb at once,
// which FlushTask/RotateTask/CompactTask/RollupTask each do internally
// by checking the Tsdb's current Mode before acting.
type Coordinator struct {
	Registry   *series.Registry
	Thresholds Thresholds
	Logger     *zap.Logger
	Now        func() time.Time
}

func (c *Coordinator) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// FlushTask returns a Task that msyncs every page write since the last
// flush. Async flushes (sync=false) run between rotations; the rotation
// boundary itself always flushes sync=true.
func (c *Coordinator) FlushTask(windows []*tsdb.Tsdb, sync bool) Task {
	return func(_ context.Context) error {
		for _, t := range windows {
			if err := t.Flush(sync); err != nil {
				c.logger().Warn("scheduler: flush failed", zap.Error(err))
				return err
			}
		}
		return nil
	}
}

// RotateTask returns a Task that recomputes each Tsdb's mode against the
// configured archive/read-only thresholds and closes (archives) any
// Tsdb untouched within the thrashing threshold. An archived Tsdb is
// dropped from windows; it remains queryable by reopening its directory
// later, per spec.md §4.5's rotate semantics.
func (c *Coordinator) RotateTask(windows *[]*tsdb.Tsdb) Task {
	return func(_ context.Context) error {
		if err := c.FlushTask(*windows, true)(context.Background()); err != nil {
			return err
		}

		now := c.now().Unix()
		kept := (*windows)[:0]

		for _, t := range *windows {
			age := now - t.To
			t.SetMode(tsdb.ModeOf(t.Mode(), age, int64(c.Thresholds.Archive.Seconds()), int64(c.Thresholds.ReadOnly.Seconds())))

			if now-t.LastTouched() >= int64(c.Thresholds.Thrashing.Seconds()) && !t.Mode().Has(tsdb.ModeWrite) {
				if err := t.Close(); err != nil {
					c.logger().Warn("scheduler: archive failed", zap.Error(err))
					return err
				}
				c.logger().Info("scheduler: archived idle tsdb", zap.Int64("from", t.From), zap.Int64("to", t.To))
				continue
			}

			kept = append(kept, t)
		}

		*windows = kept

		return nil
	}
}

// CompactTask returns a Task that compacts every read-only, not-yet-
// compacted Tsdb in windows, provided nowFn falls within the configured
// off-hours window (inclusive start hour, exclusive end hour, in UTC).
func (c *Coordinator) CompactTask(windows []*tsdb.Tsdb, offHoursStart, offHoursEnd int) Task {
	return func(_ context.Context) error {
		hour := c.now().UTC().Hour()
		if !inWindow(hour, offHoursStart, offHoursEnd) {
			return nil
		}

		for _, t := range windows {
			if t.Mode().Has(tsdb.ModeWrite) || t.Mode().Has(tsdb.ModeCompacted) {
				continue
			}

			if err := t.Compact(c.Registry); err != nil {
				c.logger().Warn("scheduler: compact failed", zap.Error(err))
				return err
			}
			c.logger().Info("scheduler: compacted tsdb", zap.Int64("from", t.From), zap.Int64("to", t.To))
		}

		return nil
	}
}

func inWindow(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	// wraps past midnight
	return hour >= start || hour < end
}

// RollupTask returns a Task that computes hourly rollups for every TS in
// every Tsdb older than Thresholds.RollupAge, skipping any TS with the
// out-of-order bit set, per spec.md §4.8.
func (c *Coordinator) RollupTask(windows []*tsdb.Tsdb, rollupDir func(t *tsdb.Tsdb) string) Task {
	return func(_ context.Context) error {
		now := c.now().Unix()

		for _, t := range windows {
			if now-t.To < int64(c.Thresholds.RollupAge.Seconds()) {
				continue
			}

			dir := rollupDir(t)
			if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
				return err
			}

			hourly, err := rollup.Open(dir)
			if err != nil {
				return err
			}

			for _, mapping := range c.Registry.AllMappings() {
				for _, ts := range mapping.Snapshot() {
					if err := rollupSeries(t, hourly, ts); err != nil {
						_ = hourly.Close()
						return err
					}
				}
			}

			if err := hourly.Close(); err != nil {
				return err
			}

			t.SetMode(t.Mode() | tsdb.ModeRolledUp)
			c.logger().Info("scheduler: rolled up tsdb", zap.Int64("from", t.From), zap.Int64("to", t.To))
		}

		return nil
	}
}

func rollupSeries(t *tsdb.Tsdb, hourly *rollup.File, ts *series.TimeSeries) error {
	ooo, err := t.OutOfOrder(ts.ID)
	if err != nil {
		return err
	}
	if ooo {
		return nil
	}

	for bucketStart := rollup.AlignToHour(t.From); bucketStart < t.To; bucketStart += rollup.HourSeconds {
		if _, ok := hourly.Get(ts.ID, bucketStart); ok {
			continue
		}

		b, err := rollup.ComputeHourly(t, ts, bucketStart)
		if err != nil {
			return err
		}
		if b.Empty() {
			continue
		}
		if err := hourly.Put(ts.ID, b); err != nil {
			return err
		}
	}

	return nil
}

// RetentionTask returns a Task that deletes WAL log files under dir
// older than the configured retention count, keeping the most recent
// WALRetentionFiles per tag.
func (c *Coordinator) RetentionTask(dir string) Task {
	return func(_ context.Context) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		byTag := make(map[string][]string)
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			tag := walTag(e.Name())
			if tag == "" {
				continue
			}
			byTag[tag] = append(byTag[tag], e.Name())
		}

		for _, names := range byTag {
			sort.Strings(names)
			if len(names) <= c.Thresholds.WALRetentionFiles {
				continue
			}

			for _, name := range names[:len(names)-c.Thresholds.WALRetentionFiles] {
				if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
					c.logger().Warn("scheduler: retention delete failed", zap.String("file", name), zap.Error(err))
				}
			}
		}

		return nil
	}
}

// walTag extracts the "<tag>" component of an "append.<epoch>.<tag>.log.zip"
// filename, or "" if name doesn't match that shape.
func walTag(name string) string {
	parts := splitDots(name)
	if len(parts) != 5 || parts[0] != "append" || parts[3] != "log" || parts[4] != "zip" {
		return ""
	}
	return parts[2]
}

func splitDots(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
