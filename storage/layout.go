package storage

import (
	"fmt"
	"path/filepath"
	"time"
)

// TsdbDir returns the directory for the Tsdb time window [fromSec, toSec),
// rooted under dataDir and bucketed by the window's start year/month:
// <data_dir>/<YYYY>/<MM>/<from_sec>.<to_sec>/.
func TsdbDir(dataDir string, fromSec, toSec int64) string {
	t := time.Unix(fromSec, 0).UTC()

	return filepath.Join(dataDir,
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", int(t.Month())),
		fmt.Sprintf("%d.%d", fromSec, toSec),
	)
}

// WALDir returns the process-wide append log directory: <data_dir>/wal/.
// Unlike a Tsdb's own directory this is not bucketed by time window, since
// one writer goroutine's append log spans whatever windows it touches
// during its lifetime.
func WALDir(dataDir string) string {
	return filepath.Join(dataDir, "wal")
}

// MetricDir returns the per-metric subdirectory of a Tsdb directory:
// m<10-digit metric id>/.
func MetricDir(tsdbDir string, metric MetricID) string {
	return filepath.Join(tsdbDir, fmt.Sprintf("m%010d", metric))
}

// ConfigPath returns the Tsdb directory's config mirror file path.
func ConfigPath(tsdbDir string) string {
	return filepath.Join(tsdbDir, "config")
}

// IndexPath returns the Tsdb directory's IndexFile path.
func IndexPath(tsdbDir string) string {
	return filepath.Join(tsdbDir, "index")
}

// MetaPath returns the Tsdb directory's MetaFile path.
func MetaPath(tsdbDir string) string {
	return filepath.Join(tsdbDir, "meta")
}

// HeaderPath returns a metric directory's HeaderFile path for the given
// file index: header.<5-digit file id>.
func HeaderPath(metricDir string, idx FileIndex) string {
	return filepath.Join(metricDir, fmt.Sprintf("header.%05d", idx))
}

// DataPath returns a metric directory's DataFile path for the given file
// index: data.<5-digit file id>.
func DataPath(metricDir string, idx FileIndex) string {
	return filepath.Join(metricDir, fmt.Sprintf("data.%05d", idx))
}

// RollupHeaderPath returns a metric directory's hourly rollup header path.
func RollupHeaderPath(metricDir string) string {
	return filepath.Join(metricDir, "rollup.header")
}

// RollupHeaderTempPath returns the pre-build scratch path a rollup rebuild
// writes to before atomically replacing RollupHeaderPath.
func RollupHeaderTempPath(metricDir string) string {
	return filepath.Join(metricDir, "rollup.header.tmp")
}

// RollupDataPath returns a metric directory's hourly (level-1) rollup
// entries path.
func RollupDataPath(metricDir string) string {
	return filepath.Join(metricDir, "rollup.data")
}

// RollupDailyDataPath returns a metric directory's daily (level-2) rollup
// entries path, aggregated from RollupDataPath's hourly buckets.
func RollupDailyDataPath(metricDir string) string {
	return filepath.Join(metricDir, "rollup.daily.data")
}
