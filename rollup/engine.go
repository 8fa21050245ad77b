package rollup

import (
	"github.com/relaydb/relaydb/codec"
	"github.com/relaydb/relaydb/series"
	"github.com/relaydb/relaydb/storage"
)

// HourSeconds and DaySeconds are the level-1 and level-2 bucket widths, in
// the process resolution's base unit (seconds; callers in millisecond
// deployments scale accordingly).
const (
	HourSeconds = 3600
	DaySeconds  = 24 * HourSeconds
)

// sourceTsdb is the subset of *tsdb.Tsdb the rollup engine needs, kept as
// an interface so this package does not import tsdb and create a cycle
// (tsdb is the lower layer; rollup and scheduler sit above it).
type sourceTsdb interface {
	QueryForData(ts *series.TimeSeries, start, end int64, dst *codec.DataPointContainer) error
}

// ComputeHourly scans src for every point ts wrote in
// [bucketStart, bucketStart+HourSeconds) and returns the resulting bucket.
// The caller decides whether to persist it and is responsible for checking
// the series' out-of-order flag first: a rollup computed over an
// out-of-order Tsdb silently double-counts revised points, so spec.md's
// engine skips rollup entirely for such series rather than compute one.
func ComputeHourly(src sourceTsdb, ts *series.TimeSeries, bucketStart int64) (Bucket, error) {
	return computeBucket(src, ts, bucketStart, HourSeconds)
}

func computeBucket(src sourceTsdb, ts *series.TimeSeries, bucketStart, width int64) (Bucket, error) {
	var dst codec.DataPointContainer
	if err := src.QueryForData(ts, bucketStart, bucketStart+width, &dst); err != nil {
		return Bucket{}, err
	}

	bucket := NewBucket(bucketStart)
	for i, t := range dst.Timestamps {
		if t < bucketStart || t >= bucketStart+width {
			continue
		}
		bucket.Observe(dst.Values[i])
	}

	return bucket, nil
}

// BuildDaily aggregates every hourly bucket in hourly covering
// [dayStart, dayStart+DaySeconds) into one daily bucket, per spec.md
// §4.8's "level-2 is an aggregate of level-1." Hours with no stored
// bucket (never observed, or skipped for out-of-order) are simply absent
// from the merge.
func BuildDaily(hourly *File, tsid storage.TimeSeriesID, dayStart int64) Bucket {
	daily := NewBucket(dayStart)
	for _, hb := range hourly.Range(tsid, dayStart, dayStart+DaySeconds) {
		daily.Merge(hb)
	}

	return daily
}

// AlignToHour truncates t down to the start of its containing hour bucket.
func AlignToHour(t int64) int64 { return t - t%HourSeconds }

// AlignToDay truncates t down to the start of its containing day bucket.
func AlignToDay(t int64) int64 { return t - t%DaySeconds }
