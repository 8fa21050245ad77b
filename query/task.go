package query

import (
	"github.com/relaydb/relaydb/codec"
	"github.com/relaydb/relaydb/rollup"
	"github.com/relaydb/relaydb/series"
	"github.com/relaydb/relaydb/storage"
)

// dataSource is the narrow slice of Tsdb a query needs: raw point
// retrieval for one series over one window. Defined locally so query
// never imports tsdb directly, the same seam rollup.sourceTsdb uses to
// avoid a cycle with the lower storage-engine layer.
type dataSource interface {
	QueryForData(ts *series.TimeSeries, start, end int64, dst *codec.DataPointContainer) error
}

// rollupSource is the narrow slice of *rollup.File a query needs: look up
// an already-computed hourly bucket for one series instead of decoding raw
// pages. Defined locally for the same reason dataSource is.
type rollupSource interface {
	Get(tsid storage.TimeSeriesID, bucketStart int64) (rollup.Bucket, bool)
}

// Task is one time series' contribution to a Query: points fetched from a
// single Tsdb window and reduced through the query's Downsampler, answered
// from precomputed rollup buckets when possible and from raw pages
// otherwise.
type Task struct {
	Series *series.TimeSeries
	Source dataSource
	Rollup rollupSource // optional; nil disables the rollup fast path for this window
}

// Run reduces t.Series over [start, end) with d. When d asks for an
// hour-aligned average and a rollup source is attached, it is answered
// directly from rollup.Bucket.Avg for every hour — spec.md §4.8's reason
// for computing rollups in the first place — falling back to decoding raw
// pages via t.Source only when any covered hour has no bucket yet (not
// old enough to roll up, or skipped for having gone out-of-order).
func (t Task) Run(start, end int64, d Downsampler) ([]Point, error) {
	if t.Rollup != nil && d.Kind == DownsampleAvg && d.Interval == rollup.HourSeconds &&
		start%rollup.HourSeconds == 0 && end%rollup.HourSeconds == 0 {
		if pts, ok := t.runFromRollup(start, end, d); ok {
			return pts, nil
		}
	}

	var dst codec.DataPointContainer

	if err := t.Source.QueryForData(t.Series, start, end, &dst); err != nil {
		return nil, err
	}

	return d.Downsample(&dst, start, end), nil
}

// runFromRollup answers an hour-aligned avg downsample purely from
// rollup buckets. ok is false if any covered hour has no bucket, in which
// case the caller falls back to the raw path for the whole range rather
// than returning a partially rolled-up result.
func (t Task) runFromRollup(start, end int64, d Downsampler) ([]Point, bool) {
	var out []Point

	for bucketStart := start; bucketStart < end; bucketStart += rollup.HourSeconds {
		b, ok := t.Rollup.Get(t.Series.ID, bucketStart)
		if !ok {
			return nil, false
		}

		if b.Empty() {
			pt, keep := d.fillValue(bucketStart)
			if keep {
				out = append(out, pt)
			}
			continue
		}

		out = append(out, Point{Timestamp: bucketStart, Value: b.Avg(), Valid: true})
	}

	return out, true
}
