package query

import (
	"math"
	"sort"

	"github.com/relaydb/relaydb/codec"
)

// Downsampler buckets one series' raw points into fixed-width intervals
// and reduces each bucket to a single value with Kind, filling empty
// buckets per Fill.
type Downsampler struct {
	Kind       DownsampleKind
	Interval   int64
	Fill       FillPolicy
	Percentile float64 // only consulted when Kind == DownsamplePercentile
}

// Point is one (timestamp, value) row of a downsampled or aggregated
// series. Valid is false for a FillNull bucket that produced no value.
type Point struct {
	Timestamp int64
	Value     float64
	Valid     bool
}

// Downsample buckets src into [start, end) aligned on d.Interval and
// reduces each bucket. Buckets with no raw points are filled per d.Fill;
// under FillNone, empty buckets are omitted from the result entirely.
func (d Downsampler) Downsample(src *codec.DataPointContainer, start, end int64) []Point {
	if d.Kind == DownsampleNone {
		pts := make([]Point, src.Len())
		for i, ts := range src.Timestamps {
			pts[i] = Point{Timestamp: ts, Value: src.Values[i], Valid: true}
		}

		return pts
	}

	interval := d.Interval
	if interval <= 0 {
		interval = 1
	}

	buckets := make(map[int64][]float64)
	for i, ts := range src.Timestamps {
		if ts < start || ts >= end {
			continue
		}
		bucketStart := start + ((ts-start)/interval)*interval
		buckets[bucketStart] = append(buckets[bucketStart], src.Values[i])
	}

	var out []Point
	for bucketStart := start; bucketStart < end; bucketStart += interval {
		vals, ok := buckets[bucketStart]
		if !ok {
			pt, keep := d.fillValue(bucketStart)
			if keep {
				out = append(out, pt)
			}
			continue
		}

		out = append(out, Point{Timestamp: bucketStart, Value: reduce(d.Kind, d.Percentile, vals), Valid: true})
	}

	return out
}

func (d Downsampler) fillValue(bucketStart int64) (Point, bool) {
	switch d.Fill {
	case FillNaN:
		return Point{Timestamp: bucketStart, Value: math.NaN(), Valid: true}, true
	case FillZero:
		return Point{Timestamp: bucketStart, Value: 0, Valid: true}, true
	case FillNull:
		return Point{Timestamp: bucketStart, Valid: false}, true
	default: // FillNone
		return Point{}, false
	}
}

func reduce(kind DownsampleKind, percentile float64, vals []float64) float64 {
	switch kind {
	case DownsampleCount:
		return float64(len(vals))
	case DownsampleFirst:
		return vals[0]
	case DownsampleLast:
		return vals[len(vals)-1]
	case DownsampleSum:
		return sum(vals)
	case DownsampleAvg:
		return sum(vals) / float64(len(vals))
	case DownsampleMax:
		m := vals[0]
		for _, v := range vals[1:] {
			if v > m {
				m = v
			}
		}
		return m
	case DownsampleMin:
		m := vals[0]
		for _, v := range vals[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case DownsampleDev:
		return stddev(vals)
	case DownsamplePercentile:
		return percentileOf(vals, percentile)
	default:
		return vals[len(vals)-1]
	}
}

func sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

func stddev(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	mean := sum(vals) / float64(len(vals))
	var acc float64
	for _, v := range vals {
		d := v - mean
		acc += d * d
	}
	return math.Sqrt(acc / float64(len(vals)))
}

// percentileOf returns the p-th percentile (0..100) of vals using
// nearest-rank interpolation between the two bracketing order statistics.
func percentileOf(vals []float64, p float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}

	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
