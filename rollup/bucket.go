// Package rollup computes and stores the hourly and daily aggregates
// spec.md's rollup engine uses to answer coarse-resolution queries without
// decoding raw pages: per time series, per bucket, a (count, min, max, sum)
// summary of every point the bucket covers.
package rollup

import "math"

// Bucket is one aggregate window's (count, min, max, sum) summary for a
// single time series.
type Bucket struct {
	BucketStart int64
	Count       uint32
	Min         float64
	Max         float64
	Sum         float64
}

// Avg returns the bucket's mean, or NaN if it covers no points.
func (b Bucket) Avg() float64 {
	if b.Count == 0 {
		return math.NaN()
	}

	return b.Sum / float64(b.Count)
}

// Empty reports whether the bucket covers no points.
func (b Bucket) Empty() bool { return b.Count == 0 }

// NewBucket starts an empty bucket for the window beginning at
// bucketStart.
func NewBucket(bucketStart int64) Bucket {
	return Bucket{BucketStart: bucketStart, Min: math.Inf(1), Max: math.Inf(-1)}
}

// Observe folds one raw data point into the bucket.
func (b *Bucket) Observe(val float64) {
	b.Count++
	b.Sum += val
	if val < b.Min {
		b.Min = val
	}
	if val > b.Max {
		b.Max = val
	}
}

// Merge folds other into b, combining two buckets that cover the same
// series over adjacent windows (used to build a daily bucket from 24
// hourly ones).
func (b *Bucket) Merge(other Bucket) {
	if other.Empty() {
		return
	}
	if b.Count == 0 {
		b.Min, b.Max = other.Min, other.Max
	} else {
		if other.Min < b.Min {
			b.Min = other.Min
		}
		if other.Max > b.Max {
			b.Max = other.Max
		}
	}
	b.Count += other.Count
	b.Sum += other.Sum
}
