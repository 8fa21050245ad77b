// Package query implements the read path spec.md §4.9 describes: a tag
// matcher tree selects time series within a metric, a per-series
// Downsampler buckets their points, and a cross-series Aggregator merges
// the downsampled results into the rows a caller streams back.
package query

// DownsampleKind names a per-series downsample function.
type DownsampleKind uint8

const (
	DownsampleNone DownsampleKind = iota
	DownsampleAvg
	DownsampleCount
	DownsampleDev
	DownsampleFirst
	DownsampleLast
	DownsampleMax
	DownsampleMin
	DownsampleSum
	DownsamplePercentile
)

// AggregatorKind names a cross-series aggregate function.
type AggregatorKind uint8

const (
	AggregatorNone AggregatorKind = iota
	AggregatorAvg
	AggregatorCount
	AggregatorDev
	AggregatorMax
	AggregatorMin
	AggregatorSum
	AggregatorPercentile
)

// FillPolicy names how a downsample bucket with no raw points is filled.
type FillPolicy uint8

const (
	FillNone FillPolicy = iota
	FillNaN
	FillNull
	FillZero
)
