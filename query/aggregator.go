package query

import "math"

// Aggregator merges one Point per series, all sharing the same bucket
// timestamp, into a single cross-series value.
type Aggregator struct {
	Kind       AggregatorKind
	Percentile float64 // only consulted when Kind == AggregatorPercentile
}

// Aggregate combines series, one []Point per series produced by a
// Downsampler over the same bucket grid, into a single merged series.
// Buckets where every input series is invalid (FillNull) are dropped.
func (a Aggregator) Aggregate(series [][]Point) []Point {
	if a.Kind == AggregatorNone || len(series) == 0 {
		if len(series) == 1 {
			return series[0]
		}
		return nil
	}

	byTimestamp := make(map[int64][]float64)
	var order []int64
	seen := make(map[int64]bool)

	for _, pts := range series {
		for _, pt := range pts {
			if !pt.Valid {
				continue
			}
			if !seen[pt.Timestamp] {
				seen[pt.Timestamp] = true
				order = append(order, pt.Timestamp)
			}
			byTimestamp[pt.Timestamp] = append(byTimestamp[pt.Timestamp], pt.Value)
		}
	}

	out := make([]Point, 0, len(order))
	for _, ts := range order {
		vals := byTimestamp[ts]
		out = append(out, Point{Timestamp: ts, Value: aggregateValues(a.Kind, a.Percentile, vals), Valid: true})
	}

	sortPoints(out)

	return out
}

func aggregateValues(kind AggregatorKind, percentile float64, vals []float64) float64 {
	switch kind {
	case AggregatorCount:
		return float64(len(vals))
	case AggregatorSum:
		return sum(vals)
	case AggregatorAvg:
		return sum(vals) / float64(len(vals))
	case AggregatorMax:
		m := vals[0]
		for _, v := range vals[1:] {
			if v > m {
				m = v
			}
		}
		return m
	case AggregatorMin:
		m := vals[0]
		for _, v := range vals[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case AggregatorDev:
		return stddev(vals)
	case AggregatorPercentile:
		return percentileOf(vals, percentile)
	default:
		return math.NaN()
	}
}

func sortPoints(pts []Point) {
	for i := 1; i < len(pts); i++ {
		for j := i; j > 0 && pts[j].Timestamp < pts[j-1].Timestamp; j-- {
			pts[j], pts[j-1] = pts[j-1], pts[j]
		}
	}
}
