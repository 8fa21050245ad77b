package query

import (
	"sort"

	"github.com/relaydb/relaydb/series"
)

// Window pairs a dataSource with the time range it can answer for,
// letting a Query span several Tsdb windows transparently. Rollup is
// optional: attach the window's hourly rollup.File to let matching
// queries skip raw-page decoding entirely for that window.
type Window struct {
	Source dataSource
	Rollup rollupSource
	From   int64
	To     int64
}

// Query describes one read request: select every series under a metric
// matching Matchers, downsample each independently, then aggregate
// across the selected series.
type Query struct {
	Mapping    *series.Mapping
	Matchers   MatcherTree
	Start      int64
	End        int64
	Downsample Downsampler
	Aggregate  Aggregator
}

// Engine runs Query values against a set of Tsdb windows.
type Engine struct {
	Windows []Window
}

// NewEngine creates an Engine over the given windows, which need not be
// contiguous or ordered.
func NewEngine(windows []Window) *Engine {
	sorted := append([]Window(nil), windows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].From < sorted[j].From })

	return &Engine{Windows: sorted}
}

// Run selects the series matching q.Matchers, downsamples each across
// every overlapping window, and aggregates the results.
func (e *Engine) Run(q Query) ([]Point, error) {
	var selected []*series.TimeSeries

	for _, ts := range q.Mapping.Snapshot() {
		if q.Matchers.Matches(ts.Tags) {
			selected = append(selected, ts)
		}
	}

	if len(selected) == 0 {
		return nil, nil
	}

	perSeries := make([][]Point, 0, len(selected))

	for _, ts := range selected {
		pts, err := e.runOne(ts, q)
		if err != nil {
			return nil, err
		}
		perSeries = append(perSeries, pts)
	}

	if q.Aggregate.Kind == AggregatorNone && len(perSeries) == 1 {
		return perSeries[0], nil
	}

	return q.Aggregate.Aggregate(perSeries), nil
}

// runOne downsamples a single series across every window overlapping
// [q.Start, q.End), merging the per-window results in chronological
// order.
func (e *Engine) runOne(ts *series.TimeSeries, q Query) ([]Point, error) {
	var merged []Point

	for _, w := range e.Windows {
		start, end := intersect(q.Start, q.End, w.From, w.To)
		if start >= end {
			continue
		}

		task := Task{Series: ts, Source: w.Source, Rollup: w.Rollup}

		pts, err := task.Run(start, end, q.Downsample)
		if err != nil {
			return nil, err
		}

		merged = append(merged, pts...)
	}

	return merged, nil
}

func intersect(aStart, aEnd, bStart, bEnd int64) (int64, int64) {
	start := aStart
	if bStart > start {
		start = bStart
	}

	end := aEnd
	if bEnd < end {
		end = bEnd
	}

	return start, end
}
