package query

import (
	"path/filepath"
	"testing"

	"github.com/relaydb/relaydb/codec"
	"github.com/relaydb/relaydb/rollup"
	"github.com/relaydb/relaydb/series"
	"github.com/relaydb/relaydb/storage"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	points map[storage.TimeSeriesID][][2]float64 // [timestamp, value]
}

func (f *fakeSource) QueryForData(ts *series.TimeSeries, start, end int64, dst *codec.DataPointContainer) error {
	for _, p := range f.points[ts.ID] {
		tstamp := int64(p[0])
		if tstamp >= start && tstamp < end {
			dst.Append(tstamp, p[1])
		}
	}
	return nil
}

func newTestMapping(t *testing.T, tagSets ...[]series.Tag) (*series.Mapping, []*series.TimeSeries) {
	t.Helper()

	m := series.NewMapping(1, "test.metric")
	var nextID storage.TimeSeriesID
	var out []*series.TimeSeries

	for _, tags := range tagSets {
		ts, _, err := m.GetOrCreate(tags, func() (storage.TimeSeriesID, error) {
			id := nextID
			nextID++
			return id, nil
		}, nil)
		require.NoError(t, err)
		out = append(out, ts)
	}

	return m, out
}

func TestEngineSelectsMatchingSeriesAndDownsamples(t *testing.T) {
	mapping, tss := newTestMapping(t,
		[]series.Tag{{Key: "host", Value: "web01"}},
		[]series.Tag{{Key: "host", Value: "web02"}},
	)

	src := &fakeSource{points: map[storage.TimeSeriesID][][2]float64{
		tss[0].ID: {{0, 1}, {1, 3}},
		tss[1].ID: {{0, 100}},
	}}

	eng := NewEngine([]Window{{Source: src, From: 0, To: 100}})

	q := Query{
		Mapping:    mapping,
		Matchers:   MatcherTree{Matchers: []TagMatcher{{Key: "host", Value: "web01", Kind: MatchExact}}},
		Start:      0,
		End:        10,
		Downsample: Downsampler{Kind: DownsampleSum, Interval: 10, Fill: FillNone},
		Aggregate:  Aggregator{Kind: AggregatorNone},
	}

	out, err := eng.Run(q)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 4.0, out[0].Value)
}

func TestEngineAggregatesAcrossMultipleSeries(t *testing.T) {
	mapping, tss := newTestMapping(t,
		[]series.Tag{{Key: "host", Value: "web01"}},
		[]series.Tag{{Key: "host", Value: "web02"}},
	)

	src := &fakeSource{points: map[storage.TimeSeriesID][][2]float64{
		tss[0].ID: {{0, 1}},
		tss[1].ID: {{0, 3}},
	}}

	eng := NewEngine([]Window{{Source: src, From: 0, To: 100}})

	q := Query{
		Mapping:    mapping,
		Matchers:   MatcherTree{Matchers: []TagMatcher{{Key: "host", Kind: MatchPresentKey}}},
		Start:      0,
		End:        10,
		Downsample: Downsampler{Kind: DownsampleSum, Interval: 10, Fill: FillNone},
		Aggregate:  Aggregator{Kind: AggregatorSum},
	}

	out, err := eng.Run(q)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 4.0, out[0].Value)
}

func TestEngineReturnsNilWhenNoSeriesMatch(t *testing.T) {
	mapping, _ := newTestMapping(t, []series.Tag{{Key: "host", Value: "web01"}})

	eng := NewEngine(nil)
	q := Query{
		Mapping:  mapping,
		Matchers: MatcherTree{Matchers: []TagMatcher{{Key: "host", Value: "nonexistent", Kind: MatchExact}}},
		Start:    0,
		End:      10,
	}

	out, err := eng.Run(q)
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestEngineMergesAcrossMultipleWindows(t *testing.T) {
	mapping, tss := newTestMapping(t, []series.Tag{{Key: "host", Value: "web01"}})

	srcA := &fakeSource{points: map[storage.TimeSeriesID][][2]float64{tss[0].ID: {{0, 1}}}}
	srcB := &fakeSource{points: map[storage.TimeSeriesID][][2]float64{tss[0].ID: {{10, 2}}}}

	eng := NewEngine([]Window{
		{Source: srcB, From: 10, To: 20},
		{Source: srcA, From: 0, To: 10},
	})

	q := Query{
		Mapping:    mapping,
		Matchers:   MatcherTree{Matchers: []TagMatcher{{Key: "host", Value: "web01", Kind: MatchExact}}},
		Start:      0,
		End:        20,
		Downsample: Downsampler{Kind: DownsampleNone},
	}

	out, err := eng.Run(q)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, int64(0), out[0].Timestamp)
	require.Equal(t, int64(10), out[1].Timestamp)
}

// TestEngineHourlyAvgOverRolledUpWindowMatchesRawMeans reproduces the
// 24-point rollup query scenario: a Tsdb covered by hourly rollups,
// queried with a 1h-avg downsample and aggregator none, returns exactly
// one point per hour whose value equals the arithmetic mean of that
// hour's raw points, answered entirely from the rollup file rather than
// the raw source.
func TestEngineHourlyAvgOverRolledUpWindowMatchesRawMeans(t *testing.T) {
	mapping, tss := newTestMapping(t, []series.Tag{{Key: "host", Value: "a"}})
	ts := tss[0]

	const hours = 24
	rawPoints := make([][2]float64, 0, hours*2)
	hourly, err := rollup.Open(filepath.Join(t.TempDir(), "rollup.data"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = hourly.Close() })

	for h := 0; h < hours; h++ {
		bucketStart := int64(h) * rollup.HourSeconds
		b := rollup.NewBucket(bucketStart)
		for _, v := range []float64{float64(h), float64(h) + 10} {
			b.Observe(v)
			rawPoints = append(rawPoints, [2]float64{float64(bucketStart), v})
		}
		require.NoError(t, hourly.Put(ts.ID, b))
	}

	// raw source deliberately left empty: a rollup hit must never fall
	// through to it.
	src := &fakeSource{}

	eng := NewEngine([]Window{{Source: src, Rollup: hourly, From: 0, To: hours * rollup.HourSeconds}})

	q := Query{
		Mapping:    mapping,
		Matchers:   MatcherTree{Matchers: []TagMatcher{{Key: "host", Value: "a", Kind: MatchExact}}},
		Start:      0,
		End:        hours * rollup.HourSeconds,
		Downsample: Downsampler{Kind: DownsampleAvg, Interval: rollup.HourSeconds, Fill: FillNone},
		Aggregate:  Aggregator{Kind: AggregatorNone},
	}

	out, err := eng.Run(q)
	require.NoError(t, err)
	require.Len(t, out, hours)

	for h, pt := range out {
		require.Equal(t, int64(h)*rollup.HourSeconds, pt.Timestamp)
		require.InDelta(t, float64(h)+5, pt.Value, 1e-9, "hour %d average", h)
	}
}
