package rollup

import (
	"testing"

	"github.com/relaydb/relaydb/codec"
	"github.com/relaydb/relaydb/series"
	"github.com/relaydb/relaydb/storage"
	"github.com/stretchr/testify/require"
)

type fakeTsdb struct {
	timestamps []int64
	values     []float64
}

func (f *fakeTsdb) QueryForData(_ *series.TimeSeries, start, end int64, dst *codec.DataPointContainer) error {
	for i, ts := range f.timestamps {
		if ts >= start && ts < end {
			dst.Append(ts, f.values[i])
		}
	}

	return nil
}

func TestComputeHourlyAggregatesPointsInWindow(t *testing.T) {
	src := &fakeTsdb{
		timestamps: []int64{0, 100, 3599, 3600, 7199},
		values:     []float64{1, 2, 3, 100, 50},
	}
	ts := series.New(1, 1, nil)

	b, err := ComputeHourly(src, ts, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(3), b.Count)
	require.Equal(t, 1.0, b.Min)
	require.Equal(t, 3.0, b.Max)
	require.Equal(t, 6.0, b.Sum)

	b2, err := ComputeHourly(src, ts, 3600)
	require.NoError(t, err)
	require.Equal(t, uint32(2), b2.Count)
}

func TestBuildDailyAggregatesHourlyBuckets(t *testing.T) {
	path := t.TempDir() + "/rollup.data"
	hourly, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hourly.Close() })

	tsid := storage.TimeSeriesID(1)
	for h := int64(0); h < 24; h++ {
		b := NewBucket(h * HourSeconds)
		b.Observe(float64(h))
		require.NoError(t, hourly.Put(tsid, b))
	}

	daily := BuildDaily(hourly, tsid, 0)
	require.Equal(t, uint32(24), daily.Count)
	require.Equal(t, 0.0, daily.Min)
	require.Equal(t, 23.0, daily.Max)
}

func TestBuildDailySkipsMissingHours(t *testing.T) {
	path := t.TempDir() + "/rollup.data"
	hourly, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hourly.Close() })

	tsid := storage.TimeSeriesID(1)
	b := NewBucket(0)
	b.Observe(10)
	require.NoError(t, hourly.Put(tsid, b))

	daily := BuildDaily(hourly, tsid, 0)
	require.Equal(t, uint32(1), daily.Count)
}

func TestAlignHelpers(t *testing.T) {
	require.Equal(t, int64(3600), AlignToHour(3650))
	require.Equal(t, int64(0), AlignToDay(3650))
	require.Equal(t, int64(DaySeconds), AlignToDay(DaySeconds+100))
}
