package series

import (
	"testing"

	"github.com/relaydb/relaydb/storage"
	"github.com/stretchr/testify/require"
)

func TestMappingGetOrCreate(t *testing.T) {
	m := NewMapping(1, "cpu.load")

	var next storage.TimeSeriesID
	nextID := func() (storage.TimeSeriesID, error) {
		id := next
		next++
		return id, nil
	}

	ts1, created, err := m.GetOrCreate([]Tag{{Key: "host", Value: "a"}}, nextID, nil)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, storage.TimeSeriesID(0), ts1.ID)

	ts2, created, err := m.GetOrCreate([]Tag{{Key: "host", Value: "a"}}, nextID, nil)
	require.NoError(t, err)
	require.False(t, created)
	require.Same(t, ts1, ts2)

	ts3, created, err := m.GetOrCreate([]Tag{{Key: "host", Value: "b"}}, nextID, nil)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, storage.TimeSeriesID(1), ts3.ID)

	require.Equal(t, 2, m.Count())
	require.Len(t, m.Snapshot(), 2)
}

func TestMappingTagCountTracksMixed(t *testing.T) {
	m := NewMapping(1, "cpu.load")
	var next storage.TimeSeriesID
	nextID := func() (storage.TimeSeriesID, error) {
		id := next
		next++
		return id, nil
	}

	_, _, err := m.GetOrCreate([]Tag{{Key: "host", Value: "a"}}, nextID, nil)
	require.NoError(t, err)
	require.Equal(t, 1, m.TagCount())

	_, _, err = m.GetOrCreate([]Tag{{Key: "host", Value: "b"}, {Key: "region", Value: "us"}}, nextID, nil)
	require.NoError(t, err)
	require.Equal(t, mixedTagCount, m.TagCount())
}

func TestMappingGetOrCreateMeasurement(t *testing.T) {
	m := NewMapping(1, "cpu")
	tags := []Tag{{Key: "host", Value: "a"}}

	meas1 := m.GetOrCreateMeasurement(tags)
	meas2 := m.GetOrCreateMeasurement(tags)
	require.Same(t, meas1, meas2)

	ts := New(0, 1, tags)
	meas1.AddField("avg", ts)
	require.Same(t, ts, meas1.FieldSeries("avg"))
	require.Nil(t, meas1.FieldSeries("max"))
}
