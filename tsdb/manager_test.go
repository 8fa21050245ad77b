package tsdb

import (
	"testing"

	"github.com/relaydb/relaydb/clock"
	"github.com/relaydb/relaydb/format"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, rotationFreq int64) *Manager {
	t.Helper()

	mgr := NewManager(t.TempDir(), rotationFreq, 4096, format.V2Gorilla, clock.Second)
	t.Cleanup(func() { _ = mgr.Close() })

	return mgr
}

func TestWindowForRoundsDownToRotationFrequency(t *testing.T) {
	from, to := WindowFor(150, 100)
	require.Equal(t, int64(100), from)
	require.Equal(t, int64(200), to)
}

// TestWindowForBoundaryBelongsToNextWindow is the boundary case spec.md §8's
// test #2 names directly: a timestamp exactly equal to a window's end
// belongs to the next window, never the one it bounds.
func TestWindowForBoundaryBelongsToNextWindow(t *testing.T) {
	_, to := WindowFor(0, 100)
	require.Equal(t, int64(100), to)

	from, nextTo := WindowFor(to, 100)
	require.Equal(t, int64(100), from, "a point at exactly the prior window's To starts the next window")
	require.Equal(t, int64(200), nextTo)
}

func TestManagerGetCreatesWindowOnDemandAndReturnsSameWindowAgain(t *testing.T) {
	mgr := newTestManager(t, 100)

	first, err := mgr.Get(150, true)
	require.NoError(t, err)
	require.NotNil(t, first)
	require.Equal(t, int64(100), first.From)
	require.Equal(t, int64(200), first.To)

	second, err := mgr.Get(199, true)
	require.NoError(t, err)
	require.Same(t, first, second, "a lookup anywhere inside an open window's range must return the same *Tsdb")
}

func TestManagerGetWithoutCreateReturnsNilForUnknownWindow(t *testing.T) {
	mgr := newTestManager(t, 100)

	t1, err := mgr.Get(50, false)
	require.NoError(t, err)
	require.Nil(t, t1)

	require.Empty(t, mgr.Windows(0, 1000), "Get(create=false) must not open a window as a side effect")
}

// TestManagerGetBoundaryOpensDistinctWindows is the Manager-level version of
// the same boundary: timestamps on either side of a rotation boundary must
// land in two distinct Tsdb windows, not share one.
func TestManagerGetBoundaryOpensDistinctWindows(t *testing.T) {
	mgr := newTestManager(t, 100)

	before, err := mgr.Get(99, true)
	require.NoError(t, err)
	require.Equal(t, int64(0), before.From)
	require.Equal(t, int64(100), before.To)

	atBoundary, err := mgr.Get(100, true)
	require.NoError(t, err)
	require.Equal(t, int64(100), atBoundary.From)
	require.Equal(t, int64(200), atBoundary.To)

	require.NotSame(t, before, atBoundary)
}

func TestManagerWindowsReturnsOverlappingWindowsSortedByFrom(t *testing.T) {
	mgr := newTestManager(t, 100)

	_, err := mgr.Get(250, true)
	require.NoError(t, err)
	_, err = mgr.Get(50, true)
	require.NoError(t, err)
	_, err = mgr.Get(950, true)
	require.NoError(t, err)

	got := mgr.Windows(0, 300)
	require.Len(t, got, 2)
	require.Equal(t, int64(0), got[0].From)
	require.Equal(t, int64(200), got[1].From)
}
