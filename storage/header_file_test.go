package storage

import (
	"path/filepath"
	"testing"

	"github.com/relaydb/relaydb/clock"
	"github.com/relaydb/relaydb/format"
	"github.com/relaydb/relaydb/section"
	"github.com/stretchr/testify/require"
)

func TestHeaderFileReserveAndLink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "header.00000")

	f, err := CreateHeaderFile(path, format.V2Gorilla, clock.Second, 4096)
	require.NoError(t, err)
	defer f.Close()

	idx1, err := f.NewHeaderIndex()
	require.NoError(t, err)
	require.Equal(t, HeaderIndex(0), idx1)

	info1 := section.NewPageInfo(0, 0, 4096)
	info1.TstampFrom = 100
	info1.TstampTo = 200
	require.NoError(t, f.WritePageInfo(idx1, info1))

	idx2, err := f.NewHeaderIndex()
	require.NoError(t, err)
	require.Equal(t, HeaderIndex(1), idx2)

	require.NoError(t, f.UpdateNext(idx1, 0, idx2))

	got, err := f.ReadPageInfo(idx1)
	require.NoError(t, err)
	require.True(t, got.HasNext())
	require.Equal(t, uint16(idx2), got.NextHeader)

	f.UpdateRange(0, 100, 200)
	h := f.Header()
	require.Equal(t, uint32(1), h.PageIndex)
	require.Equal(t, uint64(100), h.StartTstamp)
	require.Equal(t, uint64(200), h.EndTstamp)
}

func TestHeaderFileReopenPreservesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "header.00000")

	f, err := CreateHeaderFile(path, format.V3GorillaInt, clock.Millisecond, 8192)
	require.NoError(t, err)
	_, err = f.NewHeaderIndex()
	require.NoError(t, err)
	f.UpdateRange(0, 500, 600)
	require.NoError(t, f.Close())

	reopened, err := OpenHeaderFile(path, false)
	require.NoError(t, err)
	defer reopened.Close()

	h := reopened.Header()
	require.Equal(t, format.V3GorillaInt, h.Compressor)
	require.Equal(t, clock.Millisecond, h.Resolution)
	require.Equal(t, uint32(1), h.HeaderIndex)
	require.Equal(t, uint64(500), h.StartTstamp)
}

func TestHeaderFileBecomesFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "header.00000")

	f, err := CreateHeaderFile(path, format.V0Raw, clock.Second, 4096)
	require.NoError(t, err)
	defer f.Close()

	for i := 0; i < maxHeadersPerFile; i++ {
		idx, err := f.NewHeaderIndex()
		require.NoError(t, err)
		require.NotEqual(t, uint32(section.InvalidHeaderIndex), uint32(idx))
	}

	require.True(t, f.IsFull())

	idx, err := f.NewHeaderIndex()
	require.NoError(t, err)
	require.Equal(t, HeaderIndex(section.InvalidHeaderIndex), idx)
}
