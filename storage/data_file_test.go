package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDataFileAllocateAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.00000")

	f, err := CreateDataFile(path, 256)
	require.NoError(t, err)
	defer f.Close()

	idx0, page0, err := f.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, uint32(0), idx0)
	require.Len(t, page0, 256)

	copy(page0, []byte("first page"))

	idx1, page1, err := f.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, uint32(1), idx1)
	copy(page1, []byte("second page"))

	got0, err := f.Page(0)
	require.NoError(t, err)
	require.Equal(t, "first page", string(got0[:len("first page")]))

	got1, err := f.Page(1)
	require.NoError(t, err)
	require.Equal(t, "second page", string(got1[:len("second page")]))
}

func TestDataFileGrowsPastInitialBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.00000")

	f, err := CreateDataFile(path, 64)
	require.NoError(t, err)
	defer f.Close()

	var lastIdx uint32
	for i := 0; i < dataFileGrowPages+5; i++ {
		idx, page, err := f.AllocatePage()
		require.NoError(t, err)
		require.Len(t, page, 64)
		lastIdx = idx
	}

	require.Equal(t, uint32(dataFileGrowPages+4), lastIdx)
}

func TestDataFilePageTracksTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.00000")

	f, err := CreateDataFile(path, 64)
	require.NoError(t, err)
	defer f.Close()

	require.Zero(t, f.LastWrite())
	_, _, err = f.AllocatePage()
	require.NoError(t, err)
	require.NotZero(t, f.LastWrite())

	require.Zero(t, f.LastRead())
	_, err = f.Page(0)
	require.NoError(t, err)
	require.NotZero(t, f.LastRead())
}
