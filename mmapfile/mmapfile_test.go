package mmapfile

import (
	"path/filepath"
	"testing"

	"github.com/relaydb/relaydb/errs"
	"github.com/stretchr/testify/require"
)

func TestOpenWritesAndFlushes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")

	f, err := Open(path, 4096, false)
	require.NoError(t, err)
	require.Equal(t, 4096, f.Len())

	f.Lock()
	copy(f.Bytes(), []byte("hello"))
	f.Unlock()

	require.NoError(t, f.Flush(true))
	require.NoError(t, f.Close())

	reopened, err := OpenExisting(path, true)
	require.NoError(t, err)
	defer reopened.Close()

	reopened.RLock()
	require.Equal(t, "hello", string(reopened.Bytes()[:5]))
	reopened.RUnlock()
}

func TestResizeGrowsMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")

	f, err := Open(path, 4096, false)
	require.NoError(t, err)
	defer f.Close()

	f.Lock()
	require.NoError(t, f.Resize(8192))
	require.Equal(t, 8192, f.Len())
	f.Unlock()
}

func TestResizeRejectsReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")

	f, err := Open(path, 4096, false)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ro, err := OpenExisting(path, true)
	require.NoError(t, err)
	defer ro.Close()

	ro.Lock()
	err = ro.Resize(8192)
	ro.Unlock()
	require.ErrorIs(t, err, errs.ErrReadOnly)
}

func TestCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")

	f, err := Open(path, 4096, false)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	require.True(t, f.Closed())
}

func TestEnsureOpenReopensAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")

	f, err := Open(path, 4096, false)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.True(t, f.Closed())

	f.Lock()
	require.NoError(t, f.EnsureOpen())
	f.Unlock()

	require.False(t, f.Closed())
	require.Equal(t, 4096, f.Len())
	require.NoError(t, f.Close())
}

func TestRemapPicksUpExternalGrowth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")

	writer, err := Open(path, 4096, false)
	require.NoError(t, err)
	defer writer.Close()

	reader, err := OpenExisting(path, true)
	require.NoError(t, err)
	defer reader.Close()

	writer.Lock()
	require.NoError(t, writer.Resize(8192))
	writer.Unlock()

	reader.Lock()
	require.NoError(t, reader.Remap())
	require.Equal(t, 8192, reader.Len())
	reader.Unlock()
}
