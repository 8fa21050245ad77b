package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigMirrorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")

	kv := map[string]string{
		"page_size":  "4096",
		"compressor": "V2Gorilla",
		"resolution": "second",
	}
	require.NoError(t, WriteConfigMirror(path, kv))

	got, err := ReadConfigMirror(path)
	require.NoError(t, err)
	require.Equal(t, kv, got)
}
