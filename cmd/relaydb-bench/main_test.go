package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIDAllocatorIsMonotonic(t *testing.T) {
	next := newIDAllocator()

	a, err := next()
	require.NoError(t, err)
	b, err := next()
	require.NoError(t, err)

	require.Less(t, uint32(a), uint32(b))
}

func TestLoadConfigFallsBackToDefaultsWithNoPath(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, "./data", cfg.Storage.DataDir)
}

func TestLoadConfigRejectsMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestSyntheticValueStaysBounded(t *testing.T) {
	for i := 0; i < 100; i++ {
		v := syntheticValue(i)
		require.GreaterOrEqual(t, v, 5.0)
		require.LessOrEqual(t, v, 15.0)
	}
}
