package series

import (
	"testing"

	"github.com/relaydb/relaydb/storage"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()

	var persisted []string
	persist := func(id storage.MetricID, name string) error {
		persisted = append(persisted, name)
		return nil
	}

	m1, err := r.GetOrCreate("cpu.load", persist)
	require.NoError(t, err)
	require.Equal(t, storage.MetricID(0), m1.MetricID)

	m2, err := r.GetOrCreate("cpu.load", persist)
	require.NoError(t, err)
	require.Same(t, m1, m2)

	m3, err := r.GetOrCreate("mem.used", persist)
	require.NoError(t, err)
	require.Equal(t, storage.MetricID(1), m3.MetricID)

	require.Equal(t, []string{"cpu.load", "mem.used"}, persisted)
}

func TestRegistryRestore(t *testing.T) {
	r := NewRegistry()
	r.Restore(5, "cpu.load")

	m, ok := r.ByID(5)
	require.True(t, ok)
	require.Equal(t, "cpu.load", m.MetricName)

	m2, ok := r.ByName("cpu.load")
	require.True(t, ok)
	require.Same(t, m, m2)

	m3, err := r.GetOrCreate("mem.used", nil)
	require.NoError(t, err)
	require.Equal(t, storage.MetricID(6), m3.MetricID, "next id must continue past restored ids")
}
