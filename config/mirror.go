package config

import (
	"bytes"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/relaydb/relaydb/storage"
)

// tsdbMirror is the resolved subset of Config that matters once a Tsdb
// window is open: the settings it was created with. Unlike the full
// Config, a mirror is never reloaded; it exists so a later process (or a
// human) can tell what a given window's on-disk format actually is
// without cross-referencing the process-wide config file, which may have
// changed since that window was created.
type tsdbMirror struct {
	PageSize   uint16 `toml:"page_size"`
	Compressor string `toml:"compressor"`
	Resolution string `toml:"resolution"`
}

// WriteMirror writes the resolved storage subset of c into tsdbDir's
// config file (storage.ConfigPath), the per-window mirror spec.md's
// layout places alongside the index and metric directories.
func WriteMirror(c *Config, tsdbDir string) error {
	m := tsdbMirror{
		PageSize:   c.Storage.PageSize,
		Compressor: c.Storage.Compressor,
		Resolution: c.Storage.Resolution,
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return err
	}

	return os.WriteFile(storage.ConfigPath(tsdbDir), buf.Bytes(), 0o644)
}

// ReadMirror loads a previously written per-window config mirror.
func ReadMirror(tsdbDir string) (*Config, error) {
	cfg := Default()

	var m tsdbMirror
	if _, err := toml.DecodeFile(storage.ConfigPath(tsdbDir), &m); err != nil {
		return nil, err
	}

	cfg.Storage.PageSize = m.PageSize
	cfg.Storage.Compressor = m.Compressor
	cfg.Storage.Resolution = m.Resolution

	if err := cfg.resolve(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
