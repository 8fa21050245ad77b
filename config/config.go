// Package config loads the TOML file that drives a relaydb process: where
// its data lives, how big a Tsdb window is, the page format and resolution
// new windows are created with, and the thresholds the scheduler uses to
// age a Tsdb from writable to read-only to archived.
//
// The struct layout and load-then-resolve pattern (seconds-as-int fields
// decoded from TOML, paired with unexported time.Duration fields computed
// once after decode) follows the trickster config package: keep the
// on-disk shape plain and TOML-friendly, resolve derived fields once at
// load time rather than re-deriving them on every read.
package config

import (
	"time"

	"github.com/BurntSushi/toml"

	"github.com/relaydb/relaydb/clock"
	"github.com/relaydb/relaydb/format"
	"github.com/relaydb/relaydb/scheduler"
)

// Config is the root of a relaydb TOML config file.
type Config struct {
	Main      MainConfig      `toml:"main"`
	Storage   StorageConfig   `toml:"storage"`
	WAL       WALConfig       `toml:"wal"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Logging   LoggingConfig   `toml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// MainConfig holds process-wide identity settings.
type MainConfig struct {
	// InstanceID distinguishes multiple relaydb processes sharing the
	// same data directory's parent (e.g. for log correlation).
	InstanceID int `toml:"instance_id"`
}

// StorageConfig controls where data lives and how a Tsdb window is shaped.
type StorageConfig struct {
	DataDir string `toml:"data_dir"`

	// WindowSecs is the width of one Tsdb's time range, in seconds.
	WindowSecs int64 `toml:"window_secs"`

	PageSize uint16 `toml:"page_size"`

	// Compressor names a format.PageEncoding: "raw", "delta_xor",
	// "gorilla", or "gorilla_int".
	Compressor string `toml:"compressor"`

	// Resolution names a clock.Resolution: "second" or "millisecond".
	Resolution string `toml:"resolution"`

	// resolved fields, computed by Load, not present in the TOML file.
	compressor format.PageEncoding `toml:"-"`
	resolution clock.Resolution    `toml:"-"`
}

// Compressor returns the resolved page encoding.
func (s StorageConfig) Compressor() format.PageEncoding { return s.compressor }

// Resolution returns the resolved clock resolution.
func (s StorageConfig) Resolution() clock.Resolution { return s.resolution }

// WALConfig controls the append log every writer goroutine mirrors its
// pages into, per spec.md §4.7.
// How many rotated log files a writer tag keeps is governed by
// SchedulerConfig.WALRetentionFiles, since scheduler.Coordinator.RetentionTask
// is the component that actually prunes them; WALConfig only covers the
// flush/rotation cadence wal.AppendLog itself needs.
type WALConfig struct {
	FlushIntervalSecs    int64 `toml:"flush_interval_secs"`
	RotationIntervalSecs int64 `toml:"rotation_interval_secs"`

	intervals WALIntervals `toml:"-"`
}

// WALIntervals is the resolved, time.Duration form of WALConfig's
// *_interval_secs fields.
type WALIntervals struct {
	Flush, Rotation time.Duration
}

// Intervals returns the resolved flush/rotation periods.
func (w WALConfig) Intervals() WALIntervals { return w.intervals }

// SchedulerConfig holds the periodic-task intervals and aging thresholds
// that drive scheduler.Coordinator, expressed as plain seconds in TOML and
// resolved into time.Duration once at load time.
type SchedulerConfig struct {
	FlushIntervalSecs    int64 `toml:"flush_interval_secs"`
	RotateIntervalSecs   int64 `toml:"rotate_interval_secs"`
	CompactIntervalSecs  int64 `toml:"compact_interval_secs"`
	RollupIntervalSecs   int64 `toml:"rollup_interval_secs"`
	RetentionIntervalSecs int64 `toml:"retention_interval_secs"`

	ArchiveSecs   int64 `toml:"archive_secs"`
	ReadOnlySecs  int64 `toml:"read_only_secs"`
	ThrashingSecs int64 `toml:"thrashing_secs"`
	RollupAgeSecs int64 `toml:"rollup_age_secs"`

	WALRetentionFiles int `toml:"wal_retention_files"`

	// CompactOffHoursStart/End bound the hour-of-day [start, end) window
	// (0-23, local to the process) compaction is allowed to run in; End
	// may be less than Start to express a window crossing midnight.
	CompactOffHoursStart int `toml:"compact_off_hours_start"`
	CompactOffHoursEnd   int `toml:"compact_off_hours_end"`

	Workers int `toml:"workers"`

	intervals  SchedulerIntervals  `toml:"-"`
	thresholds scheduler.Thresholds `toml:"-"`
}

// SchedulerIntervals is the resolved, time.Duration form of the *_interval_secs fields.
type SchedulerIntervals struct {
	Flush, Rotate, Compact, Rollup, Retention time.Duration
}

// Intervals returns the resolved task periods.
func (s SchedulerConfig) Intervals() SchedulerIntervals { return s.intervals }

// Thresholds returns the resolved scheduler.Thresholds.
func (s SchedulerConfig) Thresholds() scheduler.Thresholds { return s.thresholds }

// LoggingConfig controls the zap logger build options.
type LoggingConfig struct {
	// Level names a zapcore.Level: "debug", "info", "warn", "error".
	Level string `toml:"level"`
	// Encoding is either "json" or "console", matching zap.Config.Encoding.
	Encoding string `toml:"encoding"`
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
	Path    string `toml:"path"`
}

// Default returns a Config with the same fallback values a zero-value TOML
// file (or an absent one) should resolve to.
func Default() Config {
	return Config{
		Main: MainConfig{InstanceID: 0},
		Storage: StorageConfig{
			DataDir:    "./data",
			WindowSecs: 7200,
			PageSize:   4096,
			Compressor: "gorilla",
			Resolution: "second",
		},
		WAL: WALConfig{
			FlushIntervalSecs:    300,
			RotationIntervalSecs: 300,
		},
		Scheduler: SchedulerConfig{
			FlushIntervalSecs:     5,
			RotateIntervalSecs:    60,
			CompactIntervalSecs:   300,
			RollupIntervalSecs:    3600,
			RetentionIntervalSecs: 3600,
			ArchiveSecs:           86400,
			ReadOnlySecs:          3600,
			ThrashingSecs:         60,
			RollupAgeSecs:         86400,
			WALRetentionFiles:     3,
			CompactOffHoursStart:  1,
			CompactOffHoursEnd:    5,
			Workers:               4,
		},
		Logging: LoggingConfig{Level: "info", Encoding: "json"},
		Metrics: MetricsConfig{Enabled: true, Listen: ":9090", Path: "/metrics"},
	}
}

// Load decodes the TOML file at path over Default() and resolves every
// derived field (durations, format.PageEncoding, clock.Resolution,
// scheduler.Thresholds). Fields absent from the file keep their Default
// value, matching toml.Decode's merge-over-zero-value behavior applied to
// a pre-populated struct.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Parse decodes TOML from an in-memory string, for tests and for writing
// the resolved-subset mirror a Tsdb directory carries (see WriteMirror).
func Parse(data string) (*Config, error) {
	cfg := Default()
	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) resolve() error {
	compressor, err := parseCompressor(c.Storage.Compressor)
	if err != nil {
		return err
	}
	c.Storage.compressor = compressor

	resolution, err := parseResolution(c.Storage.Resolution)
	if err != nil {
		return err
	}
	c.Storage.resolution = resolution

	c.WAL.intervals = WALIntervals{
		Flush:    time.Duration(c.WAL.FlushIntervalSecs) * time.Second,
		Rotation: time.Duration(c.WAL.RotationIntervalSecs) * time.Second,
	}

	s := &c.Scheduler
	s.intervals = SchedulerIntervals{
		Flush:     time.Duration(s.FlushIntervalSecs) * time.Second,
		Rotate:    time.Duration(s.RotateIntervalSecs) * time.Second,
		Compact:   time.Duration(s.CompactIntervalSecs) * time.Second,
		Rollup:    time.Duration(s.RollupIntervalSecs) * time.Second,
		Retention: time.Duration(s.RetentionIntervalSecs) * time.Second,
	}
	s.thresholds = scheduler.Thresholds{
		Archive:           time.Duration(s.ArchiveSecs) * time.Second,
		ReadOnly:          time.Duration(s.ReadOnlySecs) * time.Second,
		Thrashing:         time.Duration(s.ThrashingSecs) * time.Second,
		RollupAge:         time.Duration(s.RollupAgeSecs) * time.Second,
		WALRetentionFiles: s.WALRetentionFiles,
	}

	return nil
}

func parseCompressor(name string) (format.PageEncoding, error) {
	switch name {
	case "raw":
		return format.V0Raw, nil
	case "delta_xor":
		return format.V1DeltaXOR, nil
	case "gorilla", "":
		return format.V2Gorilla, nil
	case "gorilla_int":
		return format.V3GorillaInt, nil
	default:
		return 0, &InvalidFieldError{Field: "storage.compressor", Value: name}
	}
}

func parseResolution(name string) (clock.Resolution, error) {
	switch name {
	case "second", "":
		return clock.Second, nil
	case "millisecond":
		return clock.Millisecond, nil
	default:
		return 0, &InvalidFieldError{Field: "storage.resolution", Value: name}
	}
}

// InvalidFieldError reports a config field whose string value doesn't map
// to a known enum.
type InvalidFieldError struct {
	Field, Value string
}

func (e *InvalidFieldError) Error() string {
	return "config: invalid value " + e.Value + " for " + e.Field
}
