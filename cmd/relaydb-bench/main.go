// Command relaydb-bench ingests synthetic points into a fresh Tsdb window,
// flushes it, and runs a range query back through query.Engine — an
// end-to-end exercise of storage, series, codec, query, scheduler, config,
// and metrics together, in the spirit of the teacher's small measurement
// programs under _tests/measure.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/relaydb/relaydb/config"
	"github.com/relaydb/relaydb/internal/protodoc"
	"github.com/relaydb/relaydb/metrics"
	"github.com/relaydb/relaydb/query"
	"github.com/relaydb/relaydb/scheduler"
	"github.com/relaydb/relaydb/series"
	"github.com/relaydb/relaydb/storage"
	"github.com/relaydb/relaydb/tsdb"
	"github.com/relaydb/relaydb/wal"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a TOML config file; defaults built in if empty")
	dataDir := flag.String("data-dir", "", "overrides storage.data_dir from the config")
	metricCount := flag.Int("metrics", 4, "number of distinct series to ingest")
	pointCount := flag.Int("points", 600, "number of points per series")
	intervalSecs := flag.Int64("interval-secs", 10, "spacing between ingested points")
	queryMetric := flag.String("query-metric", "bench.metric", "metric name to query after ingest")
	flag.Parse()

	cfgPtr, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relaydb-bench: %v\n", err)
		return int(protodoc.ExitBadConfig)
	}
	cfg := *cfgPtr
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relaydb-bench: %v\n", err)
		return int(protodoc.ExitBadConfig)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Metrics.Enabled {
		srv := metrics.Serve(cfg.Metrics.Listen, cfg.Metrics.Path)
		logger.Info("relaydb-bench: metrics endpoint started",
			zap.String("addr", cfg.Metrics.Listen), zap.String("path", cfg.Metrics.Path))
		defer shutdownMetrics(srv, logger)
	}

	from := int64(0)
	to := cfg.Storage.WindowSecs

	walDir := storage.WALDir(cfg.Storage.DataDir)
	appendLog, err := wal.Open(walDir, "bench", time.Now().Unix(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relaydb-bench: open wal: %v\n", err)
		return int(protodoc.ExitInitializationFailed)
	}
	defer appendLog.Close() //nolint:errcheck

	mgr := tsdb.NewManager(cfg.Storage.DataDir, cfg.Storage.WindowSecs, cfg.Storage.PageSize,
		cfg.Storage.Compressor(), cfg.Storage.Resolution(),
		tsdb.WithLogger(logger), tsdb.WithWAL(appendLog))
	defer mgr.Close() //nolint:errcheck

	window, err := mgr.Get(from, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relaydb-bench: open tsdb: %v\n", err)
		return int(protodoc.ExitInitializationFailed)
	}

	replayed, err := tsdb.Recover(window, walDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relaydb-bench: wal recovery: %v\n", err)
		return int(protodoc.ExitInitializationFailed)
	}
	if replayed > 0 {
		logger.Info("relaydb-bench: recovered records from append log", zap.Int("records", replayed))
	}

	if err := config.WriteMirror(&cfg, storage.TsdbDir(cfg.Storage.DataDir, from, to)); err != nil {
		logger.Warn("relaydb-bench: failed to write config mirror", zap.Error(err))
	}

	registry := series.NewRegistry()
	mapping := registry.Restore(storage.MetricID(1), *queryMetric)

	logger.Info("relaydb-bench: ingesting",
		zap.Int("metrics", *metricCount), zap.Int("points", *pointCount))

	if err := ingest(window, mapping, *metricCount, *pointCount, *intervalSecs); err != nil {
		fmt.Fprintf(os.Stderr, "relaydb-bench: ingest: %v\n", err)
		return int(protodoc.ExitInitializationFailed)
	}

	if err := appendLog.MaybeFlush(time.Now(), cfg.WAL.Intervals().Flush); err != nil {
		logger.Warn("relaydb-bench: wal flush failed", zap.Error(err))
	}

	if err := window.Flush(true); err != nil {
		fmt.Fprintf(os.Stderr, "relaydb-bench: flush: %v\n", err)
		return int(protodoc.ExitInitializationFailed)
	}

	coordinator := &scheduler.Coordinator{Registry: registry, Logger: logger, Thresholds: cfg.Scheduler.Thresholds()}
	retentionTask := scheduler.WithTaskMetrics("retention",
		scheduler.WithTaskLogger("retention", logger, coordinator.RetentionTask(walDir)))
	if err := retentionTask(context.Background()); err != nil {
		logger.Warn("relaydb-bench: retention pass failed", zap.Error(err))
	}

	var windows []query.Window
	for _, w := range mgr.Windows(from, to) {
		windows = append(windows, query.Window{Source: w, From: w.From, To: w.To})
	}
	engine := query.NewEngine(windows)
	result, err := engine.Run(query.Query{
		Mapping:    mapping,
		Matchers:   query.MatcherTree{},
		Start:      from,
		End:        to,
		Downsample: query.Downsampler{Kind: query.DownsampleAvg, Interval: 60, Fill: query.FillNone},
		Aggregate:  query.Aggregator{Kind: query.AggregatorAvg},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "relaydb-bench: query: %v\n", err)
		return int(protodoc.ExitInitializationFailed)
	}

	fmt.Printf("queried %q: %d downsampled points\n", *queryMetric, len(result))
	for i, p := range result {
		if i >= 5 {
			fmt.Printf("  ... %d more\n", len(result)-5)
			break
		}
		fmt.Printf("  t=%d v=%.3f valid=%v\n", p.Timestamp, p.Value, p.Valid)
	}

	return int(protodoc.ExitOK)
}

// loadConfig reads path if given, otherwise resolves the built-in
// defaults the same way an empty TOML file would.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	return config.Parse("")
}

// ingest creates metricCount series under mapping and writes pointCount
// synthetic samples into each, packing full pages via window.NewPage /
// window.AppendPage the same way tsdb.Compact's repackSeries does.
func ingest(window *tsdb.Tsdb, mapping *series.Mapping, metricCount, pointCount int, intervalSecs int64) error {
	nextID := newIDAllocator()

	for m := 0; m < metricCount; m++ {
		tags := []series.Tag{{Key: "shard", Value: fmt.Sprintf("%d", m)}}
		ts, _, err := mapping.GetOrCreate(tags, nextID, func(*series.TimeSeries) error { return nil })
		if err != nil {
			return err
		}

		if err := ingestSeries(window, ts, pointCount, intervalSecs); err != nil {
			return err
		}
	}

	return nil
}

func ingestSeries(window *tsdb.Tsdb, ts *series.TimeSeries, pointCount int, intervalSecs int64) error {
	i := 0
	tstamp := int64(0)

	for i < pointCount {
		page, err := window.NewPage(ts, tstamp, false)
		if err != nil {
			return err
		}

		for i < pointCount {
			value := syntheticValue(i)
			if !page.Codec.Compress(tstamp, value) {
				break
			}
			ts.Observe(tstamp)
			tstamp += intervalSecs
			i++
		}
		page.TstampTo = page.Codec.LastTimestamp()

		if err := window.AppendPage(ts, page); err != nil {
			return err
		}
	}

	return nil
}

func syntheticValue(i int) float64 {
	return 10 + 5*math.Sin(float64(i)/12.0)
}

func newIDAllocator() func() (storage.TimeSeriesID, error) {
	var next uint32
	return func() (storage.TimeSeriesID, error) {
		next++
		return storage.TimeSeriesID(next), nil
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Encoding == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}

func shutdownMetrics(srv *http.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := metrics.Shutdown(ctx, srv); err != nil {
		logger.Warn("relaydb-bench: metrics shutdown failed", zap.Error(err))
	}
}
