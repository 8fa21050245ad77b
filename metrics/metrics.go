// Package metrics exposes the process's Prometheus collectors: a small set
// of global counters, histograms, and gauges registered once at package
// init, plus a standalone HTTP server to serve them. The shape (package
// level prometheus.New* vars, eagerly MustRegister'd in init, a single
// opt-in HTTP endpoint) follows the etalazz-vsa churn telemetry package;
// unlike that package's hot-path sampling, every call site here runs
// unconditionally, since append/query/WAL/scheduler rates are already
// bounded by the engine's own concurrency limits.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	appendsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relaydb_appends_total",
		Help: "Total number of AppendPage calls across all Tsdb windows.",
	})
	appendErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relaydb_append_errors_total",
		Help: "Total number of AppendPage calls that returned an error.",
	})
	appendDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relaydb_append_duration_seconds",
		Help:    "Latency of a single AppendPage call.",
		Buckets: prometheus.DefBuckets,
	})

	queriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relaydb_queries_total",
		Help: "Total number of QueryForData calls across all Tsdb windows.",
	})
	queryDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relaydb_query_duration_seconds",
		Help:    "Latency of a single QueryForData call.",
		Buckets: prometheus.DefBuckets,
	})
	queryPointsReturned = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relaydb_query_points_returned",
		Help:    "Number of points a single QueryForData call decoded.",
		Buckets: []float64{1, 10, 100, 600, 3600, 10000, 100000},
	})

	walWritesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relaydb_wal_writes_total",
		Help: "Total number of records appended to a WAL log.",
	})
	walRotationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relaydb_wal_rotations_total",
		Help: "Total number of WAL log rotations.",
	})

	schedulerTaskDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relaydb_scheduler_task_duration_seconds",
		Help:    "Latency of a scheduled task run, labeled by task name.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
	schedulerTaskErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relaydb_scheduler_task_errors_total",
		Help: "Total number of scheduled task runs that returned an error, labeled by task name.",
	}, []string{"task"})

	openWindows = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relaydb_open_windows",
		Help: "Number of Tsdb windows currently held open by this process.",
	})
)

func init() {
	prometheus.MustRegister(
		appendsTotal, appendErrorsTotal, appendDurationSeconds,
		queriesTotal, queryDurationSeconds, queryPointsReturned,
		walWritesTotal, walRotationsTotal,
		schedulerTaskDurationSeconds, schedulerTaskErrorsTotal,
		openWindows,
	)
}

// ObserveAppend records one AppendPage call's outcome and latency.
func ObserveAppend(d time.Duration, err error) {
	appendsTotal.Inc()
	appendDurationSeconds.Observe(d.Seconds())
	if err != nil {
		appendErrorsTotal.Inc()
	}
}

// ObserveQuery records one QueryForData call's latency and result size.
func ObserveQuery(d time.Duration, points int) {
	queriesTotal.Inc()
	queryDurationSeconds.Observe(d.Seconds())
	queryPointsReturned.Observe(float64(points))
}

// ObserveWALWrite records one WAL record append.
func ObserveWALWrite() { walWritesTotal.Inc() }

// ObserveWALRotation records one WAL log rotation.
func ObserveWALRotation() { walRotationsTotal.Inc() }

// ObserveSchedulerTask records one scheduled task run, labeled by name.
func ObserveSchedulerTask(name string, d time.Duration, err error) {
	schedulerTaskDurationSeconds.WithLabelValues(name).Observe(d.Seconds())
	if err != nil {
		schedulerTaskErrorsTotal.WithLabelValues(name).Inc()
	}
}

// SetOpenWindows reports the current count of open Tsdb windows.
func SetOpenWindows(n int) { openWindows.Set(float64(n)) }

// Handler returns the promhttp handler serving the registered collectors.
func Handler() http.Handler { return promhttp.Handler() }

// Serve starts a background HTTP server exposing path (typically
// "/metrics") on addr, and returns the *http.Server so the caller can
// shut it down via Shutdown. Mirrors the opt-in, dedicated-listener shape
// of the churn package's startMetricsEndpoint, minus its best-effort
// fire-and-forget style: here the caller owns the server's lifecycle.
func Serve(addr, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv
}

// Shutdown gracefully stops a server returned by Serve.
func Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
