// Package metrics holds the daemon's prometheus collectors, registered at
// import time via promauto exactly as the teacher's pkg/snapshotter/metrics.go
// registers its own, and served by pkg/httpapi's /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TickDuration measures one full Tick Scheduler cycle: CollectAll plus
	// SnapshotAll.
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qmemd_tick_duration_seconds",
			Help:    "Time taken to complete one tick (collect + snapshot all collectors)",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// TickFailures counts collectors that returned an error during a tick's
	// CollectAll, labeled by collector name.
	TickFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qmemd_tick_collector_failures_total",
			Help: "Total number of per-collector Collect failures",
		},
		[]string{"collector"},
	)

	// CollectDuration measures an individual collector's Collect call.
	CollectDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qmemd_collect_duration_seconds",
			Help:    "Time taken by an individual collector's Collect call",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"collector"},
	)

	// IPCRequestsTotal counts accepted IPC requests by request type and
	// outcome.
	IPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qmemd_ipc_requests_total",
			Help: "Total number of IPC requests served, by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// PluginEventsTotal counts plugin load/unload/reload events applied by
	// the Plugin Loader, by event kind and outcome.
	PluginEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qmemd_plugin_events_total",
			Help: "Total number of plugin directory events applied, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// HistoryDepth reports the current number of retained snapshots in the
	// History Ring.
	HistoryDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qmemd_history_depth",
			Help: "Number of snapshots currently retained in the history ring",
		},
	)
)
