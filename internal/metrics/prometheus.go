// Package metrics exports Prometheus instrumentation for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsIngested counts decoded packets accepted into the store.
	PacketsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensorwindow_packets_ingested_total",
			Help: "Total number of sensor packets accepted into the packet store",
		},
	)

	// PacketsRejected counts packets that failed validation on ingest.
	PacketsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensorwindow_packets_rejected_total",
			Help: "Total number of sensor packets rejected during validation",
		},
	)

	// WindowsAssembled counts completed window assembly runs.
	WindowsAssembled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensorwindow_windows_assembled_total",
			Help: "Total number of data windows assembled",
		},
	)

	// DevicesFailed counts devices dropped from a window with no usable segment.
	DevicesFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensorwindow_devices_failed_total",
			Help: "Total number of devices that produced no usable segment",
		},
	)

	// GapsFilled counts gaps padded with placeholder samples.
	GapsFilled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensorwindow_gaps_filled_total",
			Help: "Total number of sample gaps filled with placeholders",
		},
	)

	// CacheHits counts window requests served from the Redis cache.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensorwindow_cache_hits_total",
			Help: "Total number of window requests served from cache",
		},
	)

	// CacheMisses counts window requests that required a fresh assembly.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensorwindow_cache_misses_total",
			Help: "Total number of window requests not found in cache",
		},
	)

	// AssemblyDuration tracks how long a full window assembly takes.
	AssemblyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sensorwindow_assembly_duration_seconds",
			Help:    "Window assembly duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// ActiveConnections tracks currently connected websocket clients.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensorwindow_active_connections",
			Help: "Number of websocket clients currently connected",
		},
	)
)
