package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Supervisor metrics
var (
	LaunchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcodehost_launches_total",
			Help: "Total number of transcoder child launches",
		},
	)

	ExitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcodehost_exits_total",
			Help: "Total number of transcoder child exits",
		},
		[]string{"outcome"}, // "clean", "failure"
	)

	RestartsScheduledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcodehost_restarts_scheduled_total",
			Help: "Total number of restarts scheduled after a child exit",
		},
	)

	SpawnFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcodehost_spawn_failures_total",
			Help: "Total number of launches that failed to start a process",
		},
	)

	ChildRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcodehost_child_running",
			Help: "Whether a transcoder child is currently running (1 = running)",
		},
	)

	ChildUptimeSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transcodehost_child_uptime_seconds",
			Help:    "How long each transcoder child ran before exiting",
			Buckets: []float64{1, 5, 30, 60, 300, 1800, 3600, 21600, 86400},
		},
	)
)
