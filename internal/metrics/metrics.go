// Package metrics exposes the monitor's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ReplaysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladderwatch_replays_total",
			Help: "Total per-asset replays (by outcome: ok, skipped, error).",
		},
		[]string{"outcome"},
	)

	AlertsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladderwatch_alerts_sent_total",
			Help: "Alerts delivered (by kind and channel).",
		},
		[]string{"kind", "channel"},
	)

	AlertsSuppressed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ladderwatch_alerts_suppressed_total",
			Help: "Alerts skipped because the same key already fired today.",
		},
	)

	MonitorTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ladderwatch_monitor_ticks_total",
			Help: "Completed monitor passes.",
		},
	)

	UniverseSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ladderwatch_universe_size",
			Help: "Assets currently tracked.",
		},
	)

	ExchangeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladderwatch_exchange_errors_total",
			Help: "Failed exchange requests (by operation).",
		},
		[]string{"op"},
	)

	LastRebuildUnix = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ladderwatch_last_rebuild_timestamp_seconds",
			Help: "Unix time of the last completed universe rebuild.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ReplaysTotal,
		AlertsSent,
		AlertsSuppressed,
		MonitorTicks,
		UniverseSize,
		ExchangeErrors,
		LastRebuildUnix,
	)
}
