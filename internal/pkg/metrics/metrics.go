package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lunia_console_poll_cycles_total",
		Help: "The total number of poll cycles by resource and outcome",
	}, []string{"resource", "outcome"})

	PollStaleness = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lunia_console_poll_staleness_seconds",
		Help: "Seconds since the last successful refresh of a polled resource",
	}, []string{"resource"})

	RequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lunia_console_request_latency_seconds",
		Help:    "Control API request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	ControlActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lunia_console_control_actions_total",
		Help: "Total control actions dispatched, by action and result",
	}, []string{"action", "result"})

	LocalRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lunia_console_local_latency_seconds",
		Help:    "Local surface request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)
