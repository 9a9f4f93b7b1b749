package peer

import (
	"sync"

	"github.com/bsv-blockchain/cfpeer/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusPeerActive             prometheus.Gauge
	prometheusPeerStates             *prometheus.CounterVec
	prometheusPeerMessagesReceived   *prometheus.CounterVec
	prometheusPeerMessagesSent       *prometheus.CounterVec
	prometheusPeerHandle             *prometheus.HistogramVec
	prometheusPeerPingLatency        prometheus.Histogram
	prometheusPeerDisconnects        *prometheus.CounterVec
	prometheusPeerCheckpointFailures prometheus.Counter
	prometheusPeerTxAnnounced        prometheus.Counter
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusPeerActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cfpeer",
			Subsystem: "peer",
			Name:      "active",
			Help:      "Number of peers that have not reached Shutdown",
		},
	)

	prometheusPeerStates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cfpeer",
			Subsystem: "peer",
			Name:      "state_transitions",
			Help:      "Number of peer state transitions, by destination state",
		},
		[]string{"state"},
	)

	prometheusPeerMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cfpeer",
			Subsystem: "peer",
			Name:      "messages_received",
			Help:      "Number of decoded messages received, by command",
		},
		[]string{"command"},
	)

	prometheusPeerMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cfpeer",
			Subsystem: "peer",
			Name:      "messages_sent",
			Help:      "Number of messages queued for sending, by command",
		},
		[]string{"command"},
	)

	prometheusPeerHandle = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cfpeer",
			Subsystem: "peer",
			Name:      "handle",
			Help:      "Time taken to handle a received message, by command",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
		[]string{"command"},
	)

	prometheusPeerPingLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cfpeer",
			Subsystem: "peer",
			Name:      "ping_latency",
			Help:      "Round trip time of answered pings",
			Buckets:   util.MetricsBucketsMilliLongSeconds,
		},
	)

	prometheusPeerDisconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cfpeer",
			Subsystem: "peer",
			Name:      "disconnects",
			Help:      "Number of peers shut down, by error category",
		},
		[]string{"reason"},
	)

	prometheusPeerCheckpointFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cfpeer",
			Subsystem: "peer",
			Name:      "checkpoint_failures",
			Help:      "Number of peers that failed checkpoint verification",
		},
	)

	prometheusPeerTxAnnounced = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cfpeer",
			Subsystem: "peer",
			Name:      "tx_announced",
			Help:      "Number of transaction inventory items sent to peers",
		},
	)
}
