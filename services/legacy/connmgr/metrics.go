package connmgr

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusConnMgrConnections      prometheus.Gauge
	prometheusConnMgrBytesSent        prometheus.Counter
	prometheusConnMgrBytesReceived    prometheus.Counter
	prometheusConnMgrMessagesSent     prometheus.Counter
	prometheusConnMgrMessagesReceived prometheus.Counter
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusConnMgrConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cfpeer",
			Subsystem: "connmgr",
			Name:      "connections",
			Help:      "Number of open peer transports",
		},
	)

	prometheusConnMgrBytesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cfpeer",
			Subsystem: "connmgr",
			Name:      "bytes_sent",
			Help:      "Number of bytes written to peer transports",
		},
	)

	prometheusConnMgrBytesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cfpeer",
			Subsystem: "connmgr",
			Name:      "bytes_received",
			Help:      "Number of bytes read from peer transports",
		},
	)

	prometheusConnMgrMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cfpeer",
			Subsystem: "connmgr",
			Name:      "messages_sent",
			Help:      "Number of messages written to peer transports",
		},
	)

	prometheusConnMgrMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cfpeer",
			Subsystem: "connmgr",
			Name:      "messages_received",
			Help:      "Number of framed messages read from peer transports",
		},
	)
}
