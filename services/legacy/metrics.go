package legacy

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusLegacyPeers          *prometheus.GaugeVec
	prometheusLegacyJobsAssigned   *prometheus.CounterVec
	prometheusLegacyEvents         *prometheus.CounterVec
	prometheusLegacyEventsDropped  prometheus.Counter
	prometheusLegacyReorgs         prometheus.Counter
	prometheusLegacyConnectRetries prometheus.Counter
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusLegacyPeers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "cfpeer",
			Subsystem: "legacy",
			Name:      "peers",
			Help:      "Number of peers known to the peer manager, by direction",
		},
		[]string{"direction"},
	)

	prometheusLegacyJobsAssigned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cfpeer",
			Subsystem: "legacy",
			Name:      "jobs_assigned",
			Help:      "Number of sync jobs handed to peers, by kind",
		},
		[]string{"kind"},
	)

	prometheusLegacyEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cfpeer",
			Subsystem: "legacy",
			Name:      "chain_events",
			Help:      "Number of chain events broadcast to subscribed peers, by type",
		},
		[]string{"type"},
	)

	prometheusLegacyEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cfpeer",
			Subsystem: "legacy",
			Name:      "chain_events_dropped",
			Help:      "Number of chain events dropped because a peer's subscription was full",
		},
	)

	prometheusLegacyReorgs = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cfpeer",
			Subsystem: "legacy",
			Name:      "reorgs",
			Help:      "Number of best chain reorganisations seen",
		},
	)

	prometheusLegacyConnectRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cfpeer",
			Subsystem: "legacy",
			Name:      "connect_attempts",
			Help:      "Number of outbound connection attempts",
		},
	)
}
