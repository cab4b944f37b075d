package core

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus collectors for a HostStore/GossipEngine
// pair. Each node registers its own Metrics instance so multiple engines in
// the same process (as the test harness spins up) don't collide on
// prometheus's default registry.
type Metrics struct {
	HostEvents       *prometheus.CounterVec
	LiveHosts        prometheus.Gauge
	TombstonedHosts  prometheus.Gauge
	AntiEntropyRound prometheus.Counter
	AntiEntropyPush  *prometheus.CounterVec
}

// NewMetrics builds and registers a Metrics instance against reg. Passing a
// fresh prometheus.NewRegistry() keeps multiple engines independent; passing
// prometheus.DefaultRegisterer wires a single process-wide node.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		HostEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_events_total",
			Help:      "Host events delivered to the provider delegate, by type.",
		}, []string{"type"}),
		LiveHosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hosts_live",
			Help:      "Number of hosts currently present in the local live table.",
		}),
		TombstonedHosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hosts_tombstoned",
			Help:      "Number of hosts currently present in the local tombstone table.",
		}),
		AntiEntropyRound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anti_entropy_rounds_total",
			Help:      "Anti-entropy advertisements sent by the periodic task.",
		}),
		AntiEntropyPush: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anti_entropy_pushes_total",
			Help:      "Reconciliation pushes sent in response to a received advertisement, by kind.",
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{m.HostEvents, m.LiveHosts, m.TombstonedHosts, m.AntiEntropyRound, m.AntiEntropyPush} {
		_ = reg.Register(c)
	}
	return m
}
