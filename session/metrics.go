package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics are registered on a session-local registry rather than the
// process-global default, so multiple sessions never collide.
type metrics struct {
	registry      *prometheus.Registry
	pollCycles    prometheus.Counter
	staleDiscards prometheus.Counter
	fetches       *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	indicator     *prometheus.GaugeVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		pollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statuswatch_poll_cycles_total",
			Help: "Completed and in-flight poll cycles started by this session.",
		}),
		staleDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statuswatch_stale_results_discarded_total",
			Help: "Results that arrived for a superseded poll cycle and were dropped.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statuswatch_fetches_total",
			Help: "Provider fetch attempts.",
		}, []string{"provider"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statuswatch_fetch_errors_total",
			Help: "Provider fetches that failed with a fetch or decode error.",
		}, []string{"provider"}),
		indicator: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "statuswatch_provider_indicator",
			Help: "Current indicator rank per provider (0 none, 1 minor, 2 major, 3 critical).",
		}, []string{"provider"}),
	}

	m.registry.MustRegister(m.pollCycles, m.staleDiscards, m.fetches, m.fetchErrors, m.indicator)
	return m
}

// Metrics exposes the session's metric registry for scraping.
func (s *Session) Metrics() *prometheus.Registry {
	return s.metrics.registry
}
