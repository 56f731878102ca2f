package lattice

import (
	"github.com/prometheus/client_golang/prometheus"
)

type catalogMetrics struct {
	verified   prometheus.Counter
	rejected   *prometheus.CounterVec
	advisories prometheus.Counter
}

func newCatalogMetrics(reg prometheus.Registerer) (*catalogMetrics, error) {
	m := &catalogMetrics{
		verified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bloom_lattice_kinds_verified_total",
			Help: "Lattice kinds that passed monotonicity verification.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bloom_lattice_kinds_rejected_total",
			Help: "Lattice kinds rejected by monotonicity verification.",
		}, []string{"reason"}),
		advisories: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bloom_lattice_advisories_total",
			Help: "Monotone lattice methods colliding with collection method names.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, col := range m.collectors() {
		if err := reg.Register(col); err != nil {
			m.unregister(reg)
			return nil, err
		}
	}
	return m, nil
}

func (m *catalogMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.verified, m.rejected, m.advisories}
}

func (m *catalogMetrics) unregister(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	for _, col := range m.collectors() {
		reg.Unregister(col)
	}
}
