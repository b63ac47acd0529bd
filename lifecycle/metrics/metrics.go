// Package metrics exposes lifecycle registry activity as prometheus
// collectors. It plugs into the registry as an Observer so the entry table
// itself stays free of instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sghaida/olm/lifecycle"
)

var _ lifecycle.Observer = (*Metrics)(nil)

type Metrics struct {
	LiveInstances        prometheus.Gauge
	LiveDependencyEdges  prometheus.Gauge
	RegistrationsTotal   prometheus.Counter
	FinalizedTotal       prometheus.Counter
	DestroyDeferredTotal *prometheus.CounterVec
}

// New registers the collectors with reg and returns the observer. Pass
// prometheus.DefaultRegisterer to publish on the default gatherer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LiveInstances: factory.NewGauge(prometheus.GaugeOpts{
			Name: "olm_live_instances",
			Help: "Current number of instances with a live registry entry",
		}),
		LiveDependencyEdges: factory.NewGauge(prometheus.GaugeOpts{
			Name: "olm_live_dependency_edges",
			Help: "Current number of declared dependency edges",
		}),
		RegistrationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "olm_registrations_total",
			Help: "Total number of instance registrations, re-registrations included",
		}),
		FinalizedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "olm_finalized_total",
			Help: "Total number of instances finalized and removed",
		}),
		DestroyDeferredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "olm_destroy_deferred_total",
			Help: "Total number of candidate-destroy passes that declined to finalize",
		}, []string{"reason"}),
	}
}

func (m *Metrics) InstanceRegistered(_ string, registrations int) {
	m.RegistrationsTotal.Inc()
	// A tracked entry never counts below one, so 1 only ever means a fresh
	// entry.
	if registrations == 1 {
		m.LiveInstances.Inc()
	}
}

func (m *Metrics) InstanceUnregistered(string) {
	m.LiveInstances.Dec()
}

func (m *Metrics) EdgeDeclared(string, lifecycle.Key) {
	m.LiveDependencyEdges.Inc()
}

func (m *Metrics) EdgeReleased(string, lifecycle.Key) {
	m.LiveDependencyEdges.Dec()
}

func (m *Metrics) InstanceFinalized(string) {
	m.FinalizedTotal.Inc()
}

func (m *Metrics) DestroyDeferred(_ string, reason lifecycle.DeferReason) {
	m.DestroyDeferredTotal.WithLabelValues(string(reason)).Inc()
}
