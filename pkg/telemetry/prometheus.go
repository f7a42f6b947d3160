package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegistryStats is a point-in-time view of the current registry snapshot.
type RegistryStats struct {
	Depth          int
	Units          int
	NonPrefixUnits int
	PhysicalTypes  int
	Equivalencies  int
	Aliases        int
}

// StackMetrics holds the Prometheus view of a registry stack.
type StackMetrics struct {
	depth         prometheus.Gauge
	enabled       *prometheus.GaugeVec
	scopeEvents   *prometheus.CounterVec
	registrations *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewStackMetrics creates the collectors on a private registry.
func NewStackMetrics() *StackMetrics {
	registry := prometheus.NewRegistry()

	m := &StackMetrics{
		depth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "units_scope_depth",
				Help: "Number of scopes pushed above the base registry snapshot",
			},
		),

		enabled: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "units_registry_enabled",
				Help: "Entries enabled in the current registry snapshot by kind",
			},
			[]string{"kind"},
		),

		scopeEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "units_scope_events_total",
				Help: "Scope pushes and pops by event and status",
			},
			[]string{"event", "status"},
		),

		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "units_registrations_total",
				Help: "Registration batches by kind and status",
			},
			[]string{"kind", "status"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.depth,
		m.enabled,
		m.scopeEvents,
		m.registrations,
	)

	return m
}

// Update sets the gauges from a registry snapshot.
func (m *StackMetrics) Update(stats RegistryStats) {
	m.depth.Set(float64(stats.Depth))
	m.enabled.WithLabelValues("units").Set(float64(stats.Units))
	m.enabled.WithLabelValues("non_prefix_units").Set(float64(stats.NonPrefixUnits))
	m.enabled.WithLabelValues("physical_types").Set(float64(stats.PhysicalTypes))
	m.enabled.WithLabelValues("equivalencies").Set(float64(stats.Equivalencies))
	m.enabled.WithLabelValues("aliases").Set(float64(stats.Aliases))
}

// ScopeEntered records a successful push.
func (m *StackMetrics) ScopeEntered(_ string, depth int) {
	m.scopeEvents.WithLabelValues("enter", "ok").Inc()
	m.depth.Set(float64(depth))
}

// ScopeExited records a pop attempt.
func (m *StackMetrics) ScopeExited(_ string, depth int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.scopeEvents.WithLabelValues("exit", status).Inc()
	if err == nil {
		m.depth.Set(float64(depth))
	}
}

// RegistrationFailed records a rejected registration batch.
func (m *StackMetrics) RegistrationFailed(kind string) {
	m.registrations.WithLabelValues(kind, "error").Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func (m *StackMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (m *StackMetrics) Registry() *prometheus.Registry {
	return m.registry
}
