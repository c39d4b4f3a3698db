// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	Registry *prometheus.Registry

	PermissionDecisions *prometheus.CounterVec
	RuleParseFaults     prometheus.Counter
	Commands            *prometheus.CounterVec
	PrefixLoads         *prometheus.CounterVec
}

// New registers every collector on a fresh registry along with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		PermissionDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aoi_permission_decisions_total",
			Help: "Permission rule decisions by result.",
		}, []string{"result"}),
		RuleParseFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aoi_rule_parse_faults_total",
			Help: "Stored permission rules skipped because they could not be parsed.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aoi_commands_total",
			Help: "Commands executed by name and module.",
		}, []string{"command", "module"}),
		PrefixLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aoi_prefix_loads_total",
			Help: "Background guild prefix loads by result.",
		}, []string{"result"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.PermissionDecisions,
		m.RuleParseFaults,
		m.Commands,
		m.PrefixLoads,
	)
	return m
}

// Decision counts one permission decision.
func (m *Metrics) Decision(allowed bool) {
	if m == nil {
		return
	}
	result := "deny"
	if allowed {
		result = "allow"
	}
	m.PermissionDecisions.WithLabelValues(result).Inc()
}

func (m *Metrics) ParseFault() {
	if m == nil {
		return
	}
	m.RuleParseFaults.Inc()
}

func (m *Metrics) Command(name, module string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(name, module).Inc()
}

func (m *Metrics) PrefixLoad(result string) {
	if m == nil {
		return
	}
	m.PrefixLoads.WithLabelValues(result).Inc()
}
