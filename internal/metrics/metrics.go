// Package metrics exposes rules engine counters to Prometheus.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	StateDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smarthub",
			Subsystem: "rules",
			Name:      "state_deliveries_total",
			Help:      "Trigger state changes seen by rules, by whether the rule was enabled",
		},
		[]string{"enabled"},
	)

	EffectsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smarthub",
			Subsystem: "rules",
			Name:      "effects_applied_total",
			Help:      "Effect activations that reached the device layer, by effect type",
		},
		[]string{"type"},
	)

	PropertyWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smarthub",
			Subsystem: "rules",
			Name:      "property_write_failures_total",
			Help:      "Property writes dropped after the retry failed",
		},
	)

	ActiveRules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "smarthub",
			Subsystem: "engine",
			Name:      "active_rules",
			Help:      "Rules currently loaded and started",
		},
	)

	MigratedRules = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smarthub",
			Subsystem: "db",
			Name:      "migrated_rules_total",
			Help:      "Stored rules rewritten by the description migration",
		},
	)
)

// Register adds every collector to reg
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		StateDeliveries,
		EffectsApplied,
		PropertyWriteFailures,
		ActiveRules,
		MigratedRules,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
