package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus counters for whitelist-level observability,
// separate from the HTTP-level metrics middleware.
type BusinessMetrics struct {
	RegistrationsCreated  prometheus.Counter
	RegistrationConflicts prometheus.Counter
	RegistrationsRemoved  prometheus.Counter

	// AddressChecks is labeled by result: "registered" or "unregistered".
	AddressChecks *prometheus.CounterVec
}

// NewBusinessMetrics creates and registers the whitelist business metrics on
// the given registerer. Tests pass a fresh prometheus.NewRegistry to avoid
// duplicate-registration panics.
func NewBusinessMetrics(reg prometheus.Registerer) *BusinessMetrics {
	factory := promauto.With(reg)

	return &BusinessMetrics{
		RegistrationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "whitelist",
			Name:      "registrations_created_total",
			Help:      "Total number of successful address registrations",
		}),
		RegistrationConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "whitelist",
			Name:      "registration_conflicts_total",
			Help:      "Total number of register attempts rejected as duplicates",
		}),
		RegistrationsRemoved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "whitelist",
			Name:      "registrations_removed_total",
			Help:      "Total number of registrations removed",
		}),
		AddressChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whitelist",
			Name:      "address_checks_total",
			Help:      "Total number of address checks by result",
		}, []string{"result"}),
	}
}
