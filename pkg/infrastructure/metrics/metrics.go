package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for lot allocation.
type Metrics struct {
	// Allocation calls by strategy and resulting transition
	AllocationOutcome *prometheus.CounterVec

	// Claims by result: full, short, empty, error
	ClaimResult *prometheus.CounterVec

	// Quantity reserved by strategy
	ReservedQuantity *prometheus.CounterVec

	// Demands deferred until their origins complete
	DeferredDemands prometheus.Counter

	AllocateLatency prometheus.Histogram
}

// New creates a Metrics instance registered with reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		AllocationOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wholelot_allocation_outcomes_total",
			Help: "Total allocation calls by strategy and state transition",
		}, []string{"strategy", "transition"}),

		ClaimResult: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wholelot_claims_total",
			Help: "Total lot claims by result",
		}, []string{"result"}),

		ReservedQuantity: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wholelot_reserved_quantity_total",
			Help: "Quantity reserved, in product units, by strategy",
		}, []string{"strategy"}),

		DeferredDemands: factory.NewCounter(prometheus.CounterOpts{
			Name: "wholelot_deferred_demands_total",
			Help: "Demands deferred until their origin demands complete",
		}),

		AllocateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wholelot_allocate_duration_seconds",
			Help:    "Duration of a single demand allocation including claims",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}),
	}
}

// IncrementOutcome records the transition produced by one allocation call.
func (m *Metrics) IncrementOutcome(strategy, transition string) {
	if m != nil {
		m.AllocationOutcome.WithLabelValues(strategy, transition).Inc()
	}
}

// IncrementClaim records the result of one claim.
func (m *Metrics) IncrementClaim(result string) {
	if m != nil {
		m.ClaimResult.WithLabelValues(result).Inc()
	}
}

// AddReserved records reserved quantity. Non-positive amounts are ignored.
func (m *Metrics) AddReserved(strategy string, quantity float64) {
	if m != nil && quantity > 0 {
		m.ReservedQuantity.WithLabelValues(strategy).Add(quantity)
	}
}

// IncrementDeferred records a deferred demand.
func (m *Metrics) IncrementDeferred() {
	if m != nil {
		m.DeferredDemands.Inc()
	}
}

// ObserveAllocateLatency records the duration of one allocation call.
func (m *Metrics) ObserveAllocateLatency(d time.Duration) {
	if m != nil {
		m.AllocateLatency.Observe(d.Seconds())
	}
}
