package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout outcomes, gateway latency and polling activity.
type CheckoutMetrics struct {
	outcomes    *prometheus.CounterVec
	gatewayCall *prometheus.HistogramVec
	pollAttempt *prometheus.CounterVec
	pollRun     *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
// A nil registerer yields a recorder that drops every observation.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outcomes_total",
		Help: "Checkout attempts by final outcome kind.",
	}, []string{"kind"})
	gatewayCall := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Latency of order backend calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "result"})
	pollAttempt := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "poll_attempts_total",
		Help: "Individual status checks issued by the poller.",
	}, []string{"result"})
	pollRun := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "poll_runs_total",
		Help: "Completed poll runs by how they ended.",
	}, []string{"result"})
	reg.MustRegister(outcomes, gatewayCall, pollAttempt, pollRun)
	return &CheckoutMetrics{
		outcomes:    outcomes,
		gatewayCall: gatewayCall,
		pollAttempt: pollAttempt,
		pollRun:     pollRun,
	}
}

// IncOutcome counts one delivered checkout outcome.
func (m *CheckoutMetrics) IncOutcome(kind string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(kind)).Inc()
}

// ObserveGateway records the duration of one backend call.
func (m *CheckoutMetrics) ObserveGateway(operation, result string, duration time.Duration) {
	if m == nil || m.gatewayCall == nil {
		return
	}
	m.gatewayCall.WithLabelValues(normalizeLabel(operation), normalizeLabel(result)).Observe(duration.Seconds())
}

// IncPollAttempt counts one status check; result is the observed status or "error".
func (m *CheckoutMetrics) IncPollAttempt(result string) {
	if m == nil || m.pollAttempt == nil {
		return
	}
	m.pollAttempt.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncPollRun counts one finished poll run.
func (m *CheckoutMetrics) IncPollRun(result string) {
	if m == nil || m.pollRun == nil {
		return
	}
	m.pollRun.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
