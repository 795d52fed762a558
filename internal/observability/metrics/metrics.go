package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for scheduling operations.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
)

// ScheduleMetrics exposes counters/histograms for booking and checkout flows.
type ScheduleMetrics struct {
	operationsTotal *prometheus.CounterVec
	paymentsTotal   *prometheus.CounterVec
	paymentCents    *prometheus.CounterVec
	rpcLatency      *prometheus.HistogramVec
}

func NewScheduleMetrics(reg prometheus.Registerer) *ScheduleMetrics {
	m := &ScheduleMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "schedule",
			Name:      "operations_total",
			Help:      "Scheduling operations by kind and outcome",
		}, []string{"operation", "outcome"}),
		paymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "checkout",
			Name:      "payments_total",
			Help:      "Recorded payments by method",
		}, []string{"method"}),
		paymentCents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "checkout",
			Name:      "payment_amount_cents_total",
			Help:      "Sum of recorded payments in cents by method",
		}, []string{"method"}),
		rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "studio",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Latency of RPC handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "code"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.paymentsTotal, m.paymentCents, m.rpcLatency)
	return m
}

func (m *ScheduleMetrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *ScheduleMetrics) ObservePayment(method string, cents int64) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(method).Inc()
	if cents > 0 {
		m.paymentCents.WithLabelValues(method).Add(float64(cents))
	}
}

func (m *ScheduleMetrics) ObserveRPC(method, code string, seconds float64) {
	if m == nil {
		return
	}
	m.rpcLatency.WithLabelValues(method, code).Observe(seconds)
}
