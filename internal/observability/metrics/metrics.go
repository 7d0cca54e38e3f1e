package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking wizard.
type BookingMetrics struct {
	sessionsStarted  prometheus.Counter
	stepAdvanced     *prometheus.CounterVec
	stepBlocked      *prometheus.CounterVec
	paymentOutcomes  *prometheus.CounterVec
	finalizeOutcomes *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schedulepro",
			Subsystem: "wizard",
			Name:      "sessions_started_total",
			Help:      "Total booking wizard sessions created",
		}),
		stepAdvanced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schedulepro",
			Subsystem: "wizard",
			Name:      "step_advanced_total",
			Help:      "Total successful step advances",
		}, []string{"to_step"}),
		stepBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schedulepro",
			Subsystem: "wizard",
			Name:      "step_blocked_total",
			Help:      "Total step advances blocked by the step gate",
		}, []string{"step"}),
		paymentOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schedulepro",
			Subsystem: "wizard",
			Name:      "payment_outcomes_total",
			Help:      "Card confirmation outcomes by resulting status",
		}, []string{"status"}),
		finalizeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schedulepro",
			Subsystem: "wizard",
			Name:      "finalize_outcomes_total",
			Help:      "Booking finalization outcomes",
		}, []string{"outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "schedulepro",
			Subsystem: "wizard",
			Name:      "upstream_latency_seconds",
			Help:      "Latency of upstream round-trips (refdata, intent, finalize)",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.sessionsStarted,
		m.stepAdvanced,
		m.stepBlocked,
		m.paymentOutcomes,
		m.finalizeOutcomes,
		m.upstreamLatency,
	)
	return m
}

func (m *BookingMetrics) ObserveSessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

func (m *BookingMetrics) ObserveStepAdvanced(toStep string) {
	if m == nil {
		return
	}
	m.stepAdvanced.WithLabelValues(toStep).Inc()
}

func (m *BookingMetrics) ObserveStepBlocked(step string) {
	if m == nil {
		return
	}
	m.stepBlocked.WithLabelValues(step).Inc()
}

func (m *BookingMetrics) ObservePaymentOutcome(status string) {
	if m == nil {
		return
	}
	m.paymentOutcomes.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveFinalizeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.finalizeOutcomes.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveUpstreamLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamLatency.WithLabelValues(operation).Observe(seconds)
}
