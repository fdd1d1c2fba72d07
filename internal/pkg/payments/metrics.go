package payments

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the operator-facing counters for reconciliation.
type Metrics struct {
	webhooks          *prometheus.CounterVec
	callbacks         *prometheus.CounterVec
	ignoredTransition *prometheus.CounterVec
	sideEffectFailure *prometheus.CounterVec
}

// NewMetrics registers the counters on reg. A nil reg leaves them
// unregistered, which is what most tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_webhooks_total",
			Help: "Gateway webhooks handled, by outcome.",
		}, []string{"gateway", "outcome"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Browser redirect callbacks handled, by outcome.",
		}, []string{"gateway", "outcome"}),
		ignoredTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_transitions_ignored_total",
			Help: "Notifications whose status change was not allowed and was acknowledged without effect.",
		}, []string{"gateway", "from", "to"}),
		sideEffectFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_side_effect_failures_total",
			Help: "Post-payment notification or invoice failures.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.webhooks, m.callbacks, m.ignoredTransition, m.sideEffectFailure)
	}
	return m
}

func (m *Metrics) webhook(gateway, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(gateway, outcome).Inc()
}

func (m *Metrics) callback(gateway, outcome string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(gateway, outcome).Inc()
}

func (m *Metrics) ignored(gateway, from, to string) {
	if m == nil {
		return
	}
	m.ignoredTransition.WithLabelValues(gateway, from, to).Inc()
}

func (m *Metrics) sideEffect(kind string) {
	if m == nil {
		return
	}
	m.sideEffectFailure.WithLabelValues(kind).Inc()
}
