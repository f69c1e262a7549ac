package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BillingMetrics records the billing core's operational counters
type BillingMetrics interface {
	IncWebhookEvent(eventType, outcome string)
	IncCreditsGranted(kind string, amount int64)
	IncCreditsDebited(action string, amount int64)
	IncCheckoutSession(mode string)
	IncReconciliation(operation, outcome string)
}

type billingMetrics struct {
	webhookEvents   *prometheus.CounterVec
	creditsGranted  *prometheus.CounterVec
	creditsDebited  *prometheus.CounterVec
	checkoutCreated *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
}

// NewBillingMetrics registers the billing collectors on the given registry
func NewBillingMetrics(registry *prometheus.Registry) BillingMetrics {
	return &billingMetrics{
		webhookEvents: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_webhook_events_total",
				Help: "Webhook events received, by type and outcome",
			},
			[]string{"event_type", "outcome"},
		),
		creditsGranted: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_credits_granted_total",
				Help: "Credits granted to users, by ledger entry kind",
			},
			[]string{"kind"},
		),
		creditsDebited: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_credits_debited_total",
				Help: "Credits debited from users, by action",
			},
			[]string{"action"},
		),
		checkoutCreated: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_checkout_sessions_total",
				Help: "Checkout sessions created, by mode",
			},
			[]string{"mode"},
		),
		reconciliations: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_reconciliations_total",
				Help: "Manual reconciliation operations, by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
	}
}

func (m *billingMetrics) IncWebhookEvent(eventType, outcome string) {
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *billingMetrics) IncCreditsGranted(kind string, amount int64) {
	m.creditsGranted.WithLabelValues(kind).Add(float64(amount))
}

func (m *billingMetrics) IncCreditsDebited(action string, amount int64) {
	m.creditsDebited.WithLabelValues(action).Add(float64(amount))
}

func (m *billingMetrics) IncCheckoutSession(mode string) {
	m.checkoutCreated.WithLabelValues(mode).Inc()
}

func (m *billingMetrics) IncReconciliation(operation, outcome string) {
	m.reconciliations.WithLabelValues(operation, outcome).Inc()
}

// NewNopMetrics returns metrics backed by a private registry, for tests
func NewNopMetrics() BillingMetrics {
	return NewBillingMetrics(prometheus.NewRegistry())
}
