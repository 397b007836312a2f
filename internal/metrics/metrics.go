package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_webhooks_received_total",
		Help: "Total number of verified provider webhooks, labelled by event type.",
	}, []string{"event_type"})

	WebhooksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_webhooks_rejected_total",
		Help: "Total number of webhooks rejected before reconciliation, labelled by reason.",
	}, []string{"reason"})

	EventsReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_events_reconciled_total",
		Help: "Total number of reconciled events, labelled by kind and outcome.",
	}, []string{"kind", "outcome"})

	WelcomeEmails = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_welcome_emails_total",
		Help: "Welcome email dispatch attempts, labelled by status.",
	}, []string{"status"})

	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "billing_reconcile_duration_seconds",
		Help:    "Webhook reconciliation latency in seconds.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})
)
