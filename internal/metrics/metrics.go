package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuotaDecisionsTotal counts quota guard decisions by action and outcome
	// (allowed, limit_reached, inactive_subscription, error).
	QuotaDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indumenta",
		Subsystem: "quota",
		Name:      "decisions_total",
		Help:      "Quota guard decisions by action and outcome.",
	}, []string{"action", "outcome"})

	// UsageConsumedTotal counts committed usage increments.
	UsageConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indumenta",
		Subsystem: "quota",
		Name:      "usage_consumed_total",
		Help:      "Usage increments committed after a successful guarded action.",
	}, []string{"action"})

	// WebhookEventsTotal counts Stripe webhook events by type and outcome.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indumenta",
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Stripe webhook events by event type and outcome.",
	}, []string{"event_type", "outcome"})

	// WebhookDuration tracks Stripe webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indumenta",
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// ReconcileRunsTotal counts reconciliation sweeps by outcome.
	ReconcileRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indumenta",
		Subsystem: "reconcile",
		Name:      "runs_total",
		Help:      "Subscription reconciliation runs by outcome.",
	}, []string{"outcome"})

	// ReconcileDowngradesTotal counts profiles downgraded by the reconciler.
	ReconcileDowngradesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indumenta",
		Subsystem: "reconcile",
		Name:      "downgrades_total",
		Help:      "Paid profiles downgraded to free after their period lapsed.",
	})

	// ReconcileReviewsTotal counts profiles flagged for manual review.
	ReconcileReviewsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indumenta",
		Subsystem: "reconcile",
		Name:      "reviews_total",
		Help:      "Lapsed paid profiles flagged for manual review.",
	})

	// UpstreamFailuresTotal counts collaborator failures by collaborator.
	UpstreamFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indumenta",
		Subsystem: "upstream",
		Name:      "failures_total",
		Help:      "Failed calls to labeler, recommender, storage and billing collaborators.",
	}, []string{"collaborator"})

	// HTTPRequestDuration tracks request latency by method and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indumenta",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "status"})
)
