package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PurchasesTotal counts purchase attempts by gateway and normalized outcome.
	PurchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "premium_bot",
		Name:      "purchases_total",
		Help:      "Purchase attempts by gateway and outcome.",
	}, []string{"gateway", "outcome"})

	// GrantsTotal counts entitlement grants by the gateway that settled them.
	GrantsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "premium_bot",
		Name:      "grants_total",
		Help:      "Entitlement grants by gateway.",
	}, []string{"gateway"})

	GatewayErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "premium_bot",
		Name:      "gateway_errors_total",
		Help:      "Gateway failures by gateway and error kind.",
	}, []string{"gateway", "kind"})

	SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "premium_bot",
		Name:      "sweeps_total",
		Help:      "Completed expiry sweeps.",
	})

	RemindersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "premium_bot",
		Name:      "reminders_total",
		Help:      "Renewal reminders sent by the sweeper.",
	})

	ExpiredPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "premium_bot",
		Name:      "expired_purged_total",
		Help:      "Expired entitlements removed by readers or the sweeper.",
	})

	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "premium_bot",
		Name:      "webhook_requests_total",
		Help:      "Gateway webhook requests by gateway and HTTP status.",
	}, []string{"gateway", "status"})
)
