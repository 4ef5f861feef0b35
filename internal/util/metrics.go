package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of payment attempts dispatched to an adapter",
	}, []string{"method"})

	PaymentOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_outcomes_total",
		Help: "Payment outcomes by method and terminal status",
	}, []string{"method", "status"})

	PaymentLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_processing_latency_seconds",
		Help:    "Latency of payment adapter dispatch",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	CheckoutResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_results_total",
		Help: "Checkout attempts by terminal state",
	}, []string{"state"})

	ReconciliationCasesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_cases_opened_total",
		Help: "Charged-but-unordered checkout attempts flagged for reconciliation",
	})

	ReconciliationEscalations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_escalations_total",
		Help: "Reconciliation cases escalated by the worker",
	})

	OpenReconciliationCases = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reconciliation_cases_open",
		Help: "Currently unresolved reconciliation cases",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
