package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Entitlement decisions, labelled by the source that granted access or "denied".
	EntitlementDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leecher_entitlement_decisions_total",
			Help: "Download permission checks by deciding source",
		},
		[]string{"source"},
	)

	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leecher_tokens_total",
			Help: "Verification tokens by outcome",
		},
		[]string{"outcome"}, // issued, redeemed, rejected
	)

	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leecher_payments_total",
			Help: "Payment requests by outcome",
		},
		[]string{"outcome"}, // created, confirmed, rejected
	)

	RevenueTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leecher_revenue_total",
			Help: "Sum of confirmed payment amounts",
		},
	)

	ShortenerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leecher_shortener_requests_total",
			Help: "Shortener calls by result",
		},
		[]string{"provider", "result"}, // ok, fallback
	)

	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leecher_downloads_total",
			Help: "Download jobs by state",
		},
		[]string{"state"}, // queued, done, failed, rejected
	)

	DownloadQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leecher_download_queue_depth",
			Help: "Jobs waiting for a download worker",
		},
	)
)
