// Package metrics exposes the Prometheus collectors shared by the gateway,
// the orchestrators and the HTTP layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patentos_gateway_calls_total",
			Help: "Model calls by provider, call kind and outcome",
		},
		[]string{"provider", "kind", "outcome"},
	)

	GatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "patentos_gateway_latency_seconds",
			Help:    "Model call latency in seconds, including retries",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"provider", "kind"},
	)

	Searches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patentos_searches_total",
			Help: "Searches by terminal outcome",
		},
		[]string{"outcome"},
	)

	PriorArt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patentos_prior_art_requests_total",
			Help: "Prior-art requests by resolution (cached, fetched, fallback, shared, stale)",
		},
		[]string{"resolution"},
	)

	DeepDives = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patentos_deep_dives_total",
			Help: "Freedom-to-operate analyses by outcome",
		},
		[]string{"outcome"},
	)

	StaleResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patentos_stale_results_total",
			Help: "Late results discarded because the session moved on",
		},
		[]string{"kind"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patentos_http_requests_total",
			Help: "API requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)

	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "patentos_log_stream_clients",
			Help: "Connected log stream websocket clients",
		},
	)
)
