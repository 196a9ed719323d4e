package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	Evaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_evaluations_total",
			Help: "Total number of gatekeeper evaluations by outcome",
		},
		[]string{"outcome"}, // safe, blacklisted, unsafe_contract, ..., error
	)

	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tokengate_evaluation_duration_seconds",
			Help:    "Duration of a full gatekeeper evaluation",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tokengate_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages",
			Buckets: []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	Signals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_signals_total",
			Help: "Total number of pump and scam signals raised",
		},
		[]string{"signal"}, // pump, scam
	)

	// Alert metrics
	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_alerts_sent_total",
			Help: "Total number of alerts delivered to notification channels",
		},
		[]string{"status", "type"}, // success/error, alert type
	)

	// Trade metrics
	Trades = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_trades_total",
			Help: "Total number of trade attempts",
		},
		[]string{"action", "status"}, // buy/sell, executed/failed
	)

	// Provider metrics
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_provider_requests_total",
			Help: "Total number of risk-signal provider requests",
		},
		[]string{"provider", "endpoint", "status"}, // success/error
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tokengate_provider_request_duration_seconds",
			Help:    "Duration of risk-signal provider requests",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "endpoint"},
	)

	// Cache metrics
	CacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_cache_operations_total",
			Help: "Total number of ephemeral cache operations",
		},
		[]string{"op", "status"}, // get/set, hit/miss/success/error
	)

	// Database metrics
	DatabaseQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_database_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tokengate_database_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	BlacklistSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tokengate_blacklist_size",
			Help: "Number of blacklisted addresses",
		},
	)

	AnomalyPopulation = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tokengate_anomaly_population",
			Help: "Number of feature vectors in the anomaly detector population",
		},
	)

	// Ingestion metrics
	StreamEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_stream_events_total",
			Help: "Total number of ledger stream events",
		},
		[]string{"status"}, // accepted, malformed, duplicate
	)

	StreamReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokengate_stream_reconnects_total",
			Help: "Total number of ledger stream reconnect attempts",
		},
	)

	InFlightEvaluations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tokengate_inflight_evaluations",
			Help: "Number of evaluations currently running from the ingestion loop",
		},
	)

	// System health
	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_health_checks_total",
			Help: "Total number of health check requests",
		},
		[]string{"status"}, // healthy/unhealthy
	)
)

// RecordEvaluation records the outcome and duration of one evaluation
func RecordEvaluation(outcome string, duration time.Duration) {
	Evaluations.WithLabelValues(outcome).Inc()
	EvaluationDuration.Observe(duration.Seconds())
}

// RecordStage records how long a pipeline stage took
func RecordStage(stage string, duration time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordAlert records delivery of one alert
func RecordAlert(alertType string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	AlertsSent.WithLabelValues(status, alertType).Inc()
}

// RecordProviderRequest records provider request metrics
func RecordProviderRequest(provider, endpoint string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ProviderRequests.WithLabelValues(provider, endpoint, status).Inc()
	ProviderRequestDuration.WithLabelValues(provider, endpoint).Observe(duration.Seconds())
}

// RecordHealthCheck records health check status
func RecordHealthCheck(healthy bool) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	HealthChecks.WithLabelValues(status).Inc()
}
