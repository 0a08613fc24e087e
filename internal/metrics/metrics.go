package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks outbound API calls by upstream (counterparty, mempool, bot, signer).
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xcpfolio_upstream_requests_total",
			Help: "Total number of upstream API requests made (by upstream, endpoint and result).",
		},
		[]string{"upstream", "endpoint", "result"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xcpfolio_upstream_request_duration_seconds",
			Help:    "Duration of upstream API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"upstream", "endpoint"},
	)

	// Tracks purchase attempts by terminal outcome (ok or error kind).
	PurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xcpfolio_purchases_total",
			Help: "Total number of purchase orchestrations by outcome.",
		},
		[]string{"outcome"},
	)

	// Tracks NATS messages published by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xcpfolio_nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xcpfolio_nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// Tracks fee advisor cache hits, misses and degraded fallbacks.
	FeeCacheAccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xcpfolio_fee_cache_access_total",
			Help: "Fee rate cache accesses by result (hit, miss, stale, default).",
		},
		[]string{"result"},
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xcpfolio_errors_total",
			Help: "Count of agent-level errors by component.",
		},
		[]string{"component", "reason"},
	)

	// Gauges the last successful order poll time (seconds since epoch).
	LastPollTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "xcpfolio_last_poll_timestamp",
			Help: "Timestamp (unix seconds) of the last successful order status poll.",
		},
		[]string{"component"},
	)
)

// ObserveDuration records the time since start on the given histogram.
func ObserveDuration(h *prometheus.HistogramVec, start time.Time, labels ...string) {
	h.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
}

func IncUpstreamRequest(upstream, endpoint, result string) {
	UpstreamRequestsTotal.WithLabelValues(upstream, endpoint, result).Inc()
}

func IncPurchase(outcome string) {
	PurchasesTotal.WithLabelValues(outcome).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncFeeCache(result string) {
	FeeCacheAccess.WithLabelValues(result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func SetLastPoll(component string, t time.Time) {
	LastPollTimestamp.WithLabelValues(component).Set(float64(t.Unix()))
}
