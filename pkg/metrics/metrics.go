package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_messages_total",
			Help: "Total number of messages processed by the engine, by terminal status (count)",
		},
		[]string{"status"},
	)

	FilterMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_filter_matches_total",
			Help: "Total number of filter matches, by filter name (count)",
		},
		[]string{"filter"},
	)

	DispatchActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_dispatch_actions_total",
			Help: "Total number of dispatch actions executed, by action and outcome (count)",
		},
		[]string{"action", "outcome"},
	)

	ForwardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_forwards_total",
			Help: "Total number of forwarding attempts, by channel and outcome (count)",
		},
		[]string{"channel", "outcome"},
	)

	ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_processing_duration_ms",
			Help:    "End-to-end message processing duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"status"},
	)

	ActiveFilters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_active_filters",
			Help: "Number of enabled filters in the rule cache (count)",
		},
	)

	CacheRefreshFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_cache_refresh_failures_total",
			Help: "Total number of rule cache refresh failures served from a stale snapshot (count)",
		},
	)

	AdminCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_admin_commands_total",
			Help: "Total number of admin commands handled, by outcome (count)",
		},
		[]string{"outcome"},
	)

	SuppressedForwardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_suppressed_forwards_total",
			Help: "Total number of forwards suppressed by the unique-text window, by filter (count)",
		},
		[]string{"filter"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "channel_circuit_breaker_state",
			Help: "Circuit breaker state per channel (0=closed, 1=half-open, 2=open)",
		},
		[]string{"channel"},
	)

	OutcomeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_outcome_events_total",
			Help: "Total number of outcome events published to the broker, by result (count)",
		},
		[]string{"result"},
	)
)

func RegisterEngineMetrics() {
	prometheus.MustRegister(MessagesProcessedTotal)
	prometheus.MustRegister(FilterMatchesTotal)
	prometheus.MustRegister(DispatchActionsTotal)
	prometheus.MustRegister(ForwardsTotal)
	prometheus.MustRegister(ProcessingDuration)
	prometheus.MustRegister(ActiveFilters)
	prometheus.MustRegister(CacheRefreshFailuresTotal)
	prometheus.MustRegister(AdminCommandsTotal)
	prometheus.MustRegister(SuppressedForwardsTotal)
}

func RegisterChannelMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(OutcomeEventsTotal)
}

func ObserveProcessingDuration(duration time.Duration, status string) {
	ProcessingDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func SetActiveFilters(count int) {
	ActiveFilters.Set(float64(count))
}
