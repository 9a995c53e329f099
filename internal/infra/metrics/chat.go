package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		turnsTotal,
		deltasTotal,
		windowTokens,
		windowMessages,
		firstDeltaLatencyMs,
		turnDurationMs,
		upstreamHTTPErrors,
	)
}

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Finished turns per model and outcome (completed/cancelled/failed).",
		},
		[]string{"model", "outcome"},
	)

	deltasTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_stream_deltas_total",
			Help: "Text deltas appended to assistant messages.",
		},
		[]string{"model"},
	)

	windowTokens = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_window_tokens",
			Help:    "Estimated history tokens sent per turn (system prompt excluded).",
			Buckets: []float64{16, 64, 256, 512, 1024, 2048, 4096, 8192, 16384},
		},
		[]string{"model"},
	)

	windowMessages = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_window_messages",
			Help:    "History messages sent per turn (system prompt excluded).",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		},
	)

	firstDeltaLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_first_delta_latency_ms",
			Help:    "Time from turn start to the first applied delta in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
		},
		[]string{"model"},
	)

	turnDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_turn_duration_ms",
			Help:    "Turn duration from start to terminal state in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
		},
		[]string{"model", "outcome"},
	)

	upstreamHTTPErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_upstream_http_errors_total",
			Help: "Non-2xx answers from the completions endpoint by status code.",
		},
		[]string{"status"},
	)
)

func ObserveWindow(model string, messages, tokens int) {
	windowTokens.WithLabelValues(norm(model)).Observe(float64(tokens))
	windowMessages.Observe(float64(messages))
}

func IncDelta(model string) {
	deltasTotal.WithLabelValues(norm(model)).Inc()
}

func ObserveFirstDelta(model string, latency time.Duration) {
	firstDeltaLatencyMs.WithLabelValues(norm(model)).Observe(float64(latency / time.Millisecond))
}

func ObserveTurn(model, outcome string, duration time.Duration) {
	turnsTotal.WithLabelValues(norm(model), norm(outcome)).Inc()
	turnDurationMs.WithLabelValues(norm(model), norm(outcome)).Observe(float64(duration / time.Millisecond))
}

func IncUpstreamHTTPError(status int) {
	upstreamHTTPErrors.WithLabelValues(strconv.Itoa(status)).Inc()
}
