package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	// Turn metrics
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_client_turns_total",
		Help: "Total number of conversation turns by kind (text, voice) and status",
	}, []string{"kind", "status"})

	turnLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_client_turn_latency_seconds",
		Help:    "Round-trip latency of /chat requests in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	}, []string{"kind"})

	rejectedSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_client_rejected_submissions_total",
		Help: "Submissions rejected by a state guard",
	}, []string{"reason"})

	// Recording metrics
	recordingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_client_recordings_total",
		Help: "Total number of recordings by outcome",
	}, []string{"outcome"}) // outcome: "ok", "too_short", "device_error", "decode_error"

	recordingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_client_recording_duration_seconds",
		Help:    "Duration of finished recordings in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})

	// TTS metrics
	ttsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_client_tts_requests_total",
		Help: "Total number of synthesis requests",
	}, []string{"status"})

	ttsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_client_tts_latency_seconds",
		Help:    "Synthesis round-trip latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	playbackStarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_client_playback_starts_total",
		Help: "Number of times a message started playing",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_client_errors_total",
		Help: "Total number of recovered errors",
	}, []string{"reason", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chat_client_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_client_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_client_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "captured", "uploaded", "synthesized"

	connectivity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_client_backend_connected",
		Help: "1 when the last health probe succeeded",
	})
)

// Metrics records events for a single conversation session. Counters are
// process wide; errors and rejections are also logged against the session's
// user id so they can be correlated with backend logs.
type Metrics struct {
	logger zerolog.Logger
}

// NewSessionMetrics creates a metrics recorder for a session
func NewSessionMetrics(userID string) *Metrics {
	return &Metrics{logger: WithSession(WithComponent("metrics"), userID)}
}

// RecordTurn records a finished turn and its /chat latency
func (m *Metrics) RecordTurn(kind string, success bool, latency time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	turnsTotal.WithLabelValues(kind, status).Inc()
	turnLatency.WithLabelValues(kind).Observe(latency.Seconds())
}

// RecordRejected records a submission refused by a state guard
func (m *Metrics) RecordRejected(reason string) {
	rejectedSubmissions.WithLabelValues(reason).Inc()
	if m != nil {
		m.logger.Debug().Str("reason", reason).Msg("Submission rejected")
	}
}

// RecordRecording records the outcome of a recording
func (m *Metrics) RecordRecording(outcome string, duration time.Duration) {
	recordingsTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		recordingDuration.Observe(duration.Seconds())
	}
}

// RecordTTS records a synthesis round trip
func (m *Metrics) RecordTTS(success bool, latency time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	ttsRequests.WithLabelValues(status).Inc()
	ttsLatency.Observe(latency.Seconds())
}

// RecordPlaybackStart records a message starting to play
func (m *Metrics) RecordPlaybackStart() {
	playbackStarts.Inc()
}

// RecordError records a recovered error
func (m *Metrics) RecordError(reason, component string) {
	errorsTotal.WithLabelValues(reason, component).Inc()
	if m != nil {
		m.logger.Debug().Str("reason", reason).Str("source", component).Msg("Recovered error")
	}
}

// RecordAudioBytes records audio bytes processed
func (m *Metrics) RecordAudioBytes(direction string, bytes int) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}

// SetConnected updates the connectivity gauge
func SetConnected(connected bool) {
	if connected {
		connectivity.Set(1)
		return
	}
	connectivity.Set(0)
}
