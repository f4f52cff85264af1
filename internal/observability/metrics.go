package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interview_gateway_active_sessions",
		Help: "Number of active interview sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_gateway_sessions_total",
		Help: "Total number of interview sessions started",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_gateway_session_duration_seconds",
		Help:    "Duration of interview sessions in seconds",
		Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
	})

	// Turn metrics
	turnsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_gateway_turns_accepted_total",
		Help: "Total number of user turns accepted by the orchestrator",
	})

	turnsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_gateway_turns_rejected_total",
		Help: "Total number of finalized transcripts rejected, by reason",
	}, []string{"reason"})

	// Responder metrics
	responderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_gateway_responder_requests_total",
		Help: "Total number of conversational AI requests",
	}, []string{"status"})

	responderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_gateway_responder_latency_seconds",
		Help:    "Conversational AI request latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 20.0},
	})

	// Speech synthesis metrics
	synthesisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_gateway_synthesis_requests_total",
		Help: "Total number of speech synthesis requests",
	}, []string{"status"})

	synthesisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_gateway_synthesis_latency_seconds",
		Help:    "Speech synthesis latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Transcript stream metrics
	transcriptEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_gateway_transcript_events_total",
		Help: "Total transcript events received, partial vs final",
	}, []string{"kind"})

	audioBytesForwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_gateway_audio_bytes_forwarded_total",
		Help: "Total microphone audio bytes forwarded to the STT backend",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "interview_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})
)

// RecordSessionStart increments session counters
func RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd decrements the active gauge and observes duration
func RecordSessionEnd(start time.Time) {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(start).Seconds())
}

// RecordTurnAccepted counts an accepted user turn
func RecordTurnAccepted() {
	turnsAccepted.Inc()
}

// RecordTurnRejected counts a rejected finalized transcript with its reason
func RecordTurnRejected(reason string) {
	turnsRejected.WithLabelValues(reason).Inc()
}

// RecordResponderRequest observes one conversational AI call
func RecordResponderRequest(start time.Time, err error) {
	responderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		responderRequests.WithLabelValues("error").Inc()
		return
	}
	responderRequests.WithLabelValues("success").Inc()
}

// RecordSynthesis observes one speech synthesis call
func RecordSynthesis(start time.Time, err error) {
	synthesisLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		synthesisRequests.WithLabelValues("error").Inc()
		return
	}
	synthesisRequests.WithLabelValues("success").Inc()
}

// RecordTranscriptEvent counts a transcript event by kind
func RecordTranscriptEvent(isFinal bool) {
	if isFinal {
		transcriptEvents.WithLabelValues("final").Inc()
	} else {
		transcriptEvents.WithLabelValues("partial").Inc()
	}
}

// RecordAudioForwarded counts microphone bytes sent to the STT backend
func RecordAudioForwarded(n int) {
	audioBytesForwarded.Add(float64(n))
}

// RecordError counts an error by type and component
func RecordError(errType, component string) {
	errorsTotal.WithLabelValues(errType, component).Inc()
}

// UpdateCircuitBreakerState updates the circuit breaker state gauge
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}
