// Package metrics defines the Prometheus instrumentation for the audio
// ingestion and wake-word detection pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the service
type Metrics struct {
	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
	RateLimited         *prometheus.CounterVec

	// Audio decoding metrics
	DecodedPayloads *prometheus.CounterVec
	DecodeFallbacks prometheus.Counter
	PayloadSize     prometheus.Histogram
	OversizedInputs prometheus.Counter

	// Temp file metrics
	TempFilesCreated prometheus.Counter
	TempFileFailures prometheus.Counter

	// VAD metrics
	VADChecks      prometheus.Counter
	VADSpeechFound prometheus.Counter

	// Wake word metrics
	WakeChecks     prometheus.Counter
	WakeDetections prometheus.Counter
	WakeConfidence prometheus.Histogram

	// Transcription engine metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
}

// NewMetrics creates and registers all collectors on the default registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all collectors on the given registerer. Tests pass
// a fresh registry to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nova_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nova_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nova_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nova_http_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		}, []string{"endpoint"}),

		DecodedPayloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nova_audio_decoded_payloads_total",
			Help: "Total number of decoded audio payloads by reconstruction source",
		}, []string{"source"}),
		DecodeFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "nova_audio_decode_fallbacks_total",
			Help: "Total number of payloads carried through verbatim after failed reconstruction",
		}),
		PayloadSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nova_audio_payload_size_bytes",
			Help:    "Size of accepted audio payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8), // 1KB to ~16MB
		}),
		OversizedInputs: factory.NewCounter(prometheus.CounterOpts{
			Name: "nova_audio_oversized_inputs_total",
			Help: "Total number of payloads rejected for exceeding the size ceiling",
		}),

		TempFilesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "nova_temp_files_created_total",
			Help: "Total number of temporary audio files materialized",
		}),
		TempFileFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "nova_temp_file_failures_total",
			Help: "Total number of temporary file allocation or cleanup failures",
		}),

		VADChecks: factory.NewCounter(prometheus.CounterOpts{
			Name: "nova_vad_checks_total",
			Help: "Total number of voice activity checks",
		}),
		VADSpeechFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "nova_vad_speech_found_total",
			Help: "Total number of voice activity checks that found speech",
		}),

		WakeChecks: factory.NewCounter(prometheus.CounterOpts{
			Name: "nova_wake_checks_total",
			Help: "Total number of wake-phrase checks",
		}),
		WakeDetections: factory.NewCounter(prometheus.CounterOpts{
			Name: "nova_wake_detections_total",
			Help: "Total number of wake-phrase detections",
		}),
		WakeConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nova_wake_confidence",
			Help:    "Confidence score of wake-phrase checks",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
		}),

		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "nova_transcription_requests_total",
			Help: "Total number of transcription engine requests",
		}),
		TranscriptionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "nova_transcription_successes_total",
			Help: "Total number of successful transcription engine requests",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "nova_transcription_failures_total",
			Help: "Total number of failed transcription engine requests",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nova_transcription_duration_seconds",
			Help:    "Duration of transcription engine requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
	}
}

// RecordHTTPRequest records a completed HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error by type
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}

// RecordRateLimited records a request rejected by the rate limiter
func (m *Metrics) RecordRateLimited(endpoint string) {
	m.RateLimited.WithLabelValues(endpoint).Inc()
}

// RecordDecodedPayload records one decoded payload and its reconstruction source
func (m *Metrics) RecordDecodedPayload(source string, sizeBytes int) {
	m.DecodedPayloads.WithLabelValues(source).Inc()
	m.PayloadSize.Observe(float64(sizeBytes))
}

// RecordDecodeFallback records a verbatim passthrough after failed reconstruction
func (m *Metrics) RecordDecodeFallback() {
	m.DecodeFallbacks.Inc()
}

// RecordOversizedInput records a payload rejected for exceeding the size ceiling
func (m *Metrics) RecordOversizedInput() {
	m.OversizedInputs.Inc()
}

// RecordTempFileCreated records a materialized temporary file
func (m *Metrics) RecordTempFileCreated() {
	m.TempFilesCreated.Inc()
}

// RecordTempFileFailure records a temporary file allocation or cleanup failure
func (m *Metrics) RecordTempFileFailure() {
	m.TempFileFailures.Inc()
}

// RecordVADCheck records a voice activity check and its verdict
func (m *Metrics) RecordVADCheck(hasSpeech bool) {
	m.VADChecks.Inc()
	if hasSpeech {
		m.VADSpeechFound.Inc()
	}
}

// RecordWakeCheck records a wake-phrase check and its outcome
func (m *Metrics) RecordWakeCheck(detected bool, confidence float64) {
	m.WakeChecks.Inc()
	if detected {
		m.WakeDetections.Inc()
	}
	m.WakeConfidence.Observe(confidence)
}

// RecordTranscription records a transcription engine round trip
func (m *Metrics) RecordTranscription(success bool, durationSeconds float64) {
	m.TranscriptionRequests.Inc()
	if success {
		m.TranscriptionSuccesses.Inc()
	} else {
		m.TranscriptionFailures.Inc()
	}
	m.TranscriptionDuration.Observe(durationSeconds)
}
