package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nova-voice/nova-audio-service/internal/config"
	"github.com/nova-voice/nova-audio-service/internal/metrics"
	"github.com/nova-voice/nova-audio-service/internal/pipeline"
	"github.com/nova-voice/nova-audio-service/internal/responder"
	"github.com/nova-voice/nova-audio-service/internal/transcription"
)

const serviceVersion = "1.0.0"

// maxRequestBytes caps the raw HTTP body. It sits above the decoded audio
// ceiling to leave room for base64 and multipart framing; the precise audio
// size check happens in the pipeline.
const maxRequestBytes = 40 << 20

// pruneInterval controls how often idle rate-limit buckets are dropped.
const pruneInterval = 5 * time.Minute

// HTTPServer exposes the voice API: audio transcription, wake phrase
// recognition, text processing, and monitoring endpoints.
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	config    *config.Config
	pipeline  *pipeline.Pipeline
	responder *responder.Responder
	provider  *transcription.Provider
	metrics   *metrics.Metrics

	limiters map[string]*rateLimiter
	done     chan struct{}

	startTime time.Time

	// Rolling counters for /stats
	requestsTotal  atomic.Int64
	clientErrors   atomic.Int64
	serverErrors   atomic.Int64
	rateLimited    atomic.Int64
	transcriptions atomic.Int64
	recognitions   atomic.Int64
}

// NewHTTPServer creates the API server and wires its routes.
func NewHTTPServer(cfg *config.Config, logger *slog.Logger, p *pipeline.Pipeline,
	resp *responder.Responder, provider *transcription.Provider, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    cfg,
		pipeline:  p,
		responder: resp,
		provider:  provider,
		metrics:   m,
		done:      make(chan struct{}),
		startTime: time.Now(),
		limiters: map[string]*rateLimiter{
			"/api/v1/listen":    newRateLimiter(cfg.RateLimits.Listen),
			"/api/v1/recognise": newRateLimiter(cfg.RateLimits.Recognise),
			"/api/v1/process":   newRateLimiter(cfg.RateLimits.Process),
			"/":                 newRateLimiter(cfg.RateLimits.Health),
		},
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", h.wrap("/", h.limiters["/"], h.handleHealth))
	mux.HandleFunc("/health", h.wrap("/health", h.limiters["/"], h.handleHealth))

	mux.HandleFunc("/api/v1/listen", h.wrap("/api/v1/listen", h.limiters["/api/v1/listen"], h.handleListen))
	mux.HandleFunc("/api/v1/recognise", h.wrap("/api/v1/recognise", h.limiters["/api/v1/recognise"], h.handleRecognise))
	mux.HandleFunc("/api/v1/process", h.wrap("/api/v1/process", h.limiters["/api/v1/process"], h.handleProcess))

	mux.HandleFunc("/config", h.wrap("/config", nil, h.handleConfig))
	mux.HandleFunc("/stats", h.wrap("/stats", nil, h.handleStats))

	mux.Handle("/metrics", promhttp.Handler())
}

// wrap applies the shared middleware: CORS headers, per-IP rate limiting,
// and request metrics.
func (h *HTTPServer) wrap(endpoint string, limiter *rateLimiter, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Permissive CORS, matching a public voice-assistant frontend.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if limiter != nil && !limiter.Allow(clientIP(r)) {
			h.rateLimited.Add(1)
			h.metrics.RecordRateLimited(endpoint)
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		startTime := time.Now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)
		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		h.requestsTotal.Add(1)
		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
				h.serverErrors.Add(1)
			} else {
				h.clientErrors.Add(1)
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go h.pruneLoop()

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")
	close(h.done)

	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) pruneLoop() {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, rl := range h.limiters {
				rl.Prune(pruneInterval)
			}
		case <-h.done:
			return
		}
	}
}

// handleHealth implements GET / and GET /health
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if r.URL.Path != "/" && r.URL.Path != "/health" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"version":      serviceVersion,
		"engine_ready": h.provider.Ready(),
		"uptime":       time.Since(h.startTime).String(),
	})
}

// handleListen implements POST /api/v1/listen
func (h *HTTPServer) handleListen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, err := h.parseAudioRequest(w, r)
	if err != nil {
		h.writeAudioError(w, err, "Transcription failed")
		return
	}

	result, err := h.pipeline.Transcribe(r.Context(), req)
	if err != nil {
		h.writeAudioError(w, err, "Transcription failed")
		return
	}

	h.transcriptions.Add(1)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"transcript": result.Transcript,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRecognise implements POST /api/v1/recognise
func (h *HTTPServer) handleRecognise(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, err := h.parseAudioRequest(w, r)
	if err != nil {
		h.writeAudioError(w, err, "Wake word detection failed")
		return
	}

	result, err := h.pipeline.Recognise(r.Context(), req)
	if err != nil {
		h.writeAudioError(w, err, "Wake word detection failed")
		return
	}

	h.recognitions.Add(1)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"detected":   result.Detected,
		"confidence": result.Confidence,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// textProcessRequest is the POST /api/v1/process payload
type textProcessRequest struct {
	Text    string `json:"text"`
	Context string `json:"context,omitempty"`
}

// handleProcess implements POST /api/v1/process
func (h *HTTPServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	var req textProcessRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Text cannot be empty")
		return
	}
	if len(req.Text) > 10000 {
		writeError(w, http.StatusBadRequest, "Text exceeds maximum length of 10000 characters")
		return
	}
	if len(req.Context) > 50000 {
		writeError(w, http.StatusBadRequest, "Context exceeds maximum length of 50000 characters")
		return
	}

	response := h.responder.Respond(r.Context(), req.Text, req.Context)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"response":  response,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// audioBufferPayload is the JSON body accepted by the audio endpoints as an
// alternative to a multipart file upload.
type audioBufferPayload struct {
	AudioBuffer struct {
		AudioData  string `json:"audio_data"`
		Format     string `json:"format"`
		SampleRate int    `json:"sample_rate"`
		Channels   int    `json:"channels"`
		BitDepth   int    `json:"bit_depth"`
	} `json:"audio_buffer"`
}

// requestError tags a malformed request as a client fault so writeAudioError
// maps it to 400 rather than a generic 500.
func requestError(message string, err error) error {
	return &pipeline.Error{Kind: pipeline.KindValidation, Message: message, Err: err}
}

// parseAudioRequest builds a pipeline request from either a multipart file
// upload or a base64 JSON buffer. Unset raw-PCM parameters fall back to the
// configured audio defaults. All failures here are client faults.
func (h *HTTPServer) parseAudioRequest(w http.ResponseWriter, r *http.Request) (pipeline.Request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return pipeline.Request{}, requestError("file field required in multipart upload", err)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return pipeline.Request{}, requestError("failed to read uploaded file", err)
		}

		return pipeline.Request{Upload: &pipeline.Upload{
			Data:        data,
			ContentType: header.Header.Get("Content-Type"),
		}}, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return pipeline.Request{}, requestError("request body too large", pipeline.ErrTooLarge)
		}
		return pipeline.Request{}, requestError("failed to read request body", err)
	}
	if len(body) == 0 {
		return pipeline.Request{}, requestError("either file upload or JSON audio_buffer must be provided", nil)
	}

	var payload audioBufferPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return pipeline.Request{}, requestError("invalid JSON payload", err)
	}
	if payload.AudioBuffer.AudioData == "" {
		return pipeline.Request{}, requestError("audio_buffer field required in JSON payload", nil)
	}

	data, err := base64.StdEncoding.DecodeString(payload.AudioBuffer.AudioData)
	if err != nil {
		return pipeline.Request{}, requestError("invalid base64 audio data", err)
	}

	buf := &pipeline.Buffer{
		Data:       data,
		Format:     payload.AudioBuffer.Format,
		SampleRate: payload.AudioBuffer.SampleRate,
		Channels:   payload.AudioBuffer.Channels,
		BitDepth:   payload.AudioBuffer.BitDepth,
	}
	if buf.Format == "" {
		buf.Format = "mp3"
	}
	if buf.SampleRate == 0 {
		buf.SampleRate = h.config.Audio.SampleRate
	}
	if buf.Channels == 0 {
		buf.Channels = h.config.Audio.Channels
	}
	if buf.BitDepth == 0 {
		buf.BitDepth = h.config.Audio.BitDepth
	}

	return pipeline.Request{Buffer: buf}, nil
}

// writeAudioError maps pipeline failures onto HTTP statuses. Validation and
// decode problems surface their message; internal failures get a generic
// detail so engine internals never leak to clients.
func (h *HTTPServer) writeAudioError(w http.ResponseWriter, err error, genericDetail string) {
	switch pipeline.KindOf(err) {
	case pipeline.KindValidation:
		status := http.StatusBadRequest
		if errors.Is(err, pipeline.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, err.Error())
	case pipeline.KindDecode:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Request processing failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, genericDetail)
	}
}

// handleConfig implements GET /config
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Sanitized configuration: the API key never appears here.
	sanitized := map[string]interface{}{
		"server": map[string]interface{}{
			"port":    h.config.Server.Port,
			"address": h.config.Server.Address,
		},
		"rate_limits": map[string]interface{}{
			"listen":    h.config.RateLimits.Listen,
			"recognise": h.config.RateLimits.Recognise,
			"process":   h.config.RateLimits.Process,
			"health":    h.config.RateLimits.Health,
		},
		"audio": map[string]interface{}{
			"sample_rate": h.config.Audio.SampleRate,
			"channels":    h.config.Audio.Channels,
			"bit_depth":   h.config.Audio.BitDepth,
		},
		"vad": map[string]interface{}{
			"threshold": h.config.VAD.Threshold,
		},
		"wake": map[string]interface{}{
			"phrase":               h.config.Wake.Phrase,
			"similarity_threshold": h.config.Wake.SimilarityThreshold,
		},
		"transcription": map[string]interface{}{
			"endpoint":        h.config.Transcription.Endpoint,
			"language":        h.config.Transcription.Language,
			"model":           h.config.Transcription.Model,
			"timeout":         h.config.Transcription.Timeout,
			"max_retries":     h.config.Transcription.MaxRetries,
			"max_concurrent":  h.config.Transcription.MaxConcurrent,
			"warm_on_startup": h.config.Transcription.WarmOnStartup,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	writeJSON(w, http.StatusOK, sanitized)
}

// handleStats implements GET /stats
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"requests": map[string]interface{}{
			"total":         h.requestsTotal.Load(),
			"client_errors": h.clientErrors.Load(),
			"server_errors": h.serverErrors.Load(),
			"rate_limited":  h.rateLimited.Load(),
		},
		"operations": map[string]interface{}{
			"transcriptions": h.transcriptions.Load(),
			"recognitions":   h.recognitions.Load(),
		},
		"engine": map[string]interface{}{
			"ready": h.provider.Ready(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]interface{}{"detail": detail})
}
