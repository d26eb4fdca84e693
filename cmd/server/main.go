package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nova-voice/nova-audio-service/internal/config"
	"github.com/nova-voice/nova-audio-service/internal/metrics"
	"github.com/nova-voice/nova-audio-service/internal/pipeline"
	"github.com/nova-voice/nova-audio-service/internal/responder"
	"github.com/nova-voice/nova-audio-service/internal/server"
	"github.com/nova-voice/nova-audio-service/internal/transcription"
	"github.com/nova-voice/nova-audio-service/internal/vad"
	"github.com/nova-voice/nova-audio-service/internal/wake"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "nova-audio-service"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load .env if present; real environment variables win.
	if err := godotenv.Load(); err == nil {
		fmt.Fprintln(os.Stderr, "Loaded environment from .env")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("address", cfg.Server.Address),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("vad_threshold", cfg.VAD.Threshold),
		slog.String("wake_phrase", cfg.Wake.Phrase),
		slog.Float64("similarity_threshold", cfg.Wake.SimilarityThreshold),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Voice activity gate
	gate, err := vad.NewGate(cfg.VAD.Threshold, logger)
	if err != nil {
		logger.Error("Failed to create voice activity gate", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Wake phrase matcher
	matcher, err := wake.NewMatcher(cfg.Wake.Phrase, cfg.Wake.SimilarityThreshold)
	if err != nil {
		logger.Error("Failed to create wake phrase matcher", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Transcription engine provider (lazy, shared)
	provider := transcription.NewProvider(transcription.Config{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxRetries:    cfg.Transcription.MaxRetries,
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
		Language:      cfg.Transcription.Language,
		Model:         cfg.Transcription.Model,
	})

	if cfg.Transcription.WarmOnStartup {
		go func() {
			warmCtx, warmCancel := context.WithTimeout(ctx, cfg.Transcription.GetTimeoutDuration())
			defer warmCancel()

			if _, err := provider.Get(warmCtx); err != nil {
				logger.Warn("Engine warm-up failed, will retry on first request",
					slog.String("error", err.Error()))
				return
			}
			logger.Info("Transcription engine warmed up")
		}()
	}

	// Ingestion pipeline: decode, materialize, transcribe, detect
	p := pipeline.New(func(ctx context.Context) (pipeline.Engine, error) {
		return provider.Get(ctx)
	}, gate, matcher, appMetrics, logger)

	// HTTP API server
	httpServer := server.NewHTTPServer(cfg, logger, p, responder.New(logger), provider, appMetrics)
	logger.Info("HTTP API server initialized",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)),
	)

	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
