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

	"github.com/zentourist/kino-live-audio-ng/internal/bridge"
	"github.com/zentourist/kino-live-audio-ng/internal/capture"
	"github.com/zentourist/kino-live-audio-ng/internal/config"
	"github.com/zentourist/kino-live-audio-ng/internal/metrics"
	"github.com/zentourist/kino-live-audio-ng/internal/server"
	"github.com/zentourist/kino-live-audio-ng/internal/session"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "kino-live-audio"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

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

	// Log configuration summary
	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Capture.SampleRate),
		slog.Int("chunk_size", cfg.Capture.ChunkSize),
		slog.String("chunk_unit", cfg.Capture.ChunkUnit),
		slog.Int("chunk_samples", cfg.Capture.EffectiveChunkSamples()),
		slog.Bool("streaming", cfg.Capture.StreamingEnabled()),
		slog.Bool("drain_on_stop", cfg.Capture.DrainOnStop),
		slog.String("device", cfg.Capture.Device),
		slog.String("bridge_address", fmt.Sprintf("%s:%d", cfg.Bridge.Address, cfg.Bridge.Port)),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize capture source
	source := capture.NewDeviceSource(logger)
	logger.Info("Capture source initialized")

	// The bridge publishes for the recorder and dispatches commands to it,
	// so the controller is wired after both exist.
	bridgeServer := bridge.NewServer(cfg.Bridge, logger, appMetrics)
	recorder := session.NewRecorder(cfg.Capture, source, bridgeServer, logger, appMetrics)
	bridgeServer.SetController(recorder)
	logger.Info("Session recorder initialized")

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, recorder, bridgeServer, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Start bridge server
	if err := bridgeServer.Start(); err != nil {
		logger.Error("Failed to start bridge server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("bridge_address", fmt.Sprintf("%s:%d", cfg.Bridge.Address, cfg.Bridge.Port)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Finalize any live session first so its aggregate is stored
	if err := recorder.Stop(); err != nil {
		logger.Error("Error stopping recording session", slog.String("error", err.Error()))
	}

	// Stop HTTP server (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop bridge server (disconnect consumers)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := bridgeServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping bridge server", slog.String("error", err.Error()))
	}

	// Log final statistics
	info := recorder.GetInfo()
	bridgeStats := bridgeServer.GetStatistics()
	logger.Info("Final service statistics",
		slog.Uint64("sessions_started", info.SessionsStarted),
		slog.Uint64("sessions_stopped", info.SessionsStopped),
		slog.Uint64("chunks_emitted", info.ChunksEmitted),
		slog.Uint64("samples_captured", info.SamplesCaptured),
		slog.Uint64("chunks_sent", bridgeStats.ChunksSent),
		slog.Uint64("aggregates_sent", bridgeStats.AggregatesSent),
	)

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

	// Configure handler options
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
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
