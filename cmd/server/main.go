// Package main provides the entry point for the arXiv query service HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/helixir/arxiv-query-service/internal/arxiv"
	"github.com/helixir/arxiv-query-service/internal/config"
	"github.com/helixir/arxiv-query-service/internal/extract"
	"github.com/helixir/arxiv-query-service/internal/observability"
	"github.com/helixir/arxiv-query-service/internal/ocr"
	"github.com/helixir/arxiv-query-service/internal/pdf"
	"github.com/helixir/arxiv-query-service/internal/ratelimit"
	httpserver "github.com/helixir/arxiv-query-service/internal/server/http"
)

// metricsNamespace is the Prometheus namespace for all service metrics.
const metricsNamespace = "arxiv_query_service"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("arxiv-query-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(metricsNamespace)

	// One quota limiter shared by the search and OCR paths.
	limiter := ratelimit.New(ratelimit.Config{
		MaxCallsPerMinute: cfg.RateLimit.MaxCallsPerMinute,
		MaxCallsPerDay:    cfg.RateLimit.MaxCallsPerDay,
		MinInterval:       cfg.RateLimit.MinInterval,
	})

	searchClient := arxiv.New(arxiv.Config{
		BaseURL:    cfg.ArXiv.BaseURL,
		Timeout:    cfg.ArXiv.Timeout,
		MaxRetries: cfg.ArXiv.MaxRetries,
		RetryDelay: cfg.ArXiv.RetryDelay,
		PacingRate: cfg.ArXiv.PacingRate,
	}, limiter, logger, metrics)

	if err := os.MkdirAll(cfg.Download.Dir, 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}

	downloader := pdf.New(pdf.Config{
		Dir:        cfg.Download.Dir,
		PDFBaseURL: cfg.ArXiv.PDFBaseURL,
		Timeout:    cfg.Download.Timeout,
		MaxRetries: cfg.Download.MaxRetries,
		RetryDelay: cfg.Download.RetryDelay,
		MaxSize:    cfg.Download.MaxSize,
	}, logger, metrics)

	// Remote OCR is optional; without a key the extractor runs in
	// local-parser-only mode and never dials out.
	var ocrClient extract.OCRClient
	if cfg.OCR.Enabled() {
		ocrClient = ocr.New(ocr.Config{
			APIKey:      cfg.OCR.APIKey,
			BaseURL:     cfg.OCR.BaseURL,
			Model:       cfg.OCR.Model,
			Timeout:     cfg.OCR.Timeout,
			MaxFileSize: cfg.OCR.MaxFileSize,
		}, logger, metrics)
		logger.Info().Msg("remote OCR enabled")
	} else {
		logger.Info().Msg("no OCR key configured, text extraction uses the local parser only")
	}

	extractor := extract.New(extract.Config{
		PDFBaseURL:     cfg.ArXiv.PDFBaseURL,
		OCRMaxFileSize: cfg.OCR.MaxFileSize,
	}, ocrClient, limiter, downloader, logger, metrics)

	httpCfg := httpserver.Config{
		Address:         cfg.Server.Address(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsPath:     cfg.Metrics.Path,
	}

	httpSrv := httpserver.NewServer(httpCfg, searchClient, downloader, extractor, limiter, logger)

	// Channel to collect server errors.
	errCh := make(chan error, 1)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().
		Str("address", httpCfg.Address).
		Str("download_dir", cfg.Download.Dir).
		Bool("ocr_enabled", cfg.OCR.Enabled()).
		Msg("arxiv-query-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("arxiv-query-service shutdown complete")
	return nil
}
