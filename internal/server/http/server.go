// Package httpserver exposes the arXiv query tools as an HTTP JSON API.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/arxiv-query-service/internal/arxiv"
	"github.com/helixir/arxiv-query-service/internal/domain"
	"github.com/helixir/arxiv-query-service/internal/extract"
	"github.com/helixir/arxiv-query-service/internal/pdf"
	"github.com/helixir/arxiv-query-service/internal/ratelimit"
)

// SearchClient is the search surface the tool handlers need.
type SearchClient interface {
	Search(ctx context.Context, criteria arxiv.Criteria) ([]domain.PaperRecord, error)
	SearchByID(ctx context.Context, id string) (*domain.PaperRecord, error)
	SearchByCategory(ctx context.Context, category, abstract string, maxResults int) ([]domain.PaperRecord, error)
	SearchByAuthor(ctx context.Context, author, abstract string, maxResults int) ([]domain.PaperRecord, error)
	SearchByDateRange(ctx context.Context, dateStart, dateEnd, category string, maxResults int) ([]domain.PaperRecord, error)
}

// PaperDownloader is the download surface the tool handlers need.
type PaperDownloader interface {
	DownloadWithOptions(ctx context.Context, paperID string, opts pdf.Options) (*pdf.DownloadResult, error)
}

// TextExtractor is the extraction surface the tool handlers need.
type TextExtractor interface {
	Extract(ctx context.Context, pdfReference string) (*extract.Result, error)
}

// StatsProvider exposes rate-limiter state for the stats tool.
type StatsProvider interface {
	Stats() ratelimit.Stats
}

// Server is the HTTP API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	search     SearchClient
	downloader PaperDownloader
	extractor  TextExtractor
	limiter    StatsProvider
	validate   *validator.Validate
	logger     zerolog.Logger

	metricsEnabled bool
	metricsPath    string
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
	MetricsPath     string
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(
	cfg Config,
	search SearchClient,
	downloader PaperDownloader,
	extractor TextExtractor,
	limiter StatsProvider,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		search:         search,
		downloader:     downloader,
		extractor:      extractor,
		limiter:        limiter,
		validate:       newValidator(),
		logger:         logger.With().Str("component", "http-server").Logger(),
		metricsEnabled: cfg.MetricsEnabled,
		metricsPath:    cfg.MetricsPath,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// newValidator builds a validator that reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)

	// Health endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	if s.metricsEnabled {
		path := s.metricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}

	// Tool endpoints, one per operation the external dispatcher invokes.
	r.Route("/tools", func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Post("/search_arxiv", s.searchArxiv)
		r.Post("/search_by_id", s.searchByID)
		r.Post("/search_by_category", s.searchByCategory)
		r.Post("/search_by_author", s.searchByAuthor)
		r.Post("/search_by_date_range", s.searchByDateRange)
		r.Post("/download_paper", s.downloadPaper)
		r.Post("/pdf_to_text", s.pdfToText)
		r.Get("/get_rate_limiter_stats", s.rateLimiterStats)
	})

	return r
}

// Handler returns the underlying router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler returns readiness status. The service holds no
// connection-oriented state, so readiness matches liveness.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
