// Package extract turns a PDF reference, either a local file path or an
// arXiv paper id, into text. Extraction runs an explicit ordered strategy
// chain: remote-URL OCR, then local-file OCR, then a local parser. Each
// strategy reports success or failure as a value, and the result carries
// which method produced the text and whether the chain degraded below the
// first strategy it attempted.
package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/arxiv-query-service/internal/arxiv"
	"github.com/helixir/arxiv-query-service/internal/domain"
	"github.com/helixir/arxiv-query-service/internal/observability"
	"github.com/helixir/arxiv-query-service/internal/pdf"
	"github.com/helixir/arxiv-query-service/internal/ratelimit"
)

// Method identifies the strategy that produced an extraction result.
type Method string

const (
	MethodRemoteOCR   Method = "remote_ocr"
	MethodLocalOCR    Method = "local_ocr"
	MethodLocalParser Method = "local_parser"
)

// Result is the outcome of a successful extraction.
type Result struct {
	// Text is the extracted text.
	Text string `json:"text"`

	// Method is the strategy that produced the text.
	Method Method `json:"method"`

	// Degraded is true when the chain fell back below the first strategy it
	// attempted.
	Degraded bool `json:"degraded"`
}

// OCRClient is the remote OCR surface the extractor needs.
type OCRClient interface {
	ProcessURL(ctx context.Context, pdfURL string) (string, error)
	ProcessFile(ctx context.Context, path string) (string, error)
}

// Config holds extractor configuration.
type Config struct {
	// PDFBaseURL is the base URL remote PDF artifacts live under.
	PDFBaseURL string

	// OCRMaxFileSize is the upload ceiling for local-file OCR in bytes.
	OCRMaxFileSize int64
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.PDFBaseURL == "" {
		c.PDFBaseURL = pdf.DefaultPDFBaseURL
	}
	if c.OCRMaxFileSize == 0 {
		c.OCRMaxFileSize = 20 * 1024 * 1024
	}
}

// Extractor runs the extraction strategy chain. The ocr client may be nil,
// which forces local-parser-only mode and guarantees no network OCR call is
// ever attempted. Both OCR strategies are gated by the shared quota limiter;
// the local parser is not.
type Extractor struct {
	config     Config
	ocr        OCRClient
	limiter    *ratelimit.Limiter
	downloader *pdf.Downloader
	logger     zerolog.Logger
	metrics    *observability.Metrics

	// parse is the local parser entry point; tests substitute it.
	parse func(path string) (string, error)
}

// New creates an Extractor. Pass a nil ocr client when no OCR key is configured.
func New(cfg Config, ocr OCRClient, limiter *ratelimit.Limiter, downloader *pdf.Downloader, logger zerolog.Logger, metrics *observability.Metrics) *Extractor {
	cfg.applyDefaults()

	return &Extractor{
		config:     cfg,
		ocr:        ocr,
		limiter:    limiter,
		downloader: downloader,
		logger:     logger,
		metrics:    metrics,
		parse:      ParseFile,
	}
}

// strategy is one step of the chain. applicable decides without side
// effects whether the step can run; run attempts it.
type strategy struct {
	method     Method
	applicable func(ctx context.Context, ref *reference) bool
	run        func(ctx context.Context, ref *reference) (string, error)
}

// reference is the resolved form of the caller's pdf reference.
type reference struct {
	// paperID is the arXiv id, when one could be derived.
	paperID string

	// localPath is the local file path, when one is known. It may name a
	// file that does not exist yet.
	localPath string

	// downloaded tracks whether an on-demand download was already tried.
	downloaded bool
}

// Extract runs the strategy chain for a local file path or arXiv paper id.
// It fails with an ExtractionError only when every applicable strategy has
// failed; it never reports empty text as success.
func (e *Extractor) Extract(ctx context.Context, pdfReference string) (*Result, error) {
	startTime := time.Now()
	e.metrics.RecordExtractionStarted()

	ref, err := e.resolveReference(pdfReference)
	if err != nil {
		e.metrics.RecordExtractionFailed()
		return nil, err
	}

	chain := []strategy{
		{
			method: MethodRemoteOCR,
			applicable: func(_ context.Context, r *reference) bool {
				return e.ocr != nil && r.paperID != ""
			},
			run: func(ctx context.Context, r *reference) (string, error) {
				if err := e.limiter.Acquire(); err != nil {
					return "", err
				}
				return e.ocr.ProcessURL(ctx, e.config.PDFBaseURL+"/"+r.paperID+".pdf")
			},
		},
		{
			method: MethodLocalOCR,
			applicable: func(ctx context.Context, r *reference) bool {
				if e.ocr == nil {
					return false
				}
				path, err := e.localFile(ctx, r)
				if err != nil {
					return false
				}
				info, err := os.Stat(path)
				return err == nil && info.Size() <= e.config.OCRMaxFileSize
			},
			run: func(ctx context.Context, r *reference) (string, error) {
				if err := e.limiter.Acquire(); err != nil {
					return "", err
				}
				path, err := e.localFile(ctx, r)
				if err != nil {
					return "", err
				}
				return e.ocr.ProcessFile(ctx, path)
			},
		},
		{
			method: MethodLocalParser,
			applicable: func(ctx context.Context, r *reference) bool {
				_, err := e.localFile(ctx, r)
				return err == nil
			},
			run: func(ctx context.Context, r *reference) (string, error) {
				path, err := e.localFile(ctx, r)
				if err != nil {
					return "", err
				}
				return e.parse(path)
			},
		},
	}

	attempted := 0
	var lastErr error
	for _, s := range chain {
		if !s.applicable(ctx, ref) {
			continue
		}
		attempted++
		logger := observability.WithExtractionContext(e.logger, pdfReference, string(s.method))

		text, err := s.run(ctx, ref)
		if err != nil {
			logger.Warn().Err(err).Msg("extraction strategy failed")
			lastErr = err
			continue
		}
		if strings.TrimSpace(text) == "" {
			logger.Warn().Msg("extraction strategy produced empty text")
			lastErr = domain.NewExtractionError(pdfReference, "strategy produced empty text", nil)
			continue
		}

		e.metrics.RecordExtractionCompleted(string(s.method), time.Since(startTime).Seconds())
		return &Result{
			Text:     text,
			Method:   s.method,
			Degraded: attempted > 1,
		}, nil
	}

	e.metrics.RecordExtractionFailed()
	if lastErr == nil {
		lastErr = errors.New("no extraction strategy applicable")
	}
	return nil, domain.NewExtractionError(pdfReference, "all extraction strategies failed", lastErr)
}

// resolveReference classifies the caller's reference as a paper id, a local
// path, or both (a local file whose name encodes an arXiv id).
func (e *Extractor) resolveReference(raw string) (*reference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, domain.NewValidationError("reference", "pdf reference must not be empty")
	}

	if id := arxiv.CleanPaperID(raw); arxiv.IsValidPaperID(id) {
		ref := &reference{paperID: id}
		if e.downloader != nil {
			if _, path, err := e.downloader.LocalPath(id); err == nil {
				ref.localPath = path
			}
		}
		return ref, nil
	}

	ref := &reference{localPath: raw}
	if id := arxiv.ExtractIDFromFilename(filepath.Base(raw)); id != "" {
		ref.paperID = id
	}
	return ref, nil
}

// localFile returns a path to an existing local copy of the reference,
// downloading it once on demand when only a paper id is known.
func (e *Extractor) localFile(ctx context.Context, r *reference) (string, error) {
	if r.localPath != "" {
		if _, err := os.Stat(r.localPath); err == nil {
			return r.localPath, nil
		}
	}
	if r.paperID == "" || e.downloader == nil || r.downloaded {
		return "", domain.NewFileSystemError("stat", r.localPath, os.ErrNotExist)
	}

	r.downloaded = true
	result, err := e.downloader.Download(ctx, r.paperID)
	if err != nil {
		return "", err
	}
	r.localPath = result.LocalPath
	return r.localPath, nil
}
