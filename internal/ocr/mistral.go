// Package ocr provides a client for the Mistral OCR API, which converts PDF
// documents into Markdown text either from a public URL or from uploaded
// file bytes.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/arxiv-query-service/internal/domain"
	"github.com/helixir/arxiv-query-service/internal/observability"
)

const (
	// DefaultBaseURL is the Mistral API base URL.
	DefaultBaseURL = "https://api.mistral.ai/v1"

	// DefaultModel is the OCR model identifier.
	DefaultModel = "mistral-ocr-latest"

	// DefaultTimeout is generous because OCR of a full paper takes a while.
	DefaultTimeout = 120 * time.Second

	// MaxFileSize is the provider's documented upload ceiling (20 MB).
	MaxFileSize = 20 * 1024 * 1024

	// sourceName is the human-readable name for this service.
	sourceName = "Mistral OCR"
)

// Config holds configuration for the OCR client.
type Config struct {
	// APIKey authenticates requests. Required.
	APIKey string

	// BaseURL is the API base URL.
	BaseURL string

	// Model is the OCR model identifier.
	Model string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxFileSize is the upload size ceiling in bytes.
	MaxFileSize int64
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = MaxFileSize
	}
}

// request is the OCR API request payload.
type request struct {
	Model    string   `json:"model"`
	Document document `json:"document"`
}

// document selects the input form: a public URL or inline base64 bytes.
type document struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	Base64      string `json:"base64,omitempty"`
}

// response is the OCR API response payload.
type response struct {
	Pages []page `json:"pages"`
}

// page is one OCR'd page with its position in the document.
type page struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// Client calls the Mistral OCR API. It does no rate limiting of its own;
// callers gate requests through the shared quota limiter.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// New creates an OCR client.
func New(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// ProcessURL runs OCR on a PDF reachable at a public URL, avoiding a local
// upload of the bytes.
func (c *Client) ProcessURL(ctx context.Context, pdfURL string) (string, error) {
	return c.process(ctx, document{
		Type:        "document_url",
		DocumentURL: pdfURL,
	})
}

// ProcessFile runs OCR on a local PDF by uploading its bytes. Files above
// the provider's size ceiling are rejected before any network traffic.
func (c *Client) ProcessFile(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", domain.NewFileSystemError("stat", path, err)
	}
	if info.Size() > c.config.MaxFileSize {
		return "", domain.NewValidationError("file",
			fmt.Sprintf("%s is %d bytes, above the %d byte OCR upload ceiling", path, info.Size(), c.config.MaxFileSize))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", domain.NewFileSystemError("read", path, err)
	}

	return c.process(ctx, document{
		Type:   "base64",
		Base64: base64.StdEncoding.EncodeToString(content),
	})
}

// process sends one OCR request and assembles the per-page Markdown.
func (c *Client) process(ctx context.Context, doc document) (string, error) {
	startTime := time.Now()

	payload, err := json.Marshal(request{
		Model:    c.config.Model,
		Document: doc,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "/ocr"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordAPIRequestFailed("mistral_ocr", "/ocr", "network")
		return "", domain.NewNetworkError("ocr request", 1, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordAPIRequest("mistral_ocr", "/ocr", time.Since(startTime).Seconds())

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		c.metrics.RecordAPIRequestFailed("mistral_ocr", "/ocr", "status")
		return "", domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	var result response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 50<<20)).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	text := assemblePages(result.Pages)
	if text == "" {
		return "", domain.NewExternalAPIError(sourceName, resp.StatusCode, "response contains no extractable markdown", nil)
	}

	c.logger.Debug().Int("pages", len(result.Pages)).Int("characters", len(text)).Msg("ocr completed")
	return text, nil
}

// assemblePages joins per-page Markdown in page order.
func assemblePages(pages []page) string {
	withText := make([]page, 0, len(pages))
	for _, p := range pages {
		if p.Markdown != "" {
			withText = append(withText, p)
		}
	}
	sort.Slice(withText, func(i, j int) bool { return withText[i].Index < withText[j].Index })

	parts := make([]string, len(withText))
	for i, p := range withText {
		parts[i] = p.Markdown
	}
	return strings.Join(parts, "\n\n")
}
