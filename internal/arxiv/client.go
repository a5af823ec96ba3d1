// Package arxiv implements the search path against the arXiv API: query
// construction from sparse criteria, quota-gated execution with retries, and
// mapping of the Atom feed into normalized paper records.
package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/arxiv-query-service/internal/domain"
	"github.com/helixir/arxiv-query-service/internal/observability"
	"github.com/helixir/arxiv-query-service/internal/ratelimit"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"
)

// Search modes, used as metric and log labels.
const (
	ModeGeneral   = "general"
	ModeID        = "id"
	ModeCategory  = "category"
	ModeAuthor    = "author"
	ModeDateRange = "date_range"
)

// Config holds configuration for the arXiv search client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration

	// PacingRate is the courtesy request pacing in requests per second.
	PacingRate float64
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Client executes quota-gated searches against the arXiv API. Every entry
// point assembles a Criteria and delegates to Execute, so rate limiting,
// validation, and result mapping share one code path.
type Client struct {
	config     Config
	httpClient *HTTPClient
	limiter    *ratelimit.Limiter
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// New creates a new arXiv search client.
func New(cfg Config, limiter *ratelimit.Limiter, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()

	httpClient := NewHTTPClient(HTTPClientConfig{
		Timeout:    cfg.Timeout,
		PacingRate: cfg.PacingRate,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
		metrics:    metrics,
	}
}

// NewWithHTTPClient creates a client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *HTTPClient, limiter *ratelimit.Limiter, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
		metrics:    metrics,
	}
}

// SearchGeneral searches across all fields with a free-text query.
func (c *Client) SearchGeneral(ctx context.Context, query string, maxResults int) ([]domain.PaperRecord, error) {
	return c.execute(ctx, ModeGeneral, Criteria{
		Query:      query,
		MaxResults: maxResults,
	})
}

// SearchByID fetches the single paper with the given arXiv identifier.
// It returns a NotFoundError when the identifier matches nothing.
func (c *Client) SearchByID(ctx context.Context, id string) (*domain.PaperRecord, error) {
	records, err := c.execute(ctx, ModeID, Criteria{
		ID:         id,
		MaxResults: 1,
	})
	if err != nil {
		return nil, err
	}
	// The id filter is exact, but guard against a feed answering with a
	// different paper.
	cleaned := CleanPaperID(id)
	if len(records) == 0 || records[0].ID != cleaned {
		return nil, domain.NewNotFoundError("paper", cleaned)
	}
	return &records[0], nil
}

// SearchByCategory searches within one arXiv subject category, newest first.
// A non-empty abstract term narrows the results further.
func (c *Client) SearchByCategory(ctx context.Context, category, abstract string, maxResults int) ([]domain.PaperRecord, error) {
	return c.execute(ctx, ModeCategory, Criteria{
		Category:   category,
		Abstract:   abstract,
		MaxResults: maxResults,
		SortBy:     SortBySubmittedDate,
	})
}

// SearchByAuthor searches for papers by author name, newest first.
// A non-empty abstract term narrows the results further.
func (c *Client) SearchByAuthor(ctx context.Context, author, abstract string, maxResults int) ([]domain.PaperRecord, error) {
	return c.execute(ctx, ModeAuthor, Criteria{
		Author:     author,
		Abstract:   abstract,
		MaxResults: maxResults,
		SortBy:     SortBySubmittedDate,
	})
}

// SearchByDateRange searches for papers submitted between two calendar
// dates, optionally restricted to one category.
func (c *Client) SearchByDateRange(ctx context.Context, dateStart, dateEnd, category string, maxResults int) ([]domain.PaperRecord, error) {
	return c.execute(ctx, ModeDateRange, Criteria{
		Category:   category,
		DateStart:  dateStart,
		DateEnd:    dateEnd,
		MaxResults: maxResults,
	})
}

// Search runs a fully caller-specified criteria set.
func (c *Client) Search(ctx context.Context, criteria Criteria) ([]domain.PaperRecord, error) {
	return c.execute(ctx, ModeGeneral, criteria)
}

// execute is the single search code path: quota check, query construction,
// one remote call, and feed-to-record mapping.
func (c *Client) execute(ctx context.Context, mode string, criteria Criteria) ([]domain.PaperRecord, error) {
	startTime := time.Now()
	c.metrics.RecordSearchStarted(mode)

	if err := c.limiter.Acquire(); err != nil {
		c.metrics.RecordRateLimitRejection(rejectedQuota(err))
		c.metrics.RecordSearchFailed(mode, time.Since(startTime).Seconds())
		return nil, err
	}

	expr, err := BuildQuery(criteria)
	if err != nil {
		c.metrics.RecordSearchFailed(mode, time.Since(startTime).Seconds())
		return nil, err
	}

	searchURL, err := c.buildSearchURL(expr, criteria)
	if err != nil {
		c.metrics.RecordSearchFailed(mode, time.Since(startTime).Seconds())
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	logger := observability.WithSearchContext(c.logger, expr, mode)
	logger.Debug().Str("url", searchURL).Msg("executing search")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		c.metrics.RecordSearchFailed(mode, time.Since(startTime).Seconds())
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordSearchFailed(mode, time.Since(startTime).Seconds())
		c.metrics.RecordAPIRequestFailed("arxiv", "/query", "network")
		return nil, domain.NewNetworkError("arxiv search", c.httpClient.MaxAttempts(), err)
	}
	defer resp.Body.Close()

	c.metrics.RecordAPIRequest("arxiv", "/query", time.Since(startTime).Seconds())

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		c.metrics.RecordSearchFailed(mode, time.Since(startTime).Seconds())
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	// Parse the Atom XML response (limit body to 10MB).
	var feed Feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&feed); err != nil {
		c.metrics.RecordSearchFailed(mode, time.Since(startTime).Seconds())
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	records := make([]domain.PaperRecord, 0, len(feed.Entries))
	for i := range feed.Entries {
		record, ok := entryToRecord(&feed.Entries[i])
		if !ok {
			logger.Warn().Str("entry_id", feed.Entries[i].ID).Msg("dropping entry missing id or title")
			continue
		}
		records = append(records, record)
	}

	c.metrics.RecordSearchCompleted(mode, len(records), time.Since(startTime).Seconds())
	logger.Info().Int("results", len(records)).Int("total_results", feed.TotalResults).Msg("search completed")

	return records, nil
}

// buildSearchURL constructs the arXiv search API URL from a built expression.
func (c *Client) buildSearchURL(expr string, criteria Criteria) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	query := url.Values{}
	query.Set("search_query", expr)
	query.Set("max_results", strconv.Itoa(criteria.ResultLimit()))
	query.Set("sortBy", criteria.EffectiveSortBy())
	query.Set("sortOrder", criteria.EffectiveSortOrder())

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// entryToRecord converts an arXiv Atom entry to a PaperRecord. It returns
// false when the entry lacks an identifier or title.
func entryToRecord(entry *Entry) (domain.PaperRecord, bool) {
	arxivID := extractEntryID(entry.ID)
	title := normalizeWhitespace(entry.Title)
	if arxivID == "" || title == "" {
		return domain.PaperRecord{}, false
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	categories := make([]string, 0, len(entry.Categories))
	for _, cat := range entry.Categories {
		if cat.Term != "" {
			categories = append(categories, cat.Term)
		}
	}

	var published, updated time.Time
	if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		published = t
	}
	if t, err := time.Parse(time.RFC3339, entry.Updated); err == nil {
		updated = t
	}

	pdfURL := ""
	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			pdfURL = link.Href
			break
		}
	}
	if pdfURL == "" {
		pdfURL = "https://arxiv.org/pdf/" + arxivID
	}

	return domain.PaperRecord{
		ID:          arxivID,
		Title:       title,
		Authors:     authors,
		Summary:     normalizeWhitespace(entry.Summary),
		Categories:  categories,
		PublishedAt: published,
		UpdatedAt:   updated,
		PDFURL:      pdfURL,
	}, true
}

// rejectedQuota maps a rate-limit error to its metric label.
func rejectedQuota(err error) string {
	var rlErr *domain.RateLimitError
	if !errors.As(err, &rlErr) {
		return "unknown"
	}
	switch {
	case strings.Contains(rlErr.Reason, "minute"):
		return "minute"
	case strings.Contains(rlErr.Reason, "daily"):
		return "day"
	default:
		return "interval"
	}
}
