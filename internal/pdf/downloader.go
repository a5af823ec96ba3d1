// Package pdf downloads arXiv PDF artifacts into a local directory with
// idempotent, crash-safe writes.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/arxiv-query-service/internal/arxiv"
	"github.com/helixir/arxiv-query-service/internal/domain"
	"github.com/helixir/arxiv-query-service/internal/observability"
)

const (
	// DefaultPDFBaseURL is the base URL PDF artifacts are fetched from.
	DefaultPDFBaseURL = "https://arxiv.org/pdf"

	// DefaultTimeout is the per-attempt timeout for a fetch.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retry attempts.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the base delay between retries; doubled per attempt.
	DefaultRetryDelay = 2 * time.Second

	// DefaultMaxSize is the default maximum PDF size in bytes.
	DefaultMaxSize = 100 * 1024 * 1024
)

// DownloadResult holds the outcome of a download.
type DownloadResult struct {
	// PaperID is the normalized arXiv identifier.
	PaperID string `json:"paper_id"`

	// LocalPath is the absolute path of the downloaded file.
	LocalPath string `json:"local_path"`

	// BytesWritten is the file size in bytes. Zero when the file already existed.
	BytesWritten int64 `json:"bytes_written"`

	// AlreadyExisted is true when the file was present and non-empty, in
	// which case no network fetch happened.
	AlreadyExisted bool `json:"already_existed"`
}

// Config holds downloader configuration.
type Config struct {
	// Dir is the destination directory. Created if missing.
	Dir string

	// PDFBaseURL is the base URL PDF artifacts are fetched from.
	PDFBaseURL string

	// Timeout is the per-attempt HTTP timeout.
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts on transient failures.
	MaxRetries int

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration

	// MaxSize is the maximum file size in bytes.
	MaxSize int64

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.PDFBaseURL == "" {
		c.PDFBaseURL = DefaultPDFBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.MaxSize == 0 {
		c.MaxSize = DefaultMaxSize
	}
	if c.UserAgent == "" {
		c.UserAgent = "arxiv-query-service/1.0"
	}
}

// Downloader resolves paper ids to local PDF files. Downloads are
// idempotent: an existing non-empty file short-circuits the fetch. Writes go
// to a temporary file in the destination directory and are renamed into
// place, so readers never observe a partially written file. Concurrent
// downloads for the same id serialize on a per-id lock.
type Downloader struct {
	config  Config
	client  *http.Client
	logger  zerolog.Logger
	metrics *observability.Metrics

	mu    sync.Mutex
	locks map[string]*idLock
}

// New creates a Downloader.
func New(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Downloader {
	cfg.applyDefaults()

	return &Downloader{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger:  logger,
		metrics: metrics,
		locks:   make(map[string]*idLock),
	}
}

// LocalPath resolves the destination path for a paper id without touching
// the network. It rejects ids that are malformed or would escape the
// destination directory.
func (d *Downloader) LocalPath(paperID string) (string, string, error) {
	id := arxiv.CleanPaperID(paperID)
	if !arxiv.IsValidPaperID(id) {
		return "", "", domain.NewValidationError("paper_id", fmt.Sprintf("malformed arXiv identifier: %q", paperID))
	}

	// Legacy ids contain a slash; store them with an underscore instead.
	filename := strings.ReplaceAll(id, "/", "_") + ".pdf"
	path := filepath.Join(d.config.Dir, filename)

	rel, err := filepath.Rel(d.config.Dir, path)
	if err != nil || rel != filename || strings.Contains(rel, "..") {
		return "", "", domain.NewFileSystemError("resolve", path, errors.New("path escapes download directory"))
	}

	return id, path, nil
}

// Options control a single download call.
type Options struct {
	// ForceRefresh re-fetches the PDF even when a cached copy exists. The
	// replacement is still written atomically, so concurrent readers see
	// either the old complete file or the new one.
	ForceRefresh bool
}

// Download fetches the PDF for a paper id into the configured directory.
// A second call for the same id returns immediately with AlreadyExisted set
// and performs no network traffic.
func (d *Downloader) Download(ctx context.Context, paperID string) (*DownloadResult, error) {
	return d.DownloadWithOptions(ctx, paperID, Options{})
}

// DownloadWithOptions is Download with per-call options.
func (d *Downloader) DownloadWithOptions(ctx context.Context, paperID string, opts Options) (*DownloadResult, error) {
	startTime := time.Now()

	id, path, err := d.LocalPath(paperID)
	if err != nil {
		d.metrics.RecordDownloadFailed("validation")
		return nil, err
	}

	lock := d.acquireIDLock(id)
	defer d.releaseIDLock(id, lock)

	if info, err := os.Stat(path); err == nil && info.Size() > 0 && !opts.ForceRefresh {
		d.metrics.RecordDownloadSkipped()
		return &DownloadResult{
			PaperID:        id,
			LocalPath:      path,
			AlreadyExisted: true,
		}, nil
	}

	d.metrics.RecordDownloadStarted()
	logger := observability.WithPaperContext(d.logger, id)

	if err := os.MkdirAll(d.config.Dir, 0o755); err != nil {
		d.metrics.RecordDownloadFailed("filesystem")
		return nil, domain.NewFileSystemError("mkdir", d.config.Dir, err)
	}

	url := d.config.PDFBaseURL + "/" + id + ".pdf"
	written, err := d.fetchAtomic(ctx, logger, url, path)
	if err != nil {
		d.metrics.RecordDownloadFailed(errorType(err))
		return nil, err
	}

	d.metrics.RecordDownloadCompleted(written, time.Since(startTime).Seconds())
	logger.Info().Int64("bytes", written).Str("path", path).Msg("download completed")

	return &DownloadResult{
		PaperID:      id,
		LocalPath:    path,
		BytesWritten: written,
	}, nil
}

// fetchAtomic streams the artifact into a temporary file next to the
// destination and renames it into place on success. Transient failures are
// retried with exponential backoff; a 404 is terminal.
func (d *Downloader) fetchAtomic(ctx context.Context, logger zerolog.Logger, url, dest string) (int64, error) {
	var lastErr error
	for attempt := 0; attempt <= d.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := d.config.RetryDelay << (attempt - 1)
			logger.Warn().Int("attempt", attempt).Dur("delay", delay).Err(lastErr).Msg("retrying download")
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(delay):
			}
		}

		written, err := d.fetchOnce(ctx, url, dest)
		if err == nil {
			return written, nil
		}
		if !isTransient(err) {
			return 0, err
		}
		lastErr = err
	}

	return 0, domain.NewNetworkError("pdf download", d.config.MaxRetries+1, lastErr)
}

// fetchOnce performs a single fetch attempt with a temp-file-then-rename write.
func (d *Downloader) fetchOnce(ctx context.Context, url, dest string) (written int64, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", d.config.UserAgent)
	req.Header.Set("Accept", "application/pdf, */*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, &transientError{cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, domain.NewNotFoundError("pdf", url)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return 0, &transientError{cause: fmt.Errorf("server returned status %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return 0, domain.NewExternalAPIError("arXiv", resp.StatusCode, "unexpected status fetching pdf", nil)
	}

	tmp, err := os.CreateTemp(d.config.Dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return 0, domain.NewFileSystemError("create", d.config.Dir, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	written, err = io.Copy(tmp, io.LimitReader(resp.Body, d.config.MaxSize+1))
	if err != nil {
		err = &transientError{cause: fmt.Errorf("streaming body: %w", err)}
		return 0, err
	}
	if written > d.config.MaxSize {
		err = domain.NewFileSystemError("write", tmp.Name(), fmt.Errorf("pdf exceeds %d bytes", d.config.MaxSize))
		return 0, err
	}
	if written == 0 {
		err = &transientError{cause: errors.New("empty response body")}
		return 0, err
	}

	if err = tmp.Sync(); err != nil {
		err = domain.NewFileSystemError("sync", tmp.Name(), err)
		return 0, err
	}
	if err = tmp.Close(); err != nil {
		err = domain.NewFileSystemError("close", tmp.Name(), err)
		return 0, err
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		err = domain.NewFileSystemError("rename", dest, err)
		return 0, err
	}

	return written, nil
}

// idLock is a reference-counted advisory lock for one paper id. Counting the
// holders lets releaseIDLock drop the map entry once the last one leaves, so
// the lock map does not grow with every id ever downloaded.
type idLock struct {
	sync.Mutex
	refs int
}

// acquireIDLock takes the advisory lock for a paper id, creating it on
// first use.
func (d *Downloader) acquireIDLock(id string) *idLock {
	d.mu.Lock()
	lock, ok := d.locks[id]
	if !ok {
		lock = &idLock{}
		d.locks[id] = lock
	}
	lock.refs++
	d.mu.Unlock()

	lock.Lock()
	return lock
}

// releaseIDLock releases the advisory lock and removes the map entry when no
// other download holds or awaits it.
func (d *Downloader) releaseIDLock(id string, lock *idLock) {
	lock.Unlock()

	d.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(d.locks, id)
	}
	d.mu.Unlock()
}

// transientError marks a failure worth retrying.
type transientError struct {
	cause error
}

func (e *transientError) Error() string {
	return e.cause.Error()
}

func (e *transientError) Unwrap() error {
	return e.cause
}

// isTransient reports whether an error should be retried.
func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// errorType maps an error to its metric label.
func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrFileSystem):
		return "filesystem"
	case errors.Is(err, domain.ErrNetwork):
		return "network"
	default:
		return "other"
	}
}
