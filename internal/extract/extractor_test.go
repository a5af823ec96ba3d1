package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/arxiv-query-service/internal/domain"
	"github.com/helixir/arxiv-query-service/internal/observability"
	"github.com/helixir/arxiv-query-service/internal/ratelimit"
)

// fakeOCR scripts the outcome of each OCR strategy.
type fakeOCR struct {
	urlText  string
	urlErr   error
	fileText string
	fileErr  error

	urlCalls  atomic.Int32
	fileCalls atomic.Int32
}

func (f *fakeOCR) ProcessURL(ctx context.Context, pdfURL string) (string, error) {
	f.urlCalls.Add(1)
	return f.urlText, f.urlErr
}

func (f *fakeOCR) ProcessFile(ctx context.Context, path string) (string, error) {
	f.fileCalls.Add(1)
	return f.fileText, f.fileErr
}

// generousLimiter admits every call; the fake clock steps far past the
// minimum interval on each read.
func generousLimiter() *ratelimit.Limiter {
	clock := time.Now()
	return ratelimit.NewWithClock(ratelimit.Config{
		MaxCallsPerMinute: 1000,
		MaxCallsPerDay:    1000,
	}, func() time.Time {
		clock = clock.Add(2 * time.Second)
		return clock
	})
}

// newTestExtractor builds an extractor without a downloader; references are
// local paths. The parse hook replaces the real pdf parser.
func newTestExtractor(ocr OCRClient, metricsNS string, parse func(string) (string, error)) *Extractor {
	e := New(Config{}, ocr, generousLimiter(), nil, zerolog.Nop(), observability.NewMetrics(metricsNS))
	if parse != nil {
		e.parse = parse
	}
	return e
}

// writePDF drops a dummy file with an arXiv-id filename into a temp dir.
func writePDF(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "2503.13399.pdf")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestExtract_NoOCRKeyUsesLocalParser(t *testing.T) {
	path := writePDF(t, 64)

	extractor := newTestExtractor(nil, "test_extract_no_key", func(p string) (string, error) {
		assert.Equal(t, path, p)
		return "parsed text", nil
	})

	result, err := extractor.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, MethodLocalParser, result.Method)
	assert.Equal(t, "parsed text", result.Text)
	assert.False(t, result.Degraded, "parser-only mode is not a downgrade")
}

func TestExtract_RemoteOCRFirst(t *testing.T) {
	path := writePDF(t, 64)
	ocr := &fakeOCR{urlText: "remote ocr text"}

	extractor := newTestExtractor(ocr, "test_extract_remote", func(string) (string, error) {
		t.Fatal("parser must not run when remote OCR succeeds")
		return "", nil
	})

	result, err := extractor.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, MethodRemoteOCR, result.Method)
	assert.Equal(t, "remote ocr text", result.Text)
	assert.False(t, result.Degraded)
	assert.Equal(t, int32(1), ocr.urlCalls.Load())
	assert.Equal(t, int32(0), ocr.fileCalls.Load())
}

func TestExtract_FallsBackToLocalOCR(t *testing.T) {
	path := writePDF(t, 64)
	ocr := &fakeOCR{
		urlErr:   errors.New("remote ocr unavailable"),
		fileText: "local ocr text",
	}

	extractor := newTestExtractor(ocr, "test_extract_local_ocr", nil)

	result, err := extractor.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, MethodLocalOCR, result.Method)
	assert.True(t, result.Degraded, "falling below remote OCR must be flagged")
	assert.Equal(t, int32(1), ocr.urlCalls.Load(), "remote OCR is attempted before any fallback")
}

func TestExtract_FallsBackToParser(t *testing.T) {
	path := writePDF(t, 64)
	ocr := &fakeOCR{
		urlErr:  errors.New("remote ocr unavailable"),
		fileErr: errors.New("local ocr unavailable"),
	}

	extractor := newTestExtractor(ocr, "test_extract_parser_fallback", func(string) (string, error) {
		return "parsed text", nil
	})

	result, err := extractor.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, MethodLocalParser, result.Method)
	assert.True(t, result.Degraded)
}

func TestExtract_OversizedFileSkipsLocalOCR(t *testing.T) {
	path := writePDF(t, 256)
	ocr := &fakeOCR{urlErr: errors.New("remote ocr unavailable")}

	e := New(Config{OCRMaxFileSize: 64}, ocr, generousLimiter(), nil, zerolog.Nop(),
		observability.NewMetrics("test_extract_oversized"))
	e.parse = func(string) (string, error) { return "parsed text", nil }

	result, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, MethodLocalParser, result.Method)
	assert.True(t, result.Degraded)
	assert.Equal(t, int32(0), ocr.fileCalls.Load(), "oversized file must not be uploaded")
}

func TestExtract_RateLimitedOCRFallsThrough(t *testing.T) {
	path := writePDF(t, 64)
	ocr := &fakeOCR{urlText: "unreachable", fileText: "unreachable"}

	limiter := ratelimit.New(ratelimit.Config{
		MaxCallsPerMinute: 1,
		MaxCallsPerDay:    1,
		MinInterval:       time.Nanosecond,
	})
	require.NoError(t, limiter.Acquire()) // exhaust the quota

	e := New(Config{}, ocr, limiter, nil, zerolog.Nop(),
		observability.NewMetrics("test_extract_rate_limited"))
	e.parse = func(string) (string, error) { return "parsed text", nil }

	result, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, MethodLocalParser, result.Method)
	assert.True(t, result.Degraded)
	assert.Equal(t, int32(0), ocr.urlCalls.Load(), "rate-limited OCR must not dial out")
	assert.Equal(t, int32(0), ocr.fileCalls.Load())
}

func TestExtract_AllStrategiesFail(t *testing.T) {
	path := writePDF(t, 64)
	ocr := &fakeOCR{
		urlErr:  errors.New("remote ocr unavailable"),
		fileErr: errors.New("local ocr unavailable"),
	}

	extractor := newTestExtractor(ocr, "test_extract_all_fail", func(string) (string, error) {
		return "", domain.NewExtractionError(path, "no extractable text", nil)
	})

	_, err := extractor.Extract(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestExtract_EmptyTextIsNotSuccess(t *testing.T) {
	path := writePDF(t, 64)
	ocr := &fakeOCR{urlText: "   "}

	extractor := newTestExtractor(ocr, "test_extract_empty_text", func(string) (string, error) {
		return "parsed text", nil
	})

	result, err := extractor.Extract(context.Background(), path)
	require.NoError(t, err)

	// Whitespace-only OCR output counts as a failure, not a success.
	assert.Equal(t, MethodLocalParser, result.Method)
	assert.True(t, result.Degraded)
}

func TestExtract_EmptyReference(t *testing.T) {
	extractor := newTestExtractor(nil, "test_extract_empty_ref", nil)

	_, err := extractor.Extract(context.Background(), "  ")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExtract_MissingFileNoStrategies(t *testing.T) {
	extractor := newTestExtractor(nil, "test_extract_missing_file", nil)

	_, err := extractor.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestResolveReference(t *testing.T) {
	extractor := newTestExtractor(nil, "test_extract_resolve", nil)

	t.Run("bare id", func(t *testing.T) {
		ref, err := extractor.resolveReference("2503.13399v1")
		require.NoError(t, err)
		assert.Equal(t, "2503.13399", ref.paperID)
	})

	t.Run("path with id filename", func(t *testing.T) {
		ref, err := extractor.resolveReference("/data/papers/2503.13399.pdf")
		require.NoError(t, err)
		assert.Equal(t, "2503.13399", ref.paperID)
		assert.Equal(t, "/data/papers/2503.13399.pdf", ref.localPath)
	})

	t.Run("path without id filename", func(t *testing.T) {
		ref, err := extractor.resolveReference("/data/papers/some-paper.pdf")
		require.NoError(t, err)
		assert.Empty(t, ref.paperID)
		assert.Equal(t, "/data/papers/some-paper.pdf", ref.localPath)
	})
}
