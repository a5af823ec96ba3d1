package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
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

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/">
  <opensearch:totalResults>2</opensearch:totalResults>
  <opensearch:startIndex>0</opensearch:startIndex>
  <opensearch:itemsPerPage>2</opensearch:itemsPerPage>
  <entry>
    <id>http://arxiv.org/abs/2503.13399v1</id>
    <title>Attention Is Not Enough</title>
    <summary>
      A study of   attention mechanisms.
    </summary>
    <published>2025-03-17T18:00:00Z</published>
    <updated>2025-03-18T09:30:00Z</updated>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
    <category term="cs.AI"/>
    <category term="cs.LG"/>
    <link href="http://arxiv.org/pdf/2503.13399v1" title="pdf" type="application/pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2503.99999v1</id>
    <title></title>
    <summary>Entry with a blank title that must be dropped.</summary>
  </entry>
</feed>`

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/">
  <opensearch:totalResults>0</opensearch:totalResults>
</feed>`

// newTestClient wires a client against a mock server with a generous quota.
func newTestClient(t *testing.T, serverURL, metricsNS string) *Client {
	t.Helper()

	limiter := ratelimit.New(ratelimit.Config{
		MaxCallsPerMinute: 1000,
		MaxCallsPerDay:    1000,
		MinInterval:       time.Nanosecond,
	})

	httpClient := NewHTTPClient(HTTPClientConfig{
		PacingRate: 1000,
		BurstSize:  100,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})

	return NewWithHTTPClient(
		Config{BaseURL: serverURL},
		httpClient,
		limiter,
		zerolog.Nop(),
		observability.NewMetrics(metricsNS),
	)
}

func TestClient_SearchGeneral(t *testing.T) {
	var capturedQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "test_arxiv_general")

	records, err := client.SearchGeneral(context.Background(), "attention", 5)
	require.NoError(t, err)
	require.Len(t, records, 1) // the blank-title entry is dropped

	rec := records[0]
	assert.Equal(t, "2503.13399", rec.ID)
	assert.Equal(t, "Attention Is Not Enough", rec.Title)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, rec.Authors)
	assert.Equal(t, "A study of attention mechanisms.", rec.Summary)
	assert.Equal(t, []string{"cs.AI", "cs.LG"}, rec.Categories)
	assert.Equal(t, "http://arxiv.org/pdf/2503.13399v1", rec.PDFURL)
	assert.Equal(t, 2025, rec.PublishedAt.Year())

	params := capturedQuery.Load().(url.Values)
	assert.Equal(t, "all:attention", params["search_query"][0])
	assert.Equal(t, "5", params["max_results"][0])
	assert.Equal(t, "relevance", params["sortBy"][0])
	assert.Equal(t, "descending", params["sortOrder"][0])
}

func TestClient_SearchByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		var capturedQuery atomic.Value
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedQuery.Store(r.URL.Query())
			w.Write([]byte(sampleFeed))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, "test_arxiv_by_id")

		rec, err := client.SearchByID(context.Background(), "2503.13399")
		require.NoError(t, err)
		assert.Equal(t, "2503.13399", rec.ID)

		// The query filters solely on the identifier.
		params := capturedQuery.Load().(url.Values)
		assert.Equal(t, "id:2503.13399", params["search_query"][0])
		assert.Equal(t, "1", params["max_results"][0])
	})

	t.Run("not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(emptyFeed))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, "test_arxiv_by_id_missing")

		_, err := client.SearchByID(context.Background(), "2503.00000")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("mismatched feed entry", func(t *testing.T) {
		// The feed answers with a different paper than the one asked for;
		// that must not be returned as a match.
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(sampleFeed))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, "test_arxiv_by_id_mismatch")

		_, err := client.SearchByID(context.Background(), "2504.11111")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("versioned id matches base record", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(sampleFeed))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, "test_arxiv_by_id_versioned")

		rec, err := client.SearchByID(context.Background(), "2503.13399v2")
		require.NoError(t, err)
		assert.Equal(t, "2503.13399", rec.ID)
	})
}

func TestClient_SearchByCategory(t *testing.T) {
	var capturedQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedQuery.Store(r.URL.Query())
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "test_arxiv_by_category")

	_, err := client.SearchByCategory(context.Background(), "cs.AI", "", 10)
	require.NoError(t, err)

	params := capturedQuery.Load().(url.Values)
	assert.Equal(t, "cat:cs.AI", params["search_query"][0])
	assert.Equal(t, "submittedDate", params["sortBy"][0])
}

func TestClient_SearchByCategoryWithAbstract(t *testing.T) {
	var capturedQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedQuery.Store(r.URL.Query())
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "test_arxiv_by_category_abs")

	_, err := client.SearchByCategory(context.Background(), "cs.AI", "diffusion", 10)
	require.NoError(t, err)

	params := capturedQuery.Load().(url.Values)
	assert.Equal(t, "abs:diffusion AND cat:cs.AI", params["search_query"][0])
}

func TestClient_SearchByAuthor(t *testing.T) {
	var capturedQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedQuery.Store(r.URL.Query())
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "test_arxiv_by_author")

	_, err := client.SearchByAuthor(context.Background(), "Lovelace", "", 10)
	require.NoError(t, err)

	params := capturedQuery.Load().(url.Values)
	assert.Equal(t, "au:Lovelace", params["search_query"][0])
}

func TestClient_SearchByDateRange(t *testing.T) {
	var capturedQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedQuery.Store(r.URL.Query())
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "test_arxiv_by_date")

	_, err := client.SearchByDateRange(context.Background(), "2024-07-01", "2025-02-28", "cs.AI", 10)
	require.NoError(t, err)

	params := capturedQuery.Load().(url.Values)
	assert.Equal(t, "cat:cs.AI AND submittedDate:[20240701000000 TO 20250228235959]", params["search_query"][0])
}

func TestClient_ValidationFailsBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "test_arxiv_validation")

	_, err := client.Search(context.Background(), Criteria{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, int32(0), calls.Load())
}

func TestClient_RateLimitFailsBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	limiter := ratelimit.New(ratelimit.Config{
		MaxCallsPerMinute: 1,
		MaxCallsPerDay:    1,
		MinInterval:       time.Nanosecond,
	})
	client := NewWithHTTPClient(
		Config{BaseURL: server.URL},
		NewHTTPClient(HTTPClientConfig{PacingRate: 1000, BurstSize: 100}),
		limiter,
		zerolog.Nop(),
		observability.NewMetrics("test_arxiv_rate_limited"),
	)

	_, err := client.SearchGeneral(context.Background(), "first", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	_, err = client.SearchGeneral(context.Background(), "second", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ServerErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "test_arxiv_server_error")

	_, err := client.SearchGeneral(context.Background(), "anything", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, int32(2), calls.Load()) // initial attempt + one retry
}

func TestClient_BadRequestIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("malformed query"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "test_arxiv_bad_request")

	_, err := client.SearchGeneral(context.Background(), "anything", 1)
	require.Error(t, err)

	var apiErr *domain.ExternalAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}
