package arxiv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/arxiv-query-service/internal/domain"
)

func TestBuildQuery_EmptyCriteria(t *testing.T) {
	_, err := BuildQuery(Criteria{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBuildQuery_SingleFields(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		expected string
	}{
		{
			name:     "free text query",
			criteria: Criteria{Query: "transformer"},
			expected: "all:transformer",
		},
		{
			name:     "multi-word query is quoted",
			criteria: Criteria{Query: "attention mechanism"},
			expected: `all:"attention mechanism"`,
		},
		{
			name:     "title",
			criteria: Criteria{Title: "diffusion"},
			expected: "ti:diffusion",
		},
		{
			name:     "abstract",
			criteria: Criteria{Abstract: "reinforcement"},
			expected: "abs:reinforcement",
		},
		{
			name:     "multi-word abstract is quoted",
			criteria: Criteria{Abstract: "graph neural networks"},
			expected: `abs:"graph neural networks"`,
		},
		{
			name:     "author",
			criteria: Criteria{Author: "Hinton"},
			expected: "au:Hinton",
		},
		{
			name:     "category",
			criteria: Criteria{Category: "cs.AI"},
			expected: "cat:cs.AI",
		},
		{
			name:     "id only",
			criteria: Criteria{ID: "2503.13399"},
			expected: "id:2503.13399",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := BuildQuery(tt.criteria)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, expr)
		})
	}
}

func TestBuildQuery_CombinesWithAND(t *testing.T) {
	expr, err := BuildQuery(Criteria{
		Title:    "diffusion",
		Author:   "Ho",
		Category: "cs.LG",
	})
	require.NoError(t, err)
	assert.Equal(t, "ti:diffusion AND au:Ho AND cat:cs.LG", expr)
}

func TestBuildQuery_AbstractCombines(t *testing.T) {
	expr, err := BuildQuery(Criteria{
		Abstract: "sampling",
		Author:   "Ho",
		Category: "cs.LG",
	})
	require.NoError(t, err)
	assert.Equal(t, "abs:sampling AND au:Ho AND cat:cs.LG", expr)
}

func TestBuildQuery_DateRange(t *testing.T) {
	expr, err := BuildQuery(Criteria{
		DateStart: "2024-07-01",
		DateEnd:   "2025-02-28",
	})
	require.NoError(t, err)
	// The lower bound expands to 00:00:00, the upper bound to 23:59:59.
	assert.Equal(t, "submittedDate:[20240701000000 TO 20250228235959]", expr)
}

func TestBuildQuery_DateRangeWithCategory(t *testing.T) {
	expr, err := BuildQuery(Criteria{
		Category:  "cs.AI",
		DateStart: "2024-01-01",
		DateEnd:   "2024-01-31",
	})
	require.NoError(t, err)
	assert.Equal(t, "cat:cs.AI AND submittedDate:[20240101000000 TO 20240131235959]", expr)
}

func TestBuildQuery_OpenEndedDateRange(t *testing.T) {
	expr, err := BuildQuery(Criteria{DateStart: "2024-07-01"})
	require.NoError(t, err)
	assert.Equal(t, "submittedDate:[20240701000000 TO *]", expr)

	expr, err = BuildQuery(Criteria{DateEnd: "2024-07-01"})
	require.NoError(t, err)
	assert.Equal(t, "submittedDate:[* TO 20240701235959]", expr)
}

func TestBuildQuery_DateValidation(t *testing.T) {
	t.Run("start after end", func(t *testing.T) {
		_, err := BuildQuery(Criteria{
			DateStart: "2025-01-01",
			DateEnd:   "2024-01-01",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("malformed start date", func(t *testing.T) {
		_, err := BuildQuery(Criteria{DateStart: "01/07/2024"})
		require.Error(t, err)

		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "date_start", vErr.Field)
	})

	t.Run("malformed end date", func(t *testing.T) {
		_, err := BuildQuery(Criteria{DateEnd: "not-a-date"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("single day range covers the whole day", func(t *testing.T) {
		expr, err := BuildQuery(Criteria{
			DateStart: "2024-07-01",
			DateEnd:   "2024-07-01",
		})
		require.NoError(t, err)
		assert.Equal(t, "submittedDate:[20240701000000 TO 20240701235959]", expr)
	})
}

func TestBuildQuery_InvalidID(t *testing.T) {
	_, err := BuildQuery(Criteria{ID: "../../etc/passwd"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBuildQuery_IDFromURL(t *testing.T) {
	expr, err := BuildQuery(Criteria{ID: "https://arxiv.org/abs/2503.13399v2"})
	require.NoError(t, err)
	assert.Equal(t, "id:2503.13399", expr)
}

func TestBuildQuery_InvalidSort(t *testing.T) {
	_, err := BuildQuery(Criteria{Query: "x", SortBy: "pagerank"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = BuildQuery(Criteria{Query: "x", SortOrder: "sideways"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCriteria_ResultLimit(t *testing.T) {
	tests := []struct {
		name     string
		max      int
		expected int
	}{
		{name: "zero defaults", max: 0, expected: DefaultMaxResults},
		{name: "negative defaults", max: -5, expected: DefaultMaxResults},
		{name: "in range passes through", max: 25, expected: 25},
		{name: "above cap is clamped", max: 500, expected: MaxResultsCap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Criteria{MaxResults: tt.max}
			assert.Equal(t, tt.expected, c.ResultLimit())
		})
	}
}

func TestCriteria_SortDefaults(t *testing.T) {
	t.Run("general search defaults to relevance", func(t *testing.T) {
		c := Criteria{Query: "x"}
		assert.Equal(t, SortByRelevance, c.EffectiveSortBy())
		assert.Equal(t, SortOrderDescending, c.EffectiveSortOrder())
	})

	t.Run("date-bounded search defaults to submittedDate", func(t *testing.T) {
		c := Criteria{DateStart: "2024-01-01"}
		assert.Equal(t, SortBySubmittedDate, c.EffectiveSortBy())
	})

	t.Run("explicit sort wins", func(t *testing.T) {
		c := Criteria{DateStart: "2024-01-01", SortBy: SortByUpdatedDate, SortOrder: SortOrderAscending}
		assert.Equal(t, SortByUpdatedDate, c.EffectiveSortBy())
		assert.Equal(t, SortOrderAscending, c.EffectiveSortOrder())
	})
}
