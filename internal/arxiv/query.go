package arxiv

import (
	"fmt"
	"strings"
	"time"

	"github.com/helixir/arxiv-query-service/internal/domain"
)

const (
	// DefaultMaxResults is the result count used when the caller does not ask
	// for a specific number.
	DefaultMaxResults = 10

	// MaxResultsCap is the hard upper bound on results per request.
	MaxResultsCap = 100

	// criteriaDateLayout is the calendar-date format accepted in criteria.
	criteriaDateLayout = "2006-01-02"

	// submittedDateLayout is the compact timestamp format the arXiv
	// submittedDate filter accepts.
	submittedDateLayout = "20060102150405"
)

// Sort field and order values accepted by the arXiv API.
const (
	SortByRelevance     = "relevance"
	SortBySubmittedDate = "submittedDate"
	SortByUpdatedDate   = "lastUpdatedDate"

	SortOrderAscending  = "ascending"
	SortOrderDescending = "descending"
)

// Criteria is a sparse set of search constraints. Every field is optional,
// but at least one filtering field (Query, ID, Title, Author, Category, or a
// date bound) must be set. Set fields combine with logical AND.
type Criteria struct {
	// Query matches against all fields (title, abstract, authors, ...).
	Query string

	// ID restricts the search to one arXiv identifier.
	ID string

	// Title matches against the paper title.
	Title string

	// Abstract matches against the paper abstract.
	Abstract string

	// Author matches against author names.
	Author string

	// Category restricts to one arXiv subject category (e.g. "cs.AI").
	Category string

	// DateStart and DateEnd bound the submission date, each as a calendar
	// date in YYYY-MM-DD form. Either may be empty for an open bound, but a
	// lone bound still counts as a filter.
	DateStart string
	DateEnd   string

	// MaxResults caps the number of returned records. Zero means
	// DefaultMaxResults; values above MaxResultsCap are clamped.
	MaxResults int

	// SortBy is one of the SortBy* constants. Empty means relevance, or
	// submittedDate when a date bound is set.
	SortBy string

	// SortOrder is ascending or descending. Empty means descending.
	SortOrder string
}

// hasFilter reports whether any filtering field is set.
func (c *Criteria) hasFilter() bool {
	return c.Query != "" || c.ID != "" || c.Title != "" || c.Abstract != "" ||
		c.Author != "" || c.Category != "" || c.DateStart != "" || c.DateEnd != ""
}

// ResultLimit returns the effective result count after defaulting and clamping.
func (c *Criteria) ResultLimit() int {
	if c.MaxResults <= 0 {
		return DefaultMaxResults
	}
	if c.MaxResults > MaxResultsCap {
		return MaxResultsCap
	}
	return c.MaxResults
}

// EffectiveSortBy returns the sort field after defaulting.
func (c *Criteria) EffectiveSortBy() string {
	if c.SortBy != "" {
		return c.SortBy
	}
	if c.DateStart != "" || c.DateEnd != "" {
		return SortBySubmittedDate
	}
	return SortByRelevance
}

// EffectiveSortOrder returns the sort order after defaulting.
func (c *Criteria) EffectiveSortOrder() string {
	if c.SortOrder != "" {
		return c.SortOrder
	}
	return SortOrderDescending
}

// BuildQuery composes the arXiv search_query expression from the set fields.
// It fails with a ValidationError when no filtering field is set, a date is
// malformed, or DateStart is after DateEnd.
func BuildQuery(c Criteria) (string, error) {
	if !c.hasFilter() {
		return "", domain.NewValidationError("criteria", "at least one search field must be set")
	}
	if err := validateSort(c); err != nil {
		return "", err
	}

	var terms []string

	if c.Query != "" {
		terms = append(terms, "all:"+quoteTerm(c.Query))
	}
	if c.Title != "" {
		terms = append(terms, "ti:"+quoteTerm(c.Title))
	}
	if c.Abstract != "" {
		terms = append(terms, "abs:"+quoteTerm(c.Abstract))
	}
	if c.Author != "" {
		terms = append(terms, "au:"+quoteTerm(c.Author))
	}
	if c.Category != "" {
		terms = append(terms, "cat:"+c.Category)
	}
	if c.ID != "" {
		id := CleanPaperID(c.ID)
		if !IsValidPaperID(id) {
			return "", domain.NewValidationError("id", fmt.Sprintf("malformed arXiv identifier: %q", c.ID))
		}
		terms = append(terms, "id:"+id)
	}

	if c.DateStart != "" || c.DateEnd != "" {
		filter, err := buildDateFilter(c.DateStart, c.DateEnd)
		if err != nil {
			return "", err
		}
		terms = append(terms, filter)
	}

	return strings.Join(terms, " AND "), nil
}

// buildDateFilter normalizes calendar-date bounds into the submittedDate
// range syntax. The start bound expands to 00:00:00 of its day and the end
// bound to 23:59:59, so a single-day range still covers the whole day.
func buildDateFilter(start, end string) (string, error) {
	fromStr, toStr := "*", "*"
	var from, to time.Time

	if start != "" {
		t, err := time.Parse(criteriaDateLayout, start)
		if err != nil {
			return "", domain.NewValidationError("date_start", fmt.Sprintf("malformed date %q, want YYYY-MM-DD", start))
		}
		from = t
		fromStr = t.Format(submittedDateLayout)
	}
	if end != "" {
		t, err := time.Parse(criteriaDateLayout, end)
		if err != nil {
			return "", domain.NewValidationError("date_end", fmt.Sprintf("malformed date %q, want YYYY-MM-DD", end))
		}
		to = t.Add(24*time.Hour - time.Second) // 23:59:59 of the end day
		toStr = to.Format(submittedDateLayout)
	}
	if start != "" && end != "" && from.After(to) {
		return "", domain.NewValidationError("date_range", "date_start must not be after date_end")
	}

	return fmt.Sprintf("submittedDate:[%s TO %s]", fromStr, toStr), nil
}

// validateSort rejects sort values outside the API's vocabulary.
func validateSort(c Criteria) error {
	switch c.SortBy {
	case "", SortByRelevance, SortBySubmittedDate, SortByUpdatedDate:
	default:
		return domain.NewValidationError("sort_by", fmt.Sprintf("unknown sort field: %q", c.SortBy))
	}
	switch c.SortOrder {
	case "", SortOrderAscending, SortOrderDescending:
	default:
		return domain.NewValidationError("sort_order", fmt.Sprintf("unknown sort order: %q", c.SortOrder))
	}
	return nil
}

// quoteTerm wraps multi-word terms in quotes so they match as a phrase.
func quoteTerm(s string) string {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}
