package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/arxiv-query-service/internal/arxiv"
	"github.com/helixir/arxiv-query-service/internal/domain"
	"github.com/helixir/arxiv-query-service/internal/pdf"
)

// maxRequestBodySize caps tool request bodies at 1 MB.
const maxRequestBodySize = 1 << 20

// Tool request bodies. Dates use calendar-day precision; the query layer
// expands them to day bounds.

// searchRequest carries the full composite criteria set; every field is
// optional and set fields combine with AND. The query layer rejects a
// request with no criteria at all.
type searchRequest struct {
	Query      string `json:"query" validate:"omitempty,max=2000"`
	PaperID    string `json:"paper_id" validate:"omitempty,max=64"`
	Title      string `json:"title" validate:"omitempty,max=512"`
	Abstract   string `json:"abstract" validate:"omitempty,max=2000"`
	Author     string `json:"author" validate:"omitempty,max=256"`
	Category   string `json:"category" validate:"omitempty,max=32"`
	DateStart  string `json:"date_start" validate:"omitempty,datetime=2006-01-02"`
	DateEnd    string `json:"date_end" validate:"omitempty,datetime=2006-01-02"`
	SortBy     string `json:"sort_by" validate:"omitempty,oneof=relevance submittedDate lastUpdatedDate"`
	SortOrder  string `json:"sort_order" validate:"omitempty,oneof=ascending descending"`
	MaxResults int    `json:"max_results" validate:"omitempty,min=1,max=100"`
}

type searchByIDRequest struct {
	PaperID string `json:"paper_id" validate:"required,max=64"`
}

type searchByCategoryRequest struct {
	Category   string `json:"category" validate:"required,max=32"`
	Abstract   string `json:"abstract" validate:"omitempty,max=2000"`
	MaxResults int    `json:"max_results" validate:"omitempty,min=1,max=100"`
}

type searchByAuthorRequest struct {
	Author     string `json:"author" validate:"required,max=256"`
	Abstract   string `json:"abstract" validate:"omitempty,max=2000"`
	MaxResults int    `json:"max_results" validate:"omitempty,min=1,max=100"`
}

type searchByDateRangeRequest struct {
	DateStart  string `json:"date_start" validate:"required,datetime=2006-01-02"`
	DateEnd    string `json:"date_end" validate:"required,datetime=2006-01-02"`
	Category   string `json:"category" validate:"omitempty,max=32"`
	MaxResults int    `json:"max_results" validate:"omitempty,min=1,max=100"`
}

type downloadPaperRequest struct {
	PaperID      string `json:"paper_id" validate:"required,max=64"`
	ForceRefresh bool   `json:"force_refresh"`
}

type pdfToTextRequest struct {
	Reference string `json:"reference" validate:"required,max=4096"`
}

// Tool response bodies.

type searchResponse struct {
	Papers []domain.PaperRecord `json:"papers"`
	Count  int                  `json:"count"`
}

type paperResponse struct {
	Paper *domain.PaperRecord `json:"paper"`
}

type statsResponse struct {
	TotalCalls         int64   `json:"total_calls"`
	CallsLastMinute    int     `json:"calls_last_minute"`
	CallsToday         int     `json:"calls_today"`
	MinuteLimit        int     `json:"minute_limit"`
	DayLimit           int     `json:"day_limit"`
	MinIntervalSeconds float64 `json:"min_interval_seconds"`
}

// searchArxiv handles POST /tools/search_arxiv.
func (s *Server) searchArxiv(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	papers, err := s.search.Search(r.Context(), arxiv.Criteria{
		Query:      req.Query,
		ID:         req.PaperID,
		Title:      req.Title,
		Abstract:   req.Abstract,
		Author:     req.Author,
		Category:   req.Category,
		DateStart:  req.DateStart,
		DateEnd:    req.DateEnd,
		SortBy:     req.SortBy,
		SortOrder:  req.SortOrder,
		MaxResults: req.MaxResults,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Papers: papers, Count: len(papers)})
}

// searchByID handles POST /tools/search_by_id.
func (s *Server) searchByID(w http.ResponseWriter, r *http.Request) {
	var req searchByIDRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	paper, err := s.search.SearchByID(r.Context(), req.PaperID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, paperResponse{Paper: paper})
}

// searchByCategory handles POST /tools/search_by_category.
func (s *Server) searchByCategory(w http.ResponseWriter, r *http.Request) {
	var req searchByCategoryRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	papers, err := s.search.SearchByCategory(r.Context(), req.Category, req.Abstract, req.MaxResults)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Papers: papers, Count: len(papers)})
}

// searchByAuthor handles POST /tools/search_by_author.
func (s *Server) searchByAuthor(w http.ResponseWriter, r *http.Request) {
	var req searchByAuthorRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	papers, err := s.search.SearchByAuthor(r.Context(), req.Author, req.Abstract, req.MaxResults)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Papers: papers, Count: len(papers)})
}

// searchByDateRange handles POST /tools/search_by_date_range.
func (s *Server) searchByDateRange(w http.ResponseWriter, r *http.Request) {
	var req searchByDateRangeRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	papers, err := s.search.SearchByDateRange(r.Context(), req.DateStart, req.DateEnd, req.Category, req.MaxResults)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Papers: papers, Count: len(papers)})
}

// downloadPaper handles POST /tools/download_paper.
func (s *Server) downloadPaper(w http.ResponseWriter, r *http.Request) {
	var req downloadPaperRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := s.downloader.DownloadWithOptions(r.Context(), req.PaperID, pdf.Options{
		ForceRefresh: req.ForceRefresh,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// pdfToText handles POST /tools/pdf_to_text.
func (s *Server) pdfToText(w http.ResponseWriter, r *http.Request) {
	var req pdfToTextRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := s.extractor.Extract(r.Context(), req.Reference)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// rateLimiterStats handles GET /tools/get_rate_limiter_stats. It is a pure
// read and never consumes quota.
func (s *Server) rateLimiterStats(w http.ResponseWriter, r *http.Request) {
	stats := s.limiter.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		TotalCalls:         stats.TotalCalls,
		CallsLastMinute:    stats.CallsLastMinute,
		CallsToday:         stats.CallsToday,
		MinuteLimit:        stats.MinuteLimit,
		DayLimit:           stats.DayLimit,
		MinIntervalSeconds: stats.MinInterval.Seconds(),
	})
}

// decodeAndValidate reads and validates a JSON request body. On failure it
// writes a structured 400 response and returns false.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "failed to read request body")
		return false
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "validation_error", "request body is required")
		return false
	}

	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON request body")
		return false
	}

	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", formatValidationError(err))
		return false
	}

	return true
}

// formatValidationError renders validator errors field-by-field without
// echoing submitted values back to the client.
func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}

	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts[i] = fmt.Sprintf("%s is required", field)
		case "datetime":
			parts[i] = fmt.Sprintf("%s must be a YYYY-MM-DD date", field)
		case "min", "max":
			parts[i] = fmt.Sprintf("%s is out of range", field)
		default:
			parts[i] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return strings.Join(parts, "; ")
}
