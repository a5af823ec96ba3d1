package httpserver

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/helixir/arxiv-query-service/internal/domain"
)

// errorPayload is the structured failure body every tool endpoint returns.
// Dispatchers branch on Code; Message is human-readable.
type errorPayload struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code              string  `json:"code"`
	Message           string  `json:"message"`
	RetryAfterSeconds float64 `json:"retry_after_seconds,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorPayload{Error: errorBody{
		Code:    code,
		Message: message,
	}})
}

// writeDomainError maps domain errors to HTTP status codes and structured
// failure payloads. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, "validation_error", ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "validation_error", "invalid input")
		}
	case errors.Is(err, domain.ErrRateLimited):
		var rlErr *domain.RateLimitError
		if errors.As(err, &rlErr) {
			seconds := math.Ceil(rlErr.RetryAfter.Seconds())
			w.Header().Set("Retry-After", strconv.Itoa(int(seconds)))
			writeJSON(w, http.StatusTooManyRequests, errorPayload{Error: errorBody{
				Code:              "rate_limited",
				Message:           rlErr.Error(),
				RetryAfterSeconds: seconds,
			}})
		} else {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limited, try later")
		}
	case errors.Is(err, domain.ErrNotFound):
		var nfErr *domain.NotFoundError
		if errors.As(err, &nfErr) {
			writeError(w, http.StatusNotFound, "not_found", nfErr.Error())
		} else {
			writeError(w, http.StatusNotFound, "not_found", "resource not found")
		}
	case errors.Is(err, domain.ErrNetwork):
		writeError(w, http.StatusBadGateway, "network_error", "upstream request failed after retries")
	case errors.Is(err, domain.ErrExtraction):
		writeError(w, http.StatusUnprocessableEntity, "extraction_error", "text extraction failed")
	case errors.Is(err, domain.ErrFileSystem):
		writeError(w, http.StatusInternalServerError, "filesystem_error", "filesystem operation failed")
	default:
		var apiErr *domain.ExternalAPIError
		if errors.As(err, &apiErr) {
			writeError(w, http.StatusBadGateway, "upstream_error", apiErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
