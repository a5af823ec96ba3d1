package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrInvalidInput indicates that the input criteria or arguments are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates that the call was rejected by the rate limiter.
	ErrRateLimited = errors.New("rate limited")

	// ErrNetwork indicates that a network operation failed after exhausting retries.
	ErrNetwork = errors.New("network error")

	// ErrNotFound indicates that a requested paper or artifact was not found.
	ErrNotFound = errors.New("not found")

	// ErrFileSystem indicates a filesystem failure (permissions, disk, traversal rejection).
	ErrFileSystem = errors.New("filesystem error")

	// ErrExtraction indicates that the entire text extraction chain failed.
	ErrExtraction = errors.New("extraction failed")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// RateLimitError provides details about a rejected call.
type RateLimitError struct {
	Reason     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: %s: retry after %s", e.Reason, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited: %s", e.Reason)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// NetworkError wraps a transport failure that survived the retry budget.
type NetworkError struct {
	Operation string
	Attempts  int
	Cause     error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.Cause)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NetworkError) Unwrap() error {
	return ErrNetwork
}

// NotFoundError provides details about a missing paper or artifact.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// FileSystemError provides details about a filesystem failure.
type FileSystemError struct {
	Op    string
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *FileSystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Cause)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *FileSystemError) Unwrap() error {
	return ErrFileSystem
}

// ExtractionError indicates that every extraction strategy failed for a reference.
type ExtractionError struct {
	Reference string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %s", e.Reference, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ExtractionError) Unwrap() error {
	return ErrExtraction
}

// ExternalAPIError provides details about an external API error.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(reason string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Reason: reason, RetryAfter: retryAfter}
}

// NewNetworkError creates a new NetworkError.
func NewNetworkError(operation string, attempts int, cause error) *NetworkError {
	return &NetworkError{Operation: operation, Attempts: attempts, Cause: cause}
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// NewFileSystemError creates a new FileSystemError.
func NewFileSystemError(op, path string, cause error) *FileSystemError {
	return &FileSystemError{Op: op, Path: path, Cause: cause}
}

// NewExtractionError creates a new ExtractionError.
func NewExtractionError(reference, message string, cause error) *ExtractionError {
	return &ExtractionError{Reference: reference, Message: message, Cause: cause}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{Source: source, StatusCode: statusCode, Message: message, Cause: cause}
}
