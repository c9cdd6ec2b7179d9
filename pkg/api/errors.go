package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/annosearch/anno/internal/backend"
	"github.com/annosearch/anno/internal/dataset"
	"github.com/annosearch/anno/internal/document"
	"github.com/annosearch/anno/internal/ingest"
	"github.com/annosearch/anno/internal/search"
	"github.com/annosearch/anno/internal/snapshot"
)

// Error codes carried in the response envelope. Clients dispatch on these,
// so they are stable strings.
const (
	CodeBadRequest        = "anno.api.errors::BadRequestError"
	CodeInvalidTextSearch = "anno.api.errors::InvalidTextSearchError"
	CodeNotFound          = "anno.api.errors::NotFoundError"
	CodeUnavailable       = "anno.api.errors::UnavailableError"
	CodeGenericServer     = "anno.api.errors::GenericServerError"
)

// ErrorParams holds the human-readable side of an error response.
type ErrorParams struct {
	Message string `json:"message"`
}

// ErrorDetail is the code plus params pair inside the envelope.
type ErrorDetail struct {
	Code   string      `json:"code"`
	Params ErrorParams `json:"params"`
}

// ErrorResponse is the error envelope every failed request returns.
type ErrorResponse struct {
	Detail ErrorDetail `json:"detail"`
}

// APIError pairs an HTTP status with an envelope code and message.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(statusCode int, code, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// ErrBadRequest returns a 400 Bad Request error.
func ErrBadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, CodeBadRequest, message)
}

// ErrInvalidTextSearch returns a 400 error for an unparseable text query.
func ErrInvalidTextSearch(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, CodeInvalidTextSearch, message)
}

// ErrNotFound returns a 404 Not Found error.
func ErrNotFound(message string) *APIError {
	return NewAPIError(http.StatusNotFound, CodeNotFound, message)
}

// ErrUnavailable returns a 503 Service Unavailable error.
func ErrUnavailable(message string) *APIError {
	return NewAPIError(http.StatusServiceUnavailable, CodeUnavailable, message)
}

// ErrInternalServer returns a 500 Internal Server Error.
func ErrInternalServer(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, CodeGenericServer, message)
}

// ErrUnauthorized returns a 401 Unauthorized error.
func ErrUnauthorized(message string) *APIError {
	return NewAPIError(http.StatusUnauthorized, CodeBadRequest, message)
}

// ErrInvalidJSON returns a 400 error for invalid JSON.
func ErrInvalidJSON() *APIError {
	return ErrBadRequest("invalid JSON in request body")
}

// ErrDatasetNotFound returns a 404 error for a missing dataset.
func ErrDatasetNotFound(name string) *APIError {
	return ErrNotFound("dataset '" + name + "' not found")
}

// mapError lowers a domain error to its API representation.
func mapError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var invalidQuery *search.InvalidTextSearchError
	if errors.As(err, &invalidQuery) {
		return ErrInvalidTextSearch(invalidQuery.Error())
	}
	var badRequest *search.BadRequestError
	if errors.As(err, &badRequest) {
		return ErrBadRequest(badRequest.Error())
	}
	var validation *document.ValidationError
	if errors.As(err, &validation) {
		return ErrBadRequest(validation.Error())
	}

	switch {
	case errors.Is(err, dataset.ErrNotFound),
		errors.Is(err, dataset.ErrTombstoned),
		errors.Is(err, snapshot.ErrNotFound):
		return ErrNotFound(err.Error())
	case errors.Is(err, dataset.ErrEmptyName),
		errors.Is(err, dataset.ErrNameTooLong),
		errors.Is(err, dataset.ErrInvalidCharacters),
		errors.Is(err, ingest.ErrTooManyRecords):
		return ErrBadRequest(err.Error())
	case errors.Is(err, backend.ErrUnavailable):
		return ErrUnavailable("search backend is temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return ErrUnavailable("request timed out")
	}
	return ErrInternalServer(err.Error())
}

// MaxRequestBodySize is the maximum allowed request body size (64MB).
const MaxRequestBodySize = 64 * 1024 * 1024
