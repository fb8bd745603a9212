package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is the fixed vocabulary of extraction failures.
type ErrorCode string

const (
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeItemNotFound       ErrorCode = "ITEM_NOT_FOUND"
	CodeInvalidResponse    ErrorCode = "INVALID_RESPONSE"
	CodeConfigurationError ErrorCode = "CONFIGURATION_ERROR"
	CodeAdapterDisabled    ErrorCode = "ADAPTER_DISABLED"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"
	CodeAllAdaptersFailed  ErrorCode = "ALL_ADAPTERS_FAILED"
)

// ExtractionError is a typed failure from one adapter attempt.
// Payload, when set, carries the upstream response that triggered the failure
// so it can be retained for debugging even though no listing was created.
type ExtractionError struct {
	Adapter     string
	Code        ErrorCode
	Err         error
	Payload     []byte
	PayloadKind PayloadKind
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Adapter, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Adapter, e.Code)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the router should move on to the next adapter.
// ITEM_NOT_FOUND is authoritative and ADAPTER_DISABLED is definitive for the
// whole chain; everything else is worth another candidate.
func (e *ExtractionError) Retryable() bool {
	switch e.Code {
	case CodeItemNotFound, CodeAdapterDisabled:
		return false
	default:
		return true
	}
}

// NewExtractionError wraps err with an adapter name and error code.
func NewExtractionError(adapter string, code ErrorCode, err error) *ExtractionError {
	return &ExtractionError{Adapter: adapter, Code: code, Err: err}
}

// AttemptError records one adapter's failure inside an aggregate.
type AttemptError struct {
	Adapter string    `json:"adapter"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// AggregateError is returned when every candidate adapter was exhausted
// without success. It enumerates each adapter tried and its individual error.
type AggregateError struct {
	URL      string
	Attempts []AttemptError
}

func (e *AggregateError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("%s: no adapter available for %s", CodeAllAdaptersFailed, e.URL)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s=%s", a.Adapter, a.Code))
	}
	return fmt.Sprintf("%s: %s [%s]", CodeAllAdaptersFailed, e.URL, strings.Join(parts, " "))
}

// CodeOf extracts the error code from an extraction or aggregate error.
// Unknown errors map to INVALID_RESPONSE.
func CodeOf(err error) ErrorCode {
	var exErr *ExtractionError
	if errors.As(err, &exErr) {
		return exErr.Code
	}
	var aggErr *AggregateError
	if errors.As(err, &aggErr) {
		return CodeAllAdaptersFailed
	}
	return CodeInvalidResponse
}
