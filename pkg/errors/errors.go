package errors

import "fmt"

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork           ErrorType = "network"
	ErrorTypeRateLimit         ErrorType = "rate_limit"
	ErrorTypeParsing           ErrorType = "parsing"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeServerError       ErrorType = "server_error"
	ErrorTypeArchiveAbsent     ErrorType = "archive_absent"
	ErrorTypeArchiveCorrupt    ErrorType = "archive_corrupt"
	ErrorTypeResourceExhausted ErrorType = "resource_exhausted"
	ErrorTypeStoreWrite        ErrorType = "store_write"
	ErrorTypeConfig            ErrorType = "config"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// Error represents a typed error with an optional HTTP code and cause
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same type, so the
// sentinels below match any error carrying that type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound          = &Error{Type: ErrorTypeNotFound, Message: "not found"}
	ErrArchiveAbsent     = &Error{Type: ErrorTypeArchiveAbsent, Message: "archive absent"}
	ErrArchiveCorrupt    = &Error{Type: ErrorTypeArchiveCorrupt, Message: "archive corrupt"}
	ErrResourceExhausted = &Error{Type: ErrorTypeResourceExhausted, Message: "resource exhausted"}
	ErrStoreWrite        = &Error{Type: ErrorTypeStoreWrite, Message: "store write failed"}
	ErrConfig            = &Error{Type: ErrorTypeConfig, Message: "invalid configuration"}
)

// New creates a typed error
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Wrap creates a typed error around a cause
func Wrap(errorType ErrorType, err error, format string, args ...interface{}) *Error {
	return &Error{Type: errorType, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
