package errors

import "errors"

// Canonical error codes used across the routing pipeline. The HTTP layer and
// the classifier treat these as the stable shape of a failure; free text is
// never matched against them.
const (
	CodeInvalidParams      = "INVALID_PARAMS"
	CodeUnsupportedRequest = "UNSUPPORTED_REQUEST"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeParsingFailed      = "PARSING_FAILED"
	CodeNoSuitableAPI      = "NO_SUITABLE_API"
	CodeInvalidQuery       = "INVALID_QUERY"
	CodeTimeout            = "TIMEOUT"
	CodeAuthError          = "AUTH_ERROR"
	CodeForbidden          = "FORBIDDEN"
	CodeDataNotFound       = "DATA_NOT_FOUND"
	CodeRateLimited        = "RATE_LIMITED"
	CodeServiceError       = "SERVICE_ERROR"
	CodeNoResults          = "NO_RESULTS"
	CodeQuotaExceeded      = "QUOTA_EXCEEDED"
	CodeRequestDenied      = "REQUEST_DENIED"
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNetworkError       = "NETWORK_ERROR"
	CodeUnknownError       = "UNKNOWN_ERROR"
)

// AppError encodes domain specific error details.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap produces a new AppError instance.
func Wrap(code, message string, err error) error {
	if err == nil {
		return &AppError{Code: code, Message: message}
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// IsCode helps callers differentiate failures.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// StatusError carries the stable shape of an upstream API failure: the HTTP
// status class and, when the vendor exposes one, a vendor specific code.
type StatusError struct {
	Vendor     string
	StatusCode int
	VendorCode string
	Body       string
}

func (e *StatusError) Error() string {
	if e.VendorCode != "" {
		return e.Vendor + " request failed: " + e.VendorCode
	}
	return e.Vendor + " request failed"
}
