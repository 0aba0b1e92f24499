package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
)

// Severity drives the log level of a classified failure. It is never shown
// to the caller.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// UserFriendlyError is the only error shape that crosses the service
// boundary. It carries no stack traces and no raw vendor payloads.
type UserFriendlyError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
	Retryable   bool     `json:"retryable"`
	Severity    Severity `json:"-"`
}

// Render produces the human readable block: message, blank line, numbered
// suggestions, and a retry note when the request may be retried.
func (e UserFriendlyError) Render() string {
	var b strings.Builder
	b.WriteString(e.Message)
	b.WriteString("\n\nSuggestions:\n")
	for i, s := range e.Suggestions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	if e.Retryable {
		b.WriteString("\nThis request may be retried.")
	}
	return b.String()
}

// LogLevel maps severity to the slog level used when recording the failure.
func (e UserFriendlyError) LogLevel() slog.Level {
	switch e.Severity {
	case SeverityLow:
		return slog.LevelInfo
	case SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

type classification struct {
	message     string
	suggestions []string
	retryable   bool
	severity    Severity
}

var byCode = map[string]classification{
	CodeInvalidParams: {
		message:     "The request parameters are invalid.",
		suggestions: []string{"Check the request fields and try again."},
		severity:    SeverityLow,
	},
	CodeUnsupportedRequest: {
		message:     "This kind of request is not supported.",
		suggestions: []string{"Ask about current weather, a forecast, past weather, a place, or weather advice."},
		severity:    SeverityLow,
	},
	CodeInternalError: {
		message:     "Something went wrong on our side.",
		suggestions: []string{"Try again in a moment."},
		retryable:   true,
		severity:    SeverityHigh,
	},
	CodeParsingFailed: {
		message:     "The query could not be understood with enough confidence.",
		suggestions: []string{"Rephrase the question more directly.", "Name the city you are asking about."},
		severity:    SeverityLow,
	},
	CodeNoSuitableAPI: {
		message:     "No capability can answer this query.",
		suggestions: []string{"Ask about current weather, a forecast, past weather, a place, or weather advice."},
		severity:    SeverityMedium,
	},
	CodeInvalidQuery: {
		message:     "The query is empty or malformed.",
		suggestions: []string{"Provide a short question such as \"weather in Taipei tomorrow\"."},
		severity:    SeverityLow,
	},
	CodeTimeout: {
		message:     "The request took too long to process.",
		suggestions: []string{"Try again.", "Simplify your query."},
		retryable:   true,
		severity:    SeverityMedium,
	},
	CodeAuthError: {
		message:     "The weather backend rejected our credentials.",
		suggestions: []string{"Try again later while the configuration is corrected."},
		severity:    SeverityHigh,
	},
	CodeForbidden: {
		message:     "The weather backend refused this request.",
		suggestions: []string{"Try a different location or time window."},
		severity:    SeverityMedium,
	},
	CodeDataNotFound: {
		message:     "No data is available for this request.",
		suggestions: []string{"Try a nearby major city.", "Adjust the date range."},
		severity:    SeverityLow,
	},
	CodeRateLimited: {
		message:     "The weather backend is rate limiting requests.",
		suggestions: []string{"Wait a moment and try again."},
		retryable:   true,
		severity:    SeverityMedium,
	},
	CodeServiceError: {
		message:     "The weather backend is having trouble.",
		suggestions: []string{"Try again shortly."},
		retryable:   true,
		severity:    SeverityMedium,
	},
	CodeNoResults: {
		message:     "No matching location was found.",
		suggestions: []string{"Check the spelling.", "Try a nearby major city."},
		severity:    SeverityLow,
	},
	CodeQuotaExceeded: {
		message:     "The daily quota for the weather backend is exhausted.",
		suggestions: []string{"Try again later."},
		retryable:   true,
		severity:    SeverityHigh,
	},
	CodeRequestDenied: {
		message:     "The weather backend denied the request.",
		suggestions: []string{"Try a different location or time window."},
		severity:    SeverityMedium,
	},
	CodeValidationError: {
		message:     "The query failed validation.",
		suggestions: []string{"Shorten the query.", "Remove unusually long words."},
		severity:    SeverityLow,
	},
	CodeNetworkError: {
		message:     "A network problem interrupted the request.",
		suggestions: []string{"Check connectivity and try again."},
		retryable:   true,
		severity:    SeverityMedium,
	},
	CodeUnknownError: {
		message:     "An unexpected error occurred.",
		suggestions: []string{"Try again.", "Rephrase the question if the problem persists."},
		retryable:   true,
		severity:    SeverityHigh,
	},
}

var vendorCodes = map[string]string{
	"no_results":       CodeNoResults,
	"zero_results":     CodeNoResults,
	"quota_exceeded":   CodeQuotaExceeded,
	"over_query_limit": CodeQuotaExceeded,
	"request_denied":   CodeRequestDenied,
}

// Classify converts any error into exactly one taxonomy entry. It is total:
// every input, including nil, yields a usable UserFriendlyError.
//
// Classification is structural first (AppError code, upstream status class,
// vendor code); substring matching is a last resort for coarse network and
// validation detection only.
func Classify(err error) UserFriendlyError {
	if err == nil {
		return build(CodeUnknownError)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return build(CodeTimeout)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		if _, ok := byCode[appErr.Code]; ok {
			out := build(appErr.Code)
			if appErr.Message != "" {
				out.Message = appErr.Message
			}
			return out
		}
		return build(CodeInternalError)
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return build(CodeTimeout)
		}
		return build(CodeNetworkError)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return build(CodeNetworkError)
	}

	// Best-effort text probes, never the primary mechanism.
	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "connection refused"),
		strings.Contains(text, "no such host"),
		strings.Contains(text, "network is unreachable"):
		return build(CodeNetworkError)
	case strings.Contains(text, "validation"), strings.Contains(text, "invalid"):
		return build(CodeValidationError)
	}

	return build(CodeUnknownError)
}

func classifyStatus(err *StatusError) UserFriendlyError {
	if code, ok := vendorCodes[strings.ToLower(err.VendorCode)]; ok {
		return build(code)
	}
	switch {
	case err.StatusCode == 401:
		return build(CodeAuthError)
	case err.StatusCode == 403:
		return build(CodeForbidden)
	case err.StatusCode == 404:
		return build(CodeDataNotFound)
	case err.StatusCode == 429:
		return build(CodeRateLimited)
	case err.StatusCode >= 500:
		return build(CodeServiceError)
	case err.StatusCode >= 400:
		return build(CodeInvalidParams)
	default:
		return build(CodeServiceError)
	}
}

func build(code string) UserFriendlyError {
	entry := byCode[code]
	return UserFriendlyError{
		Code:        code,
		Message:     entry.message,
		Suggestions: entry.suggestions,
		Retryable:   entry.retryable,
		Severity:    entry.severity,
	}
}
