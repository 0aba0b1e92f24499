package query

import (
	"strings"
	"unicode/utf8"

	apperrors "github.com/yanqian/weather-copilot/pkg/errors"
)

// Limits applied before any parsing happens, bounding the worst-case scan
// cost of the fallback parser. Both are character counts, so CJK queries
// get the same budget as ASCII ones.
const (
	maxQueryLength = 512
	maxTokenLength = 64
)

// ValidateRequest rejects empty and oversized queries before parsing.
func ValidateRequest(req Request) error {
	trimmed := strings.TrimSpace(req.Query)
	if trimmed == "" {
		return apperrors.Wrap(apperrors.CodeInvalidQuery, "query cannot be empty", nil)
	}
	if utf8.RuneCountInString(req.Query) > maxQueryLength {
		return apperrors.Wrap(apperrors.CodeValidationError, "query is too long", nil)
	}
	for _, token := range strings.Fields(req.Query + " " + req.Context) {
		if utf8.RuneCountInString(token) > maxTokenLength {
			return apperrors.Wrap(apperrors.CodeValidationError, "query contains an unreasonably long token", nil)
		}
	}
	return nil
}
