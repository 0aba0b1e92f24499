package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yanqian/weather-copilot/pkg/errors"
)

// statusFor maps classifier codes onto HTTP status codes. Every taxonomy
// entry has a mapping; anything unmapped is a server fault.
func statusFor(code string) int {
	switch code {
	case apperrors.CodeInvalidParams,
		apperrors.CodeInvalidQuery,
		apperrors.CodeValidationError:
		return http.StatusBadRequest
	case apperrors.CodeParsingFailed,
		apperrors.CodeUnsupportedRequest,
		apperrors.CodeNoSuitableAPI:
		return http.StatusUnprocessableEntity
	case apperrors.CodeDataNotFound, apperrors.CodeNoResults:
		return http.StatusNotFound
	case apperrors.CodeRateLimited, apperrors.CodeQuotaExceeded:
		return http.StatusTooManyRequests
	case apperrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.CodeAuthError,
		apperrors.CodeForbidden,
		apperrors.CodeRequestDenied,
		apperrors.CodeServiceError,
		apperrors.CodeNetworkError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError records the raw error on the context for the error
// middleware, which classifies it exactly once before rendering.
func abortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}
