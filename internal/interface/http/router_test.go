package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/weather-copilot/internal/domain/query"
	"github.com/yanqian/weather-copilot/internal/domain/weather"
	"github.com/yanqian/weather-copilot/internal/infra/config"
	apperrors "github.com/yanqian/weather-copilot/pkg/errors"
)

type stubWeatherService struct {
	askFn       func(ctx context.Context, req weather.Request) (weather.Answer, error)
	locationsFn func(ctx context.Context, req weather.Request) (weather.Answer, error)
	adviseFn    func(ctx context.Context, req weather.Request) (weather.Answer, error)
}

func (s *stubWeatherService) Ask(ctx context.Context, req weather.Request) (weather.Answer, error) {
	if s.askFn == nil {
		return weather.Answer{}, nil
	}
	return s.askFn(ctx, req)
}

func (s *stubWeatherService) Locations(ctx context.Context, req weather.Request) (weather.Answer, error) {
	if s.locationsFn == nil {
		return weather.Answer{}, nil
	}
	return s.locationsFn(ctx, req)
}

func (s *stubWeatherService) Advise(ctx context.Context, req weather.Request) (weather.Answer, error) {
	if s.adviseFn == nil {
		return weather.Answer{}, nil
	}
	return s.adviseFn(ctx, req)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRouterUnderTest(t *testing.T, svc weather.Service) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.HTTP.Address = ":0"
	cfg.HTTP.ReadTimeout = time.Second
	cfg.HTTP.WriteTimeout = time.Second
	server := NewRouter(cfg, NewHandler(svc, newTestLogger()))
	return server.Handler
}

func performRequest(path, body string, handler http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

type errorEnvelope struct {
	Error apperrors.UserFriendlyError `json:"error"`
	Text  string                      `json:"text"`
}

func decodeErrorBody(t *testing.T, payload []byte) errorEnvelope {
	t.Helper()
	var body errorEnvelope
	require.NoError(t, json.Unmarshal(payload, &body))
	return body
}

func TestRouter_AskSuccess(t *testing.T) {
	answer := weather.Answer{
		RequestID:  "req-1",
		Source:     query.SourceRuleBased,
		Confidence: 0.7,
		Data:       json.RawMessage(`{"place":{"name":"Taipei"}}`),
		Text:       "Current weather in Taipei: rain, 23.4°C.",
	}
	svc := &stubWeatherService{
		askFn: func(ctx context.Context, req weather.Request) (weather.Answer, error) {
			require.Equal(t, "weather in Taipei", req.Query)
			return answer, nil
		},
	}

	recorder := performRequest("/api/v1/weather/ask", `{"query":"weather in Taipei"}`, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusOK, recorder.Code)

	var got weather.Answer
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Equal(t, answer.RequestID, got.RequestID)
	require.Equal(t, answer.Source, got.Source)
	require.Equal(t, answer.Text, got.Text)
}

func TestRouter_AskInvalidJSON(t *testing.T) {
	recorder := performRequest("/api/v1/weather/ask", `{"query":123}`, newRouterUnderTest(t, &stubWeatherService{}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, apperrors.CodeInvalidQuery, errBody.Error.Code)
	require.NotEmpty(t, errBody.Error.Message)
	require.NotEmpty(t, errBody.Error.Suggestions)
	require.Contains(t, errBody.Text, "Suggestions:")
}

func TestRouter_AskParsingRejection(t *testing.T) {
	svc := &stubWeatherService{
		askFn: func(ctx context.Context, req weather.Request) (weather.Answer, error) {
			return weather.Answer{}, apperrors.Wrap(apperrors.CodeParsingFailed, "the query could not be understood with enough confidence", nil)
		},
	}

	recorder := performRequest("/api/v1/weather/ask", `{"query":"???"}`, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, apperrors.CodeParsingFailed, errBody.Error.Code)
}

func TestRouter_AskUpstreamFailureIsClassified(t *testing.T) {
	svc := &stubWeatherService{
		askFn: func(ctx context.Context, req weather.Request) (weather.Answer, error) {
			return weather.Answer{}, &apperrors.StatusError{Vendor: "open-meteo", StatusCode: 503, Body: "internal detail"}
		},
	}

	recorder := performRequest("/api/v1/weather/ask", `{"query":"weather in Taipei"}`, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusBadGateway, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, apperrors.CodeServiceError, errBody.Error.Code)
	// Raw vendor payloads never leak to the caller.
	require.NotContains(t, recorder.Body.String(), "internal detail")
}

func TestRouter_LocationsSearch(t *testing.T) {
	svc := &stubWeatherService{
		locationsFn: func(ctx context.Context, req weather.Request) (weather.Answer, error) {
			return weather.Answer{Text: "Locations matching Taipei"}, nil
		},
	}

	recorder := performRequest("/api/v1/locations/search", `{"query":"Taipei"}`, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), "Locations matching Taipei")
}

func TestRouter_Advice(t *testing.T) {
	svc := &stubWeatherService{
		adviseFn: func(ctx context.Context, req weather.Request) (weather.Answer, error) {
			return weather.Answer{Text: "Bring an umbrella"}, nil
		},
	}

	recorder := performRequest("/api/v1/weather/advice", `{"query":"umbrella tomorrow?"}`, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), "Bring an umbrella")
}

func TestRouter_Healthz(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	newRouterUnderTest(t, &stubWeatherService{}).ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), "ok")
}

func TestRouter_RateLimitExceeded(t *testing.T) {
	cfg := &config.Config{}
	cfg.HTTP.Address = ":0"
	cfg.HTTP.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}
	server := NewRouter(cfg, NewHandler(&stubWeatherService{}, newTestLogger()))

	first := performRequest("/api/v1/weather/ask", `{"query":"weather"}`, server.Handler)
	require.Equal(t, http.StatusOK, first.Code)

	second := performRequest("/api/v1/weather/ask", `{"query":"weather"}`, server.Handler)
	require.Equal(t, http.StatusTooManyRequests, second.Code)

	errBody := decodeErrorBody(t, second.Body.Bytes())
	require.Equal(t, apperrors.CodeRateLimited, errBody.Error.Code)
}
