package advisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/weather-copilot/internal/domain/query"
	"github.com/yanqian/weather-copilot/internal/domain/weather"
	"github.com/yanqian/weather-copilot/internal/infra/llm/chatgpt"
)

type stubChatClient struct {
	response    chatgpt.ChatCompletionResponse
	err         error
	lastRequest chatgpt.ChatCompletionRequest
}

func (s *stubChatClient) CreateChatCompletion(_ context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error) {
	s.lastRequest = req
	return s.response, s.err
}

type stubGeocoder struct {
	places []weather.Place
	err    error
}

func (s *stubGeocoder) Search(context.Context, string, int) ([]weather.Place, error) {
	return s.places, s.err
}

type stubWeatherClient struct {
	forecast weather.Forecast
	err      error
}

func (s *stubWeatherClient) Current(context.Context, float64, float64) (weather.Observation, error) {
	return weather.Observation{}, s.err
}

func (s *stubWeatherClient) Forecast(context.Context, float64, float64, int, bool) (weather.Forecast, error) {
	return s.forecast, s.err
}

func (s *stubWeatherClient) History(context.Context, float64, float64, time.Time, time.Time) (weather.History, error) {
	return weather.History{}, s.err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chatResponse(content string) chatgpt.ChatCompletionResponse {
	var resp chatgpt.ChatCompletionResponse
	resp.Choices = append(resp.Choices, struct {
		Message chatgpt.Message `json:"message"`
	}{Message: chatgpt.Message{Content: content}})
	return resp
}

func testParsed() query.ParsedQuery {
	return query.ParsedQuery{
		OriginalQuery: "should I bring an umbrella to Taipei tomorrow",
		Location:      query.LocationInfo{Name: "Taipei", Confidence: 0.8},
		Intent:        query.WeatherIntent{Primary: query.IntentWeatherAdvice, Confidence: 0.8},
		TimeScope:     query.TimeScope{Type: query.TimeForecast, Period: "tomorrow", Confidence: 0.7},
		Metrics:       []query.Metric{query.MetricPrecipitation},
		Confidence:    0.7,
	}
}

func rainyForecast() weather.Forecast {
	return weather.Forecast{Days: []weather.ForecastDay{
		{MinTemp: 18, MaxTemp: 24, PrecipitationProb: 80, PrecipitationSum: 6, WeatherCode: 63},
	}}
}

func newTestService(chat ChatClient) *Service {
	return NewService(Config{Model: "gpt-4o-mini", Temperature: 0.1, Prompt: "You are a practical weather advisor."},
		chat,
		&stubGeocoder{places: []weather.Place{{Name: "Taipei", Latitude: 25.03, Longitude: 121.56}}},
		&stubWeatherClient{forecast: rainyForecast()},
		newTestLogger())
}

func TestRecommendUsesModelAnswer(t *testing.T) {
	chat := &stubChatClient{response: chatResponse(
		`{"summary":"Rain is likely tomorrow.","items":["Bring an umbrella","Wear waterproof shoes"],"tips":["Re-check in the morning"]}`,
	)}
	svc := newTestService(chat)

	advice, err := svc.Recommend(context.Background(), testParsed())
	require.NoError(t, err)
	require.Equal(t, "Rain is likely tomorrow.", advice.Summary)
	require.Len(t, advice.Items, 2)
	require.Equal(t, "Taipei", advice.Location)
	require.False(t, advice.Degraded)

	require.NotEmpty(t, chat.lastRequest.Messages)
	require.Contains(t, chat.lastRequest.Messages[0].Content, "minified JSON")
}

func TestRecommendToleratesFencedModelOutput(t *testing.T) {
	chat := &stubChatClient{response: chatResponse(
		"```json\n{\"summary\":\"Showers expected.\",\"items\":[\"Take an umbrella\"],\"tips\":[]}\n```",
	)}
	svc := newTestService(chat)

	advice, err := svc.Recommend(context.Background(), testParsed())
	require.NoError(t, err)
	require.Equal(t, "Showers expected.", advice.Summary)
}

func TestRecommendDegradesWhenModelFails(t *testing.T) {
	chat := &stubChatClient{err: errors.New("upstream unavailable")}
	svc := newTestService(chat)

	advice, err := svc.Recommend(context.Background(), testParsed())
	require.NoError(t, err)
	require.True(t, advice.Degraded)
	require.NotEmpty(t, advice.Summary)
	require.NotEmpty(t, advice.Items)
	// The rainy forecast steers the rule-based path toward an umbrella.
	require.Contains(t, advice.Items[0], "umbrella")
}

func TestRecommendDegradesOnUnparsableAnswer(t *testing.T) {
	chat := &stubChatClient{response: chatResponse("Sure! Bring an umbrella.")}
	svc := newTestService(chat)

	advice, err := svc.Recommend(context.Background(), testParsed())
	require.NoError(t, err)
	require.True(t, advice.Degraded)
}

func TestRecommendWithoutChatClientUsesRules(t *testing.T) {
	svc := newTestService(nil)

	advice, err := svc.Recommend(context.Background(), testParsed())
	require.NoError(t, err)
	require.True(t, advice.Degraded)
	require.NotEmpty(t, advice.Items)
}

func TestRecommendWithoutLocationStillAdvises(t *testing.T) {
	svc := newTestService(nil)
	parsed := testParsed()
	parsed.Location = query.LocationInfo{}

	advice, err := svc.Recommend(context.Background(), parsed)
	require.NoError(t, err)
	require.True(t, advice.Degraded)
	require.NotEmpty(t, advice.Summary)
	require.NotEmpty(t, advice.Items)
}
