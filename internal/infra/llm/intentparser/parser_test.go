package intentparser

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/weather-copilot/internal/domain/query"
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

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chatResponse(content string) chatgpt.ChatCompletionResponse {
	var resp chatgpt.ChatCompletionResponse
	resp.Choices = append(resp.Choices, struct {
		Message chatgpt.Message `json:"message"`
	}{Message: chatgpt.Message{Content: content}})
	resp.Usage.PromptTokens = 120
	resp.Usage.CompletionTokens = 60
	resp.Usage.TotalTokens = 180
	return resp
}

func newTestParser(chat ChatClient) *Parser {
	return New(Config{Model: "gpt-4o-mini", Temperature: 0.1},
		chat, query.NewResolver(newTestLogger()), time.UTC, newTestLogger())
}

const validModelAnswer = `{"location":{"name":"Taipei","latitude":25.03,"longitude":121.56,"confidence":0.9,"alternatives":[]},
"intent":{"primary":"weather_forecast","secondary":["weather_advice"],"confidence":0.85},
"time":{"type":"forecast","period":"tomorrow","start":"2026-03-15T00:00:00Z","end":"2026-03-16T00:00:00Z","confidence":0.9},
"metrics":["precipitation"],"preferences":{"language":"zh","unit":"celsius","detail":""},"confidence":0.85}`

func TestParseQueryDecodesStructuredAnswer(t *testing.T) {
	chat := &stubChatClient{response: chatResponse(validModelAnswer)}
	parser := newTestParser(chat)

	result, err := parser.ParseQuery(context.Background(), query.Request{Query: "台北明天會下雨嗎？"})
	require.NoError(t, err)

	parsed := result.Parsed
	require.Equal(t, "Taipei", parsed.Location.Name)
	require.NotNil(t, parsed.Location.Latitude)
	require.Equal(t, query.IntentWeatherForecast, parsed.Intent.Primary)
	require.Equal(t, query.TimeForecast, parsed.TimeScope.Type)
	require.NotNil(t, parsed.TimeScope.Start)
	require.Equal(t, []query.Metric{query.MetricPrecipitation}, parsed.Metrics)
	require.InDelta(t, 0.85, parsed.Confidence, 1e-9)
	require.Equal(t, "gpt-4o-mini", result.Model)
	require.Equal(t, 180, result.Usage.TotalTokens)
}

func TestParseQueryInjectsCurrentTime(t *testing.T) {
	chat := &stubChatClient{response: chatResponse(validModelAnswer)}
	parser := newTestParser(chat)

	_, err := parser.ParseQuery(context.Background(), query.Request{Query: "weather tomorrow", Context: "user is in Taipei"})
	require.NoError(t, err)

	require.Len(t, chat.lastRequest.Messages, 2)
	require.Contains(t, chat.lastRequest.Messages[0].Content, "minified JSON")
	require.Contains(t, chat.lastRequest.Messages[1].Content, "Current time:")
	require.Contains(t, chat.lastRequest.Messages[1].Content, "Context: user is in Taipei")
}

func TestParseQueryToleratesFencedOutput(t *testing.T) {
	chat := &stubChatClient{response: chatResponse("```json\n" + validModelAnswer + "\n```")}
	parser := newTestParser(chat)

	result, err := parser.ParseQuery(context.Background(), query.Request{Query: "weather"})
	require.NoError(t, err)
	require.Equal(t, query.IntentWeatherForecast, result.Parsed.Intent.Primary)
}

func TestParseQueryRejectsUnknownIntent(t *testing.T) {
	chat := &stubChatClient{response: chatResponse(`{"intent":{"primary":"book_flight","confidence":0.9},"confidence":0.9}`)}
	parser := newTestParser(chat)

	_, err := parser.ParseQuery(context.Background(), query.Request{Query: "weather"})
	require.Error(t, err)
}

func TestParseQueryRejectsPlainText(t *testing.T) {
	chat := &stubChatClient{response: chatResponse("It will probably rain tomorrow in Taipei.")}
	parser := newTestParser(chat)

	_, err := parser.ParseQuery(context.Background(), query.Request{Query: "weather"})
	require.Error(t, err)
}

func TestParseQueryPropagatesUpstreamError(t *testing.T) {
	chat := &stubChatClient{err: context.DeadlineExceeded}
	parser := newTestParser(chat)

	_, err := parser.ParseQuery(context.Background(), query.Request{Query: "weather"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
