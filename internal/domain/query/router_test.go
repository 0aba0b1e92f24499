package query

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/weather-copilot/pkg/errors"
)

type stubAIParser struct {
	result      AIResult
	err         error
	lastRequest Request
	calls       int
}

func (s *stubAIParser) ParseQuery(_ context.Context, req Request) (AIResult, error) {
	s.calls++
	s.lastRequest = req
	return s.result, s.err
}

func testRouterConfig() Config {
	return Config{
		AIThreshold:   0.7,
		MinConfidence: 0.3,
		AITimeout:     time.Second,
		Timezone:      time.UTC,
	}
}

func newTestRouter(ai AIParser) *Router {
	return NewRouter(testRouterConfig(), ai, newTestRuleParser(), newTestLogger())
}

func aiParsed(confidence float64) ParsedQuery {
	return ParsedQuery{
		OriginalQuery: "weather in Taipei tomorrow",
		Location:      LocationInfo{Name: "Taipei", Confidence: confidence},
		Intent:        WeatherIntent{Primary: IntentWeatherForecast, Confidence: confidence},
		TimeScope:     TimeScope{Type: TimeForecast, Period: "tomorrow", Confidence: confidence},
		Metrics:       []Metric{MetricTemperature},
		Confidence:    confidence,
	}
}

func TestRouteAcceptsConfidentAIParse(t *testing.T) {
	ai := &stubAIParser{result: AIResult{Parsed: aiParsed(0.9), Model: "gpt-4o-mini"}}
	router := newTestRouter(ai)

	result, err := router.Route(context.Background(), Request{Query: "weather in Taipei tomorrow"})
	require.NoError(t, err)
	require.Equal(t, SourceAI, result.Source)
	require.Equal(t, IntentWeatherForecast, result.Parsed.Intent.Primary)
	require.InDelta(t, 0.9, result.Confidence, 1e-9)
	require.Equal(t, "gpt-4o-mini", result.Model)
	require.Equal(t, 1, ai.calls)
}

func TestRouteWithoutAIParserUsesRules(t *testing.T) {
	router := newTestRouter(nil)

	result, err := router.Route(context.Background(), Request{Query: "台北明天會下雨嗎？"})
	require.NoError(t, err)
	require.Equal(t, SourceRuleBased, result.Source)
	require.Equal(t, "台北", result.Parsed.Location.Name)
}

func TestRouteFallsBackOnAIError(t *testing.T) {
	ai := &stubAIParser{err: context.DeadlineExceeded}
	router := newTestRouter(ai)

	result, err := router.Route(context.Background(), Request{Query: "weather in Taipei tomorrow"})
	require.NoError(t, err)
	require.Equal(t, SourceRuleBased, result.Source)
	require.Equal(t, 1, ai.calls, "the ai parser is never retried within a routing attempt")
}

type sleepyAIParser struct {
	delay time.Duration
}

func (s *sleepyAIParser) ParseQuery(_ context.Context, _ Request) (AIResult, error) {
	// Deliberately ignores the context deadline.
	time.Sleep(s.delay)
	return AIResult{Parsed: aiParsed(0.9)}, nil
}

func TestRouteBoundsLatencyWhenParserIgnoresDeadline(t *testing.T) {
	cfg := testRouterConfig()
	cfg.AITimeout = 50 * time.Millisecond
	router := NewRouter(cfg, &sleepyAIParser{delay: 2 * time.Second}, newTestRuleParser(), newTestLogger())

	start := time.Now()
	result, err := router.Route(context.Background(), Request{Query: "weather in Taipei tomorrow"})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, SourceRuleBased, result.Source)
	require.Less(t, elapsed, time.Second, "routing must not wait out a stalled parser")
}

func TestRouteMergesLowConfidenceAIWithRules(t *testing.T) {
	weak := aiParsed(0.4)
	weak.Location = LocationInfo{}
	ai := &stubAIParser{result: AIResult{Parsed: weak, Model: "gpt-4o-mini"}}
	router := newTestRouter(ai)

	result, err := router.Route(context.Background(), Request{Query: "台北明天會下雨嗎？"})
	require.NoError(t, err)
	require.Equal(t, SourceHybrid, result.Source)
	// The rule-based parse fills the missing location.
	require.Equal(t, "台北", result.Parsed.Location.Name)
	// The merged aggregate still cannot exceed the weakest signal (the AI
	// intent confidence).
	require.InDelta(t, 0.4, result.Confidence, 1e-9)
}

func TestRouteKeepsLowConfidenceAIWhenRulesAreWeaker(t *testing.T) {
	weak := aiParsed(0.5)
	ai := &stubAIParser{result: AIResult{Parsed: weak}}
	router := newTestRouter(ai)

	// Pure noise gives the fallback a confidence around the floor band.
	result, err := router.Route(context.Background(), Request{Query: "zzz qqq vvv"})
	require.NoError(t, err)
	require.Equal(t, SourceAI, result.Source)
	require.InDelta(t, 0.5, result.Confidence, 1e-9)
}

func TestRouteRejectsBelowMinimumConfidence(t *testing.T) {
	cfg := testRouterConfig()
	cfg.MinConfidence = 0.99
	router := NewRouter(cfg, nil, newTestRuleParser(), newTestLogger())

	_, err := router.Route(context.Background(), Request{Query: "zzz qqq vvv"})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeParsingFailed))
}

func TestRouteValidatesBeforeParsing(t *testing.T) {
	ai := &stubAIParser{}
	router := newTestRouter(ai)

	_, err := router.Route(context.Background(), Request{Query: "   "})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidQuery))
	require.Zero(t, ai.calls)
}

func TestRouteIsDeterministicForSameInput(t *testing.T) {
	router := newTestRouter(nil)
	req := Request{Query: "台北明天會下雨嗎？"}

	first, err := router.Route(context.Background(), req)
	require.NoError(t, err)
	second, err := router.Route(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, first.Parsed, second.Parsed)
	require.Equal(t, first.Source, second.Source)
	require.Equal(t, first.Confidence, second.Confidence)
}

func TestValidateRequestBounds(t *testing.T) {
	long := make([]byte, maxQueryLength+1)
	for i := range long {
		long[i] = 'a'
	}

	err := ValidateRequest(Request{Query: string(long[:100]) + " " + string(long)})
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidationError))

	err = ValidateRequest(Request{Query: "ok", Context: string(long[:maxTokenLength+1])})
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidationError))

	require.NoError(t, ValidateRequest(Request{Query: "weather in Taipei"}))
}

func TestValidateRequestCountsCharactersNotBytes(t *testing.T) {
	// 250 characters but well over 512 bytes of UTF-8.
	cjk := strings.Repeat("天氣如何 ", 50)
	require.NoError(t, ValidateRequest(Request{Query: cjk}))

	tooLong := strings.Repeat("天 ", maxQueryLength)
	err := ValidateRequest(Request{Query: tooLong})
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidationError))
}

func TestNormalizeCapsAggregateAtWeakestSignal(t *testing.T) {
	parsed := ParsedQuery{
		Location:   LocationInfo{Name: "Taipei", Confidence: 0.4},
		Intent:     WeatherIntent{Primary: IntentCurrentWeather, Confidence: 0.9},
		TimeScope:  TimeScope{Type: TimeCurrent, Confidence: 0.8},
		Confidence: 0.95,
	}.Normalize()

	require.InDelta(t, 0.4, parsed.Confidence, 1e-9)
}
