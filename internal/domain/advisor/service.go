package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yanqian/weather-copilot/internal/domain/query"
	"github.com/yanqian/weather-copilot/internal/domain/weather"
	"github.com/yanqian/weather-copilot/internal/infra/llm/chatgpt"
)

// ChatClient is the LLM capability used to phrase recommendations.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
}

// Service synthesizes weather-driven advice. It first resolves the location
// and the weather through the regular capabilities; when either sub-call or
// the LLM fails it degrades to keyword-based recommendations instead of
// failing outright.
type Service struct {
	cfg      Config
	chat     ChatClient
	geocoder weather.Geocoder
	client   weather.Client
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires up the advisor domain. The chat client may be nil; advice
// then always takes the rule-based path.
func NewService(cfg Config, chat ChatClient, geocoder weather.Geocoder, client weather.Client, logger *slog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		chat:     chat,
		geocoder: geocoder,
		client:   client,
		logger:   logger.With("component", "advisor.service"),
		now:      time.Now,
	}
}

// Recommend implements weather.Advisor.
func (s *Service) Recommend(ctx context.Context, parsed query.ParsedQuery) (weather.Advice, error) {
	place, fc, ok := s.gather(ctx, parsed)
	if !ok || s.chat == nil {
		return s.ruleAdvice(parsed, place, fc), nil
	}

	advice, err := s.askModel(ctx, parsed, place, fc)
	if err != nil {
		s.logger.Warn("llm advice failed, degrading to rules", "error", err)
		return s.ruleAdvice(parsed, place, fc), nil
	}
	advice.Location = place.Name
	advice.Period = parsed.TimeScope.Period
	return advice, nil
}

// gather resolves the location and fetches the relevant weather window.
// Failures are tolerated: advice can still be produced without live data.
func (s *Service) gather(ctx context.Context, parsed query.ParsedQuery) (weather.Place, *weather.Forecast, bool) {
	loc := parsed.Location
	var place weather.Place
	switch {
	case loc.Latitude != nil && loc.Longitude != nil:
		place = weather.Place{Name: loc.Name, Latitude: *loc.Latitude, Longitude: *loc.Longitude}
	case loc.Name != "":
		places, err := s.geocoder.Search(ctx, loc.Name, 1)
		if err != nil || len(places) == 0 {
			s.logger.Warn("advice geocoding failed", "name", loc.Name, "error", err)
			return weather.Place{Name: loc.Name}, nil, false
		}
		place = places[0]
	default:
		return weather.Place{}, nil, false
	}

	days := 3
	if parsed.TimeScope.Type == query.TimeCurrent {
		days = 1
	}
	fc, err := s.client.Forecast(ctx, place.Latitude, place.Longitude, days, false)
	if err != nil {
		s.logger.Warn("advice weather fetch failed", "place", place.Name, "error", err)
		return place, nil, false
	}
	return place, &fc, true
}

func (s *Service) askModel(ctx context.Context, parsed query.ParsedQuery, place weather.Place, fc *weather.Forecast) (weather.Advice, error) {
	payload, err := json.Marshal(struct {
		Question string              `json:"question"`
		Place    weather.Place       `json:"place"`
		Period   string              `json:"period,omitempty"`
		Metrics  []query.Metric      `json:"metrics"`
		Days     []weather.ForecastDay `json:"days"`
	}{parsed.OriginalQuery, place, parsed.TimeScope.Period, parsed.Metrics, fc.Days})
	if err != nil {
		return weather.Advice{}, err
	}

	completion, err := s.chat.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		Messages: []chatgpt.Message{
			{Role: "system", Content: s.buildSystemPrompt()},
			{Role: "user", Content: fmt.Sprintf("Give practical advice for this question based ONLY on this weather data: %s", payload)},
		},
	})
	if err != nil {
		return weather.Advice{}, err
	}
	if len(completion.Choices) == 0 {
		return weather.Advice{}, errors.New("model returned no choices")
	}
	return parseAdvice(completion.Choices[0].Message.Content)
}

func (s *Service) buildSystemPrompt() string {
	base := strings.TrimSpace(s.cfg.Prompt)
	if base == "" {
		base = "You are a practical weather advisor."
	}
	enforcer := " Respond ONLY with valid minified JSON using this shape: {\"summary\":string,\"items\":string[],\"tips\":string[]}. Arrays must contain short actionable strings; if none apply, respond with an empty array. Never return plain text or other fields."
	return base + enforcer
}

func parseAdvice(raw string) (weather.Advice, error) {
	sanitized := strings.TrimSpace(raw)
	sanitized = strings.TrimPrefix(sanitized, "```json")
	sanitized = strings.TrimSuffix(sanitized, "```")
	sanitized = strings.Trim(sanitized, "`")
	sanitized = strings.TrimSpace(strings.TrimPrefix(sanitized, "json"))

	var wire struct {
		Summary string          `json:"summary"`
		Items   json.RawMessage `json:"items"`
		Tips    json.RawMessage `json:"tips"`
	}
	if err := json.Unmarshal([]byte(sanitized), &wire); err != nil {
		return weather.Advice{}, err
	}
	items, err := coerceStringArray(wire.Items)
	if err != nil {
		return weather.Advice{}, err
	}
	tips, err := coerceStringArray(wire.Tips)
	if err != nil {
		return weather.Advice{}, err
	}

	advice := weather.Advice{
		Summary: strings.TrimSpace(wire.Summary),
		Items:   normalizeList(items),
		Tips:    normalizeList(tips),
	}
	if advice.Summary == "" {
		return weather.Advice{}, errors.New("summary missing")
	}
	if len(advice.Items) == 0 {
		return weather.Advice{}, errors.New("recommendations missing")
	}
	return advice, nil
}

func coerceStringArray(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch raw[0] {
	case '"':
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, err
		}
		if strings.TrimSpace(single) == "" {
			return nil, nil
		}
		return []string{single}, nil
	case '[':
		var many []string
		if err := json.Unmarshal(raw, &many); err != nil {
			return nil, err
		}
		return many, nil
	default:
		return nil, errors.New("unsupported advice array format")
	}
}

func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{})
	for _, item := range items {
		clean := strings.TrimSpace(item)
		if clean == "" {
			continue
		}
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	return out
}

// ruleAdvice is the degraded path: recommendations keyed off the intent and
// metric keywords, enriched with live data when a forecast is available.
func (s *Service) ruleAdvice(parsed query.ParsedQuery, place weather.Place, fc *weather.Forecast) weather.Advice {
	lowered := strings.ToLower(parsed.OriginalQuery)
	var items, tips []string

	wantsUmbrella := strings.Contains(lowered, "umbrella") || strings.Contains(lowered, "雨傘") ||
		strings.Contains(lowered, "傘") || hasMetric(parsed.Metrics, query.MetricPrecipitation)
	wantsOutfit := strings.Contains(lowered, "wear") || strings.Contains(lowered, "jacket") ||
		strings.Contains(lowered, "穿") || hasMetric(parsed.Metrics, query.MetricTemperature)

	if wantsUmbrella {
		if day := worstPrecipitation(fc); day != nil && (day.PrecipitationProb >= 40 || day.PrecipitationSum >= 1) {
			items = append(items, "Bring an umbrella; precipitation is likely.")
		} else if day != nil {
			items = append(items, "An umbrella is probably unnecessary, but showers cannot be ruled out.")
		} else {
			items = append(items, "Carry a compact umbrella in case of rain.")
		}
	}
	if wantsOutfit {
		switch {
		case fc != nil && len(fc.Days) > 0 && fc.Days[0].MinTemp < 12:
			items = append(items, "Wear a warm jacket; temperatures are low.")
		case fc != nil && len(fc.Days) > 0 && fc.Days[0].MaxTemp > 28:
			items = append(items, "Dress light and stay hydrated; it will be hot.")
		default:
			items = append(items, "Dress in layers to adapt to changing conditions.")
		}
	}
	if hasMetric(parsed.Metrics, query.MetricUV) {
		items = append(items, "Apply sunscreen if you will be outdoors around midday.")
	}
	if len(items) == 0 {
		items = append(items, "Check the forecast before heading out and dress for the conditions.")
	}
	tips = append(tips, "Conditions can change; re-check closer to your plans.")

	summary := "General weather advice"
	if place.Name != "" {
		summary = fmt.Sprintf("Weather advice for %s", place.Name)
	}
	if parsed.TimeScope.Period != "" {
		summary += fmt.Sprintf(" (%s)", parsed.TimeScope.Period)
	}

	return weather.Advice{
		Summary:  summary,
		Items:    items,
		Tips:     tips,
		Location: place.Name,
		Period:   parsed.TimeScope.Period,
		Degraded: true,
	}
}

func hasMetric(metrics []query.Metric, target query.Metric) bool {
	for _, m := range metrics {
		if m == target {
			return true
		}
	}
	return false
}

func worstPrecipitation(fc *weather.Forecast) *weather.ForecastDay {
	if fc == nil || len(fc.Days) == 0 {
		return nil
	}
	worst := &fc.Days[0]
	for i := range fc.Days {
		if fc.Days[i].PrecipitationProb > worst.PrecipitationProb {
			worst = &fc.Days[i]
		}
	}
	return worst
}

var _ weather.Advisor = (*Service)(nil)
