package intentparser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yanqian/weather-copilot/internal/domain/query"
	"github.com/yanqian/weather-copilot/internal/infra/llm/chatgpt"
)

// ChatClient is the completion capability the parser is built on.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
}

// Config carries the parser's model settings.
type Config struct {
	Model       string
	Temperature float32
	Prompt      string
}

// Parser implements query.AIParser on top of an OpenAI-compatible model.
// A current-time snapshot is injected into every prompt so the model never
// has to compute "now" itself.
type Parser struct {
	cfg      Config
	chat     ChatClient
	resolver *query.Resolver
	tz       *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs the parser.
func New(cfg Config, chat ChatClient, resolver *query.Resolver, tz *time.Location, logger *slog.Logger) *Parser {
	if tz == nil {
		tz = time.UTC
	}
	return &Parser{
		cfg:      cfg,
		chat:     chat,
		resolver: resolver,
		tz:       tz,
		logger:   logger.With("component", "llm.intentparser"),
		now:      time.Now,
	}
}

const schemaPrompt = `Respond ONLY with valid minified JSON using this shape:
{"location":{"name":string,"latitude":number|null,"longitude":number|null,"confidence":number,"alternatives":string[]},
"intent":{"primary":"current_weather"|"weather_forecast"|"historical_weather"|"weather_advice"|"location_search","secondary":string[],"confidence":number},
"time":{"type":"current"|"forecast"|"historical","period":string,"start":string|null,"end":string|null,"confidence":number},
"metrics":string[],"preferences":{"language":string,"unit":string,"detail":string},"confidence":number}
All confidence values are between 0.0 and 1.0. Use null for unknown coordinates and timestamps (RFC3339 otherwise). Never return plain text or other fields.`

// ParseQuery implements query.AIParser.
func (p *Parser) ParseQuery(ctx context.Context, req query.Request) (query.AIResult, error) {
	start := p.now()
	snapshot := p.resolver.Snapshot(p.tz)

	base := strings.TrimSpace(p.cfg.Prompt)
	if base == "" {
		base = "You are a multilingual weather query analyst. Extract the structured interpretation of the user's question."
	}

	user := fmt.Sprintf("Current time: %s.\nQuery: %s", snapshot.Description, req.Query)
	if strings.TrimSpace(req.Context) != "" {
		user += "\nContext: " + req.Context
	}

	completion, err := p.chat.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Model:       p.cfg.Model,
		Temperature: p.cfg.Temperature,
		Messages: []chatgpt.Message{
			{Role: "system", Content: base + "\n" + schemaPrompt},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return query.AIResult{}, err
	}
	if len(completion.Choices) == 0 {
		return query.AIResult{}, errors.New("model returned no choices")
	}

	parsed, err := decodeParsedQuery(completion.Choices[0].Message.Content, req.Query)
	if err != nil {
		p.logger.Warn("ai parse decode failed", "error", err)
		return query.AIResult{}, err
	}

	return query.AIResult{
		Parsed:         parsed.Normalize(),
		Model:          p.cfg.Model,
		ProcessingTime: p.now().Sub(start),
		Usage:          completion.TokenUsage(),
	}, nil
}

type parsedWire struct {
	Location struct {
		Name         string   `json:"name"`
		Latitude     *float64 `json:"latitude"`
		Longitude    *float64 `json:"longitude"`
		Confidence   float64  `json:"confidence"`
		Alternatives []string `json:"alternatives"`
	} `json:"location"`
	Intent struct {
		Primary    string   `json:"primary"`
		Secondary  []string `json:"secondary"`
		Confidence float64  `json:"confidence"`
	} `json:"intent"`
	Time struct {
		Type       string  `json:"type"`
		Period     string  `json:"period"`
		Start      *string `json:"start"`
		End        *string `json:"end"`
		Confidence float64 `json:"confidence"`
	} `json:"time"`
	Metrics     []string `json:"metrics"`
	Preferences struct {
		Language string `json:"language"`
		Unit     string `json:"unit"`
		Detail   string `json:"detail"`
	} `json:"preferences"`
	Confidence float64 `json:"confidence"`
}

func decodeParsedQuery(raw, originalQuery string) (query.ParsedQuery, error) {
	sanitized := strings.TrimSpace(raw)
	sanitized = strings.TrimPrefix(sanitized, "```json")
	sanitized = strings.TrimSuffix(sanitized, "```")
	sanitized = strings.Trim(sanitized, "`")
	sanitized = strings.TrimSpace(strings.TrimPrefix(sanitized, "json"))

	var wire parsedWire
	if err := json.Unmarshal([]byte(sanitized), &wire); err != nil {
		return query.ParsedQuery{}, fmt.Errorf("decode structured parse: %w", err)
	}

	primary := query.Intent(wire.Intent.Primary)
	if !primary.Valid() {
		return query.ParsedQuery{}, fmt.Errorf("model returned unknown intent %q", wire.Intent.Primary)
	}
	var secondary []query.Intent
	for _, s := range wire.Intent.Secondary {
		if intent := query.Intent(s); intent.Valid() {
			secondary = append(secondary, intent)
		}
	}

	scope := query.TimeScope{
		Type:       timeType(wire.Time.Type),
		Period:     wire.Time.Period,
		Confidence: wire.Time.Confidence,
	}
	if ts := parseRFC3339(wire.Time.Start); ts != nil {
		scope.Start = ts
	}
	if ts := parseRFC3339(wire.Time.End); ts != nil {
		scope.End = ts
	}

	var metricsOut []query.Metric
	for _, m := range wire.Metrics {
		metricsOut = append(metricsOut, query.Metric(strings.ToLower(strings.TrimSpace(m))))
	}

	return query.ParsedQuery{
		OriginalQuery: originalQuery,
		Location: query.LocationInfo{
			Name:         strings.TrimSpace(wire.Location.Name),
			Latitude:     wire.Location.Latitude,
			Longitude:    wire.Location.Longitude,
			Confidence:   wire.Location.Confidence,
			Alternatives: wire.Location.Alternatives,
		},
		Intent: query.WeatherIntent{
			Primary:    primary,
			Secondary:  secondary,
			Confidence: wire.Intent.Confidence,
		},
		TimeScope:   scope,
		Metrics:     metricsOut,
		Preferences: query.Preferences(wire.Preferences),
		Confidence:  wire.Confidence,
	}, nil
}

func timeType(raw string) query.TimeType {
	switch query.TimeType(strings.ToLower(raw)) {
	case query.TimeForecast:
		return query.TimeForecast
	case query.TimeHistorical:
		return query.TimeHistorical
	default:
		return query.TimeCurrent
	}
}

func parseRFC3339(raw *string) *time.Time {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil
	}
	return &ts
}

var _ query.AIParser = (*Parser)(nil)
