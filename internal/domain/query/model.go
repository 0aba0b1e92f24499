package query

import (
	"context"
	"time"

	"github.com/yanqian/weather-copilot/pkg/metrics"
)

// Intent is the user's underlying goal category. The set is closed; the
// dispatcher switches over it exhaustively.
type Intent string

const (
	IntentCurrentWeather    Intent = "current_weather"
	IntentWeatherForecast   Intent = "weather_forecast"
	IntentHistoricalWeather Intent = "historical_weather"
	IntentWeatherAdvice     Intent = "weather_advice"
	IntentLocationSearch    Intent = "location_search"
)

// Specificity ranks intents by narrowness. Ties between equally scored
// intents break toward the narrower one, because narrower intents imply
// more downstream work.
func (i Intent) Specificity() int {
	switch i {
	case IntentWeatherAdvice:
		return 5
	case IntentHistoricalWeather:
		return 4
	case IntentWeatherForecast:
		return 3
	case IntentCurrentWeather:
		return 2
	case IntentLocationSearch:
		return 1
	default:
		return 0
	}
}

// Valid reports whether the tag belongs to the closed intent set.
func (i Intent) Valid() bool {
	return i.Specificity() > 0
}

// Metric tags the weather measurements a query asks about.
type Metric string

const (
	MetricTemperature   Metric = "temperature"
	MetricHumidity      Metric = "humidity"
	MetricPrecipitation Metric = "precipitation"
	MetricWind          Metric = "wind"
	MetricPressure      Metric = "pressure"
	MetricVisibility    Metric = "visibility"
	MetricUV            Metric = "uv"
	MetricAirQuality    Metric = "air_quality"
	MetricConditions    Metric = "conditions"
	MetricFeelsLike     Metric = "feels_like"
)

// TimeType tags the temporal window class of a query.
type TimeType string

const (
	TimeCurrent    TimeType = "current"
	TimeForecast   TimeType = "forecast"
	TimeHistorical TimeType = "historical"
)

// TimeScope is the resolved temporal window. The type tag is always present;
// absolute bounds only when the resolver anchored the expression.
type TimeScope struct {
	Type       TimeType   `json:"type"`
	Period     string     `json:"period,omitempty"`
	Start      *time.Time `json:"start,omitempty"`
	End        *time.Time `json:"end,omitempty"`
	Confidence float64    `json:"confidence"`
}

// LocationInfo is the resolved place a query refers to. Owned by the
// ParsedQuery that contains it, never shared across requests.
type LocationInfo struct {
	Name         string   `json:"name,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Confidence   float64  `json:"confidence"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// Empty reports whether no usable location signal is present.
func (l LocationInfo) Empty() bool {
	return l.Name == "" && (l.Latitude == nil || l.Longitude == nil)
}

// WeatherIntent pairs a primary intent with optional secondaries.
type WeatherIntent struct {
	Primary    Intent   `json:"primary"`
	Secondary  []Intent `json:"secondary,omitempty"`
	Confidence float64  `json:"confidence"`
}

// Preferences carries presentation hints extracted from the query.
type Preferences struct {
	Language string `json:"language,omitempty"`
	Unit     string `json:"unit,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// ParsedQuery is the canonical structured interpretation of a request.
// Immutable once produced; never persisted beyond the request lifecycle.
type ParsedQuery struct {
	OriginalQuery string        `json:"originalQuery"`
	Location      LocationInfo  `json:"location"`
	Intent        WeatherIntent `json:"intent"`
	TimeScope     TimeScope     `json:"timeScope"`
	Metrics       []Metric      `json:"metrics"`
	Preferences   Preferences   `json:"preferences"`
	Confidence    float64       `json:"confidence"`
}

// Normalize enforces the confidence invariant: the aggregate never exceeds
// the weakest contributing signal. Location only contributes when present.
func (p ParsedQuery) Normalize() ParsedQuery {
	weakest := p.Intent.Confidence
	if p.TimeScope.Confidence < weakest {
		weakest = p.TimeScope.Confidence
	}
	if !p.Location.Empty() && p.Location.Confidence < weakest {
		weakest = p.Location.Confidence
	}
	if p.Confidence > weakest {
		p.Confidence = weakest
	}
	p.Confidence = clamp01(p.Confidence)
	return p
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Source records which parsing path produced the final interpretation.
type Source string

const (
	SourceAI        Source = "ai"
	SourceRuleBased Source = "rule_based"
	SourceHybrid    Source = "hybrid"
)

// Request is the raw input delivered by the transport layer. Context is
// free text, never a structured object.
type Request struct {
	Query   string `json:"query"`
	Context string `json:"context,omitempty"`
}

// RoutingResult is the router's output envelope, created once per request
// and discarded after response formatting.
type RoutingResult struct {
	Parsed         ParsedQuery        `json:"parsed"`
	Source         Source             `json:"source"`
	Confidence     float64            `json:"confidence"`
	ProcessingTime time.Duration      `json:"processingTime"`
	Model          string             `json:"model,omitempty"`
	Usage          metrics.TokenUsage `json:"usage,omitzero"`
}

// RouteEntry is the provenance record persisted for diagnostics.
type RouteEntry struct {
	RequestID  string        `json:"requestId"`
	Query      string        `json:"query"`
	Source     Source        `json:"source"`
	Intent     Intent        `json:"intent"`
	Confidence float64       `json:"confidence"`
	Accepted   bool          `json:"accepted"`
	ErrorCode  string        `json:"errorCode,omitempty"`
	Latency    time.Duration `json:"latency"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// RouteLog records routing decisions. Implementations must be safe for
// concurrent use; recording is best effort and never blocks a response.
type RouteLog interface {
	Record(ctx context.Context, entry RouteEntry) error
}
