package weather

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yanqian/weather-copilot/internal/domain/query"
)

// Request is the transport-level payload for every capability endpoint.
type Request struct {
	Query   string `json:"query" binding:"required"`
	Context string `json:"context,omitempty"`
}

// Answer is the dual-format response envelope: a machine readable payload
// plus a human readable text block.
type Answer struct {
	RequestID  string          `json:"requestId"`
	Source     query.Source    `json:"source"`
	Confidence float64         `json:"confidence"`
	Data       json.RawMessage `json:"data"`
	Text       string          `json:"text"`
	Cached     bool            `json:"cached,omitempty"`
}

// Place is a resolved geographic location.
type Place struct {
	Name      string  `json:"name"`
	Country   string  `json:"country,omitempty"`
	Admin1    string  `json:"admin1,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone,omitempty"`
}

// Observation is a snapshot of current conditions.
type Observation struct {
	Time          time.Time `json:"time"`
	Temperature   float64   `json:"temperature"`
	FeelsLike     float64   `json:"feelsLike"`
	Humidity      float64   `json:"humidity"`
	Precipitation float64   `json:"precipitation"`
	WindSpeed     float64   `json:"windSpeed"`
	Pressure      float64   `json:"pressure"`
	WeatherCode   int       `json:"weatherCode"`
}

// ForecastDay aggregates one forecast or archive day.
type ForecastDay struct {
	Date              time.Time `json:"date"`
	MinTemp           float64   `json:"minTemp"`
	MaxTemp           float64   `json:"maxTemp"`
	PrecipitationSum  float64   `json:"precipitationSum"`
	PrecipitationProb float64   `json:"precipitationProb,omitempty"`
	WindSpeedMax      float64   `json:"windSpeedMax"`
	WeatherCode       int       `json:"weatherCode"`
}

// ForecastHour is a single hourly forecast point.
type ForecastHour struct {
	Time              time.Time `json:"time"`
	Temperature       float64   `json:"temperature"`
	Precipitation     float64   `json:"precipitation"`
	PrecipitationProb float64   `json:"precipitationProb,omitempty"`
	WindSpeed         float64   `json:"windSpeed"`
	WeatherCode       int       `json:"weatherCode"`
}

// Forecast is the forecast capability payload.
type Forecast struct {
	Place Place          `json:"place"`
	Days  []ForecastDay  `json:"days,omitempty"`
	Hours []ForecastHour `json:"hours,omitempty"`
}

// History is the archive capability payload.
type History struct {
	Place Place         `json:"place"`
	Start time.Time     `json:"start"`
	End   time.Time     `json:"end"`
	Days  []ForecastDay `json:"days"`
}

// Client fetches weather data for resolved coordinates. Implementations are
// opaque remote services; their failures are classified, never leaked.
type Client interface {
	Current(ctx context.Context, lat, lon float64) (Observation, error)
	Forecast(ctx context.Context, lat, lon float64, days int, hourly bool) (Forecast, error)
	History(ctx context.Context, lat, lon float64, start, end time.Time) (History, error)
}

// Geocoder resolves free-text place names into candidates.
type Geocoder interface {
	Search(ctx context.Context, name string, limit int) ([]Place, error)
}

// CachedAnswer is the persisted form of a capability answer.
type CachedAnswer struct {
	Capability Capability      `json:"capability"`
	Data       json.RawMessage `json:"data"`
	Text       string          `json:"text"`
}

// AnswerStore caches capability answers keyed by capability, location and
// time window.
type AnswerStore interface {
	Get(ctx context.Context, key string) (CachedAnswer, bool, error)
	Save(ctx context.Context, key string, answer CachedAnswer, ttl time.Duration) error
}

// Advisor produces weather-driven recommendations for an interpreted query.
type Advisor interface {
	Recommend(ctx context.Context, parsed query.ParsedQuery) (Advice, error)
}

// Advice is the advice capability payload.
type Advice struct {
	Summary  string   `json:"summary"`
	Items    []string `json:"items"`
	Tips     []string `json:"tips,omitempty"`
	Location string   `json:"location,omitempty"`
	Period   string   `json:"period,omitempty"`
	Degraded bool     `json:"degraded,omitempty"`
}
