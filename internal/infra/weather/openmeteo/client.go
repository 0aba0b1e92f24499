package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yanqian/weather-copilot/internal/domain/weather"
	apperrors "github.com/yanqian/weather-copilot/pkg/errors"
)

const (
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	defaultArchiveURL  = "https://archive-api.open-meteo.com/v1/archive"
)

// Client fetches weather data from the Open-Meteo APIs.
type Client struct {
	forecastURL string
	archiveURL  string
	httpClient  *http.Client
}

// NewClient builds an API client.
func NewClient(forecastURL, archiveURL string) *Client {
	if forecastURL == "" {
		forecastURL = defaultForecastURL
	}
	if archiveURL == "" {
		archiveURL = defaultArchiveURL
	}
	return &Client{
		forecastURL: forecastURL,
		archiveURL:  archiveURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Current retrieves a snapshot of present conditions.
func (c *Client) Current(ctx context.Context, lat, lon float64) (weather.Observation, error) {
	params := baseParams(lat, lon)
	params.Set("current", "temperature_2m,apparent_temperature,relative_humidity_2m,precipitation,wind_speed_10m,surface_pressure,weather_code")

	var raw forecastResponse
	if err := c.get(ctx, c.forecastURL, params, &raw); err != nil {
		return weather.Observation{}, err
	}
	obs := weather.Observation{
		Time:          parseLocalTime(raw.Current.Time),
		Temperature:   raw.Current.Temperature,
		FeelsLike:     raw.Current.ApparentTemperature,
		Humidity:      raw.Current.Humidity,
		Precipitation: raw.Current.Precipitation,
		WindSpeed:     raw.Current.WindSpeed,
		Pressure:      raw.Current.Pressure,
		WeatherCode:   raw.Current.WeatherCode,
	}
	return obs, nil
}

// Forecast retrieves daily and, when requested, hourly forecast data.
func (c *Client) Forecast(ctx context.Context, lat, lon float64, days int, hourly bool) (weather.Forecast, error) {
	if days <= 0 {
		days = 7
	}
	params := baseParams(lat, lon)
	params.Set("forecast_days", strconv.Itoa(days))
	params.Set("daily", "temperature_2m_min,temperature_2m_max,precipitation_sum,precipitation_probability_max,wind_speed_10m_max,weather_code")
	if hourly {
		params.Set("hourly", "temperature_2m,precipitation,precipitation_probability,wind_speed_10m,weather_code")
	}

	var raw forecastResponse
	if err := c.get(ctx, c.forecastURL, params, &raw); err != nil {
		return weather.Forecast{}, err
	}
	return weather.Forecast{
		Days:  normalizeDaily(raw.Daily),
		Hours: normalizeHourly(raw.Hourly),
	}, nil
}

// History retrieves archived daily data for a past window.
func (c *Client) History(ctx context.Context, lat, lon float64, start, end time.Time) (weather.History, error) {
	params := baseParams(lat, lon)
	params.Set("start_date", start.Format("2006-01-02"))
	params.Set("end_date", end.Format("2006-01-02"))
	params.Set("daily", "temperature_2m_min,temperature_2m_max,precipitation_sum,wind_speed_10m_max,weather_code")

	var raw forecastResponse
	if err := c.get(ctx, c.archiveURL, params, &raw); err != nil {
		return weather.History{}, err
	}
	return weather.History{
		Start: start,
		End:   end,
		Days:  normalizeDaily(raw.Daily),
	}, nil
}

func baseParams(lat, lon float64) url.Values {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	params.Set("timezone", "auto")
	return params
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build weather request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read weather response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &apperrors.StatusError{
			Vendor:     "open-meteo",
			StatusCode: resp.StatusCode,
			VendorCode: vendorReason(body),
			Body:       string(body),
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode weather response: %w", err)
	}
	return nil
}

// vendorReason extracts the structured error reason the API returns with
// non-2xx responses.
func vendorReason(body []byte) string {
	var wire struct {
		Error  bool   `json:"error"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body, &wire); err != nil || !wire.Error {
		return ""
	}
	return wire.Reason
}

type forecastResponse struct {
	Current struct {
		Time                string  `json:"time"`
		Temperature         float64 `json:"temperature_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		Humidity            float64 `json:"relative_humidity_2m"`
		Precipitation       float64 `json:"precipitation"`
		WindSpeed           float64 `json:"wind_speed_10m"`
		Pressure            float64 `json:"surface_pressure"`
		WeatherCode         int     `json:"weather_code"`
	} `json:"current"`
	Daily  dailyBlock  `json:"daily"`
	Hourly hourlyBlock `json:"hourly"`
}

type dailyBlock struct {
	Time              []string  `json:"time"`
	TempMin           []float64 `json:"temperature_2m_min"`
	TempMax           []float64 `json:"temperature_2m_max"`
	PrecipitationSum  []float64 `json:"precipitation_sum"`
	PrecipitationProb []float64 `json:"precipitation_probability_max"`
	WindSpeedMax      []float64 `json:"wind_speed_10m_max"`
	WeatherCode       []int     `json:"weather_code"`
}

type hourlyBlock struct {
	Time              []string  `json:"time"`
	Temperature       []float64 `json:"temperature_2m"`
	Precipitation     []float64 `json:"precipitation"`
	PrecipitationProb []float64 `json:"precipitation_probability"`
	WindSpeed         []float64 `json:"wind_speed_10m"`
	WeatherCode       []int     `json:"weather_code"`
}

func normalizeDaily(block dailyBlock) []weather.ForecastDay {
	days := make([]weather.ForecastDay, 0, len(block.Time))
	for i, raw := range block.Time {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			continue
		}
		day := weather.ForecastDay{Date: date}
		if i < len(block.TempMin) {
			day.MinTemp = block.TempMin[i]
		}
		if i < len(block.TempMax) {
			day.MaxTemp = block.TempMax[i]
		}
		if i < len(block.PrecipitationSum) {
			day.PrecipitationSum = block.PrecipitationSum[i]
		}
		if i < len(block.PrecipitationProb) {
			day.PrecipitationProb = block.PrecipitationProb[i]
		}
		if i < len(block.WindSpeedMax) {
			day.WindSpeedMax = block.WindSpeedMax[i]
		}
		if i < len(block.WeatherCode) {
			day.WeatherCode = block.WeatherCode[i]
		}
		days = append(days, day)
	}
	return days
}

func normalizeHourly(block hourlyBlock) []weather.ForecastHour {
	hours := make([]weather.ForecastHour, 0, len(block.Time))
	for i, raw := range block.Time {
		ts := parseLocalTime(raw)
		if ts.IsZero() {
			continue
		}
		hour := weather.ForecastHour{Time: ts}
		if i < len(block.Temperature) {
			hour.Temperature = block.Temperature[i]
		}
		if i < len(block.Precipitation) {
			hour.Precipitation = block.Precipitation[i]
		}
		if i < len(block.PrecipitationProb) {
			hour.PrecipitationProb = block.PrecipitationProb[i]
		}
		if i < len(block.WindSpeed) {
			hour.WindSpeed = block.WindSpeed[i]
		}
		if i < len(block.WeatherCode) {
			hour.WeatherCode = block.WeatherCode[i]
		}
		hours = append(hours, hour)
	}
	return hours
}

// parseLocalTime handles the API's timezone-naive ISO timestamps.
func parseLocalTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02T15:04", time.RFC3339} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}

var _ weather.Client = (*Client)(nil)
