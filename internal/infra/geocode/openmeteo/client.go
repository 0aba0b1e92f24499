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

const defaultBaseURL = "https://geocoding-api.open-meteo.com/v1/search"

// Client resolves place names through the Open-Meteo geocoding API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a geocoding client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Search implements weather.Geocoder.
func (c *Client) Search(ctx context.Context, name string, limit int) ([]weather.Place, error) {
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{}
	params.Set("name", name)
	params.Set("count", strconv.Itoa(limit))
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build geocoding request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read geocoding response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &apperrors.StatusError{
			Vendor:     "open-meteo-geocoding",
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var raw struct {
		Results []struct {
			Name      string  `json:"name"`
			Country   string  `json:"country"`
			Admin1    string  `json:"admin1"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Timezone  string  `json:"timezone"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode geocoding response: %w", err)
	}

	places := make([]weather.Place, 0, len(raw.Results))
	for _, result := range raw.Results {
		places = append(places, weather.Place{
			Name:      result.Name,
			Country:   result.Country,
			Admin1:    result.Admin1,
			Latitude:  result.Latitude,
			Longitude: result.Longitude,
			Timezone:  result.Timezone,
		})
	}
	return places, nil
}

var _ weather.Geocoder = (*Client)(nil)
