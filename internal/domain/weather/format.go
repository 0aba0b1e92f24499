package weather

import (
	"fmt"
	"strings"

	"github.com/yanqian/weather-copilot/internal/domain/query"
)

// WMO weather interpretation codes, as reported by the forecast backend.
var weatherCodeText = map[int]string{
	0:  "clear sky",
	1:  "mainly clear",
	2:  "partly cloudy",
	3:  "overcast",
	45: "fog",
	48: "depositing rime fog",
	51: "light drizzle",
	53: "drizzle",
	55: "dense drizzle",
	61: "light rain",
	63: "rain",
	65: "heavy rain",
	66: "freezing rain",
	71: "light snow",
	73: "snow",
	75: "heavy snow",
	80: "rain showers",
	81: "moderate rain showers",
	82: "violent rain showers",
	85: "snow showers",
	95: "thunderstorm",
	96: "thunderstorm with hail",
	99: "thunderstorm with heavy hail",
}

func describeCode(code int) string {
	if text, ok := weatherCodeText[code]; ok {
		return text
	}
	return "unsettled conditions"
}

func placeLabel(p Place) string {
	parts := []string{p.Name}
	if p.Admin1 != "" && p.Admin1 != p.Name {
		parts = append(parts, p.Admin1)
	}
	if p.Country != "" {
		parts = append(parts, p.Country)
	}
	return strings.Join(parts, ", ")
}

func formatCurrent(place Place, obs Observation, metrics []query.Metric) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current weather in %s: %s, %.1f°C (feels like %.1f°C).\n",
		placeLabel(place), describeCode(obs.WeatherCode), obs.Temperature, obs.FeelsLike)
	for _, metric := range metrics {
		switch metric {
		case query.MetricHumidity:
			fmt.Fprintf(&b, "Humidity: %.0f%%\n", obs.Humidity)
		case query.MetricPrecipitation:
			fmt.Fprintf(&b, "Precipitation: %.1f mm\n", obs.Precipitation)
		case query.MetricWind:
			fmt.Fprintf(&b, "Wind: %.1f km/h\n", obs.WindSpeed)
		case query.MetricPressure:
			fmt.Fprintf(&b, "Pressure: %.0f hPa\n", obs.Pressure)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatForecast(fc Forecast, scope query.TimeScope) string {
	var b strings.Builder
	label := scope.Period
	if label == "" {
		label = "the coming days"
	}
	fmt.Fprintf(&b, "Forecast for %s (%s):\n", placeLabel(fc.Place), label)
	for _, day := range fc.Days {
		fmt.Fprintf(&b, "%s: %s, %.1f°C to %.1f°C", day.Date.Format("Mon Jan 2"),
			describeCode(day.WeatherCode), day.MinTemp, day.MaxTemp)
		if day.PrecipitationProb > 0 {
			fmt.Fprintf(&b, ", %.0f%% chance of precipitation", day.PrecipitationProb)
		}
		b.WriteString("\n")
	}
	for _, hour := range fc.Hours {
		fmt.Fprintf(&b, "%s: %s, %.1f°C", hour.Time.Format("Mon 15:04"),
			describeCode(hour.WeatherCode), hour.Temperature)
		if hour.PrecipitationProb > 0 {
			fmt.Fprintf(&b, ", %.0f%% chance of precipitation", hour.PrecipitationProb)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatHistory(hist History) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Past weather in %s (%s to %s):\n", placeLabel(hist.Place),
		hist.Start.Format("2006-01-02"), hist.End.Format("2006-01-02"))
	for _, day := range hist.Days {
		fmt.Fprintf(&b, "%s: %s, %.1f°C to %.1f°C, %.1f mm precipitation\n",
			day.Date.Format("Mon Jan 2"), describeCode(day.WeatherCode),
			day.MinTemp, day.MaxTemp, day.PrecipitationSum)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPlaces(name string, places []Place) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Locations matching %q:\n", name)
	for i, place := range places {
		fmt.Fprintf(&b, "%d. %s (%.4f, %.4f)\n", i+1, placeLabel(place), place.Latitude, place.Longitude)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatAdvice(adv Advice) string {
	var b strings.Builder
	b.WriteString(adv.Summary)
	if adv.Location != "" || adv.Period != "" {
		fmt.Fprintf(&b, " (%s)", strings.TrimSpace(strings.Join(trimEmpty(adv.Location, adv.Period), ", ")))
	}
	b.WriteString("\n")
	for i, item := range adv.Items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item)
	}
	if len(adv.Tips) > 0 {
		b.WriteString("Tips:\n")
		for _, tip := range adv.Tips {
			fmt.Fprintf(&b, "- %s\n", tip)
		}
	}
	if adv.Degraded {
		b.WriteString("(general guidance; live weather data was unavailable)\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func trimEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
