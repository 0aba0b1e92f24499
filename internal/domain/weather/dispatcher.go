package weather

import (
	"strings"

	"github.com/yanqian/weather-copilot/internal/domain/query"
	apperrors "github.com/yanqian/weather-copilot/pkg/errors"
)

// Capability identifies the downstream path that answers a query.
type Capability string

const (
	CapabilityCurrent   Capability = "current"
	CapabilityForecast  Capability = "forecast"
	CapabilityHistory   Capability = "history"
	CapabilityLocations Capability = "locations"
	CapabilityAdvice    Capability = "advice"
)

// Granularity splits the forecast capability into daily and hourly output.
type Granularity string

const (
	GranularityDaily  Granularity = "daily"
	GranularityHourly Granularity = "hourly"
)

// Selection is the dispatcher's routing decision.
type Selection struct {
	Capability  Capability
	Granularity Granularity
	Demoted     bool
}

var hourlyMarkers = []string{"hourly", "小時", "時間ごと"}

// Dispatch maps a parsed query onto a capability. Pure mapping, no I/O.
//
// When the primary intent needs a location that is entirely missing and a
// secondary intent can still be satisfied, the query demotes to the best
// satisfiable intent so that "umbrella tomorrow" without a place returns
// generic advice instead of failing outright.
func Dispatch(parsed query.ParsedQuery) (Selection, error) {
	primary := parsed.Intent.Primary
	if !primary.Valid() {
		return Selection{}, apperrors.Wrap(apperrors.CodeNoSuitableAPI, "no capability matches this query", nil)
	}

	if requiresLocation(primary) && parsed.Location.Empty() {
		if demoted, ok := bestSatisfiable(parsed.Intent.Secondary); ok {
			sel := selectionFor(demoted, parsed)
			sel.Demoted = true
			return sel, nil
		}
	}
	return selectionFor(primary, parsed), nil
}

func selectionFor(intent query.Intent, parsed query.ParsedQuery) Selection {
	switch intent {
	case query.IntentCurrentWeather:
		return Selection{Capability: CapabilityCurrent}
	case query.IntentWeatherForecast:
		return Selection{Capability: CapabilityForecast, Granularity: forecastGranularity(parsed.TimeScope)}
	case query.IntentHistoricalWeather:
		return Selection{Capability: CapabilityHistory}
	case query.IntentLocationSearch:
		return Selection{Capability: CapabilityLocations}
	case query.IntentWeatherAdvice:
		return Selection{Capability: CapabilityAdvice}
	default:
		// Unreachable: Dispatch validates the tag first.
		return Selection{Capability: CapabilityCurrent}
	}
}

func forecastGranularity(scope query.TimeScope) Granularity {
	label := strings.ToLower(scope.Period)
	for _, marker := range hourlyMarkers {
		if strings.Contains(label, marker) {
			return GranularityHourly
		}
	}
	return GranularityDaily
}

func requiresLocation(intent query.Intent) bool {
	switch intent {
	case query.IntentCurrentWeather, query.IntentWeatherForecast, query.IntentHistoricalWeather:
		return true
	default:
		return false
	}
}

func bestSatisfiable(secondary []query.Intent) (query.Intent, bool) {
	best := query.Intent("")
	for _, intent := range secondary {
		if requiresLocation(intent) || !intent.Valid() {
			continue
		}
		if intent.Specificity() > best.Specificity() {
			best = intent
		}
	}
	return best, best != ""
}
