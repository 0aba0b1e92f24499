package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/weather-copilot/internal/domain/query"
	apperrors "github.com/yanqian/weather-copilot/pkg/errors"
)

// Service exposes the weather capabilities behind the query router.
type Service interface {
	Ask(ctx context.Context, req Request) (Answer, error)
	Locations(ctx context.Context, req Request) (Answer, error)
	Advise(ctx context.Context, req Request) (Answer, error)
}

// Config carries the service knobs, immutable after construction.
type Config struct {
	DefaultForecastDays int
	GeocodeLimit        int
	CacheTTL            time.Duration
}

type service struct {
	cfg      Config
	router   *query.Router
	client   Client
	geocoder Geocoder
	store    AnswerStore
	routeLog query.RouteLog
	advisor  Advisor
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewService wires up the weather capability domain.
func NewService(cfg Config, router *query.Router, client Client, geocoder Geocoder, store AnswerStore, routeLog query.RouteLog, advisor Advisor, logger *slog.Logger) Service {
	if cfg.DefaultForecastDays <= 0 {
		cfg.DefaultForecastDays = 7
	}
	if cfg.GeocodeLimit <= 0 {
		cfg.GeocodeLimit = 5
	}
	return &service{
		cfg:      cfg,
		router:   router,
		client:   client,
		geocoder: geocoder,
		store:    store,
		routeLog: routeLog,
		advisor:  advisor,
		logger:   logger.With("component", "weather.service"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Ask answers a free-form weather question end to end: route, dispatch,
// fetch, format.
func (s *service) Ask(ctx context.Context, req Request) (Answer, error) {
	return s.answer(ctx, req, "")
}

// Locations forces the geocoding capability regardless of intent.
func (s *service) Locations(ctx context.Context, req Request) (Answer, error) {
	return s.answer(ctx, req, CapabilityLocations)
}

// Advise forces the advice capability regardless of intent.
func (s *service) Advise(ctx context.Context, req Request) (Answer, error) {
	return s.answer(ctx, req, CapabilityAdvice)
}

func (s *service) answer(ctx context.Context, req Request, forced Capability) (Answer, error) {
	requestID := s.newID()

	routed, err := s.router.Route(ctx, query.Request{Query: req.Query, Context: req.Context})
	if err != nil {
		s.record(ctx, requestID, req.Query, query.RoutingResult{}, err)
		return Answer{}, err
	}
	s.record(ctx, requestID, req.Query, routed, nil)

	sel, err := Dispatch(routed.Parsed)
	if err != nil {
		return Answer{}, err
	}
	if forced != "" {
		sel = Selection{Capability: forced, Granularity: sel.Granularity}
	}

	key := cacheKey(sel, routed.Parsed)
	if cached, ok := s.cacheGet(ctx, key); ok {
		return Answer{
			RequestID:  requestID,
			Source:     routed.Source,
			Confidence: routed.Confidence,
			Data:       cached.Data,
			Text:       cached.Text,
			Cached:     true,
		}, nil
	}

	payload, text, err := s.execute(ctx, sel, routed.Parsed)
	if err != nil {
		return Answer{}, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Answer{}, apperrors.Wrap(apperrors.CodeInternalError, "failed to encode response payload", err)
	}

	s.cacheSave(ctx, key, CachedAnswer{Capability: sel.Capability, Data: data, Text: text})

	return Answer{
		RequestID:  requestID,
		Source:     routed.Source,
		Confidence: routed.Confidence,
		Data:       data,
		Text:       text,
	}, nil
}

func (s *service) execute(ctx context.Context, sel Selection, parsed query.ParsedQuery) (any, string, error) {
	switch sel.Capability {
	case CapabilityCurrent:
		return s.currentConditions(ctx, parsed)
	case CapabilityForecast:
		return s.forecast(ctx, parsed, sel.Granularity)
	case CapabilityHistory:
		return s.history(ctx, parsed)
	case CapabilityLocations:
		return s.locations(ctx, parsed)
	case CapabilityAdvice:
		return s.advice(ctx, parsed)
	default:
		return nil, "", apperrors.Wrap(apperrors.CodeNoSuitableAPI, "no capability matches this query", nil)
	}
}

func (s *service) currentConditions(ctx context.Context, parsed query.ParsedQuery) (any, string, error) {
	place, err := s.resolvePlace(ctx, parsed)
	if err != nil {
		return nil, "", err
	}
	obs, err := s.client.Current(ctx, place.Latitude, place.Longitude)
	if err != nil {
		return nil, "", err
	}
	payload := struct {
		Place       Place       `json:"place"`
		Observation Observation `json:"observation"`
	}{place, obs}
	return payload, formatCurrent(place, obs, parsed.Metrics), nil
}

func (s *service) forecast(ctx context.Context, parsed query.ParsedQuery, granularity Granularity) (any, string, error) {
	place, err := s.resolvePlace(ctx, parsed)
	if err != nil {
		return nil, "", err
	}
	days := s.forecastDays(parsed.TimeScope)
	fc, err := s.client.Forecast(ctx, place.Latitude, place.Longitude, days, granularity == GranularityHourly)
	if err != nil {
		return nil, "", err
	}
	fc.Place = place
	return fc, formatForecast(fc, parsed.TimeScope), nil
}

func (s *service) history(ctx context.Context, parsed query.ParsedQuery) (any, string, error) {
	place, err := s.resolvePlace(ctx, parsed)
	if err != nil {
		return nil, "", err
	}
	start, end := s.historyWindow(parsed.TimeScope)
	hist, err := s.client.History(ctx, place.Latitude, place.Longitude, start, end)
	if err != nil {
		return nil, "", err
	}
	hist.Place = place
	hist.Start, hist.End = start, end
	return hist, formatHistory(hist), nil
}

func (s *service) locations(ctx context.Context, parsed query.ParsedQuery) (any, string, error) {
	name := parsed.Location.Name
	if name == "" {
		name = parsed.OriginalQuery
	}
	places, err := s.geocoder.Search(ctx, name, s.cfg.GeocodeLimit)
	if err != nil {
		return nil, "", err
	}
	if len(places) == 0 {
		return nil, "", apperrors.Wrap(apperrors.CodeNoResults, "no matching location was found", nil)
	}
	payload := struct {
		Query  string  `json:"query"`
		Places []Place `json:"places"`
	}{name, places}
	return payload, formatPlaces(name, places), nil
}

func (s *service) advice(ctx context.Context, parsed query.ParsedQuery) (any, string, error) {
	adv, err := s.advisor.Recommend(ctx, parsed)
	if err != nil {
		return nil, "", err
	}
	return adv, formatAdvice(adv), nil
}

// resolvePlace prefers coordinates supplied by the parser, then geocodes the
// extracted name. Alternatives beyond the first hit stay on the result for
// disambiguation.
func (s *service) resolvePlace(ctx context.Context, parsed query.ParsedQuery) (Place, error) {
	loc := parsed.Location
	if loc.Latitude != nil && loc.Longitude != nil {
		return Place{Name: loc.Name, Latitude: *loc.Latitude, Longitude: *loc.Longitude}, nil
	}
	if loc.Name == "" {
		return Place{}, apperrors.Wrap(apperrors.CodeNoResults, "no location could be determined from the query", nil)
	}
	places, err := s.geocoder.Search(ctx, loc.Name, s.cfg.GeocodeLimit)
	if err != nil {
		return Place{}, err
	}
	if len(places) == 0 {
		return Place{}, apperrors.Wrap(apperrors.CodeNoResults, fmt.Sprintf("no location matching %q was found", loc.Name), nil)
	}
	return places[0], nil
}

func (s *service) forecastDays(scope query.TimeScope) int {
	if scope.Start != nil && scope.End != nil {
		days := int(scope.End.Sub(s.now()).Hours()/24) + 1
		if days > 0 && days <= 16 {
			return days
		}
	}
	return s.cfg.DefaultForecastDays
}

func (s *service) historyWindow(scope query.TimeScope) (time.Time, time.Time) {
	if scope.Start != nil && scope.End != nil {
		return *scope.Start, *scope.End
	}
	end := s.now()
	return end.AddDate(0, 0, -1), end
}

func cacheKey(sel Selection, parsed query.ParsedQuery) string {
	window := string(parsed.TimeScope.Type)
	if parsed.TimeScope.Start != nil {
		window = parsed.TimeScope.Start.Format("2006-01-02")
	}
	return fmt.Sprintf("%s:%s:%s:%s", sel.Capability, sel.Granularity, parsed.Location.Name, window)
}

func (s *service) cacheGet(ctx context.Context, key string) (CachedAnswer, bool) {
	if s.store == nil || s.cfg.CacheTTL <= 0 {
		return CachedAnswer{}, false
	}
	cached, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("answer cache read failed", "key", key, "error", err)
		return CachedAnswer{}, false
	}
	return cached, ok
}

func (s *service) cacheSave(ctx context.Context, key string, answer CachedAnswer) {
	if s.store == nil || s.cfg.CacheTTL <= 0 {
		return
	}
	// Advice is personalized to the phrasing of the question; only raw
	// weather and location answers are shared across requests.
	if answer.Capability == CapabilityAdvice {
		return
	}
	if err := s.store.Save(ctx, key, answer, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("answer cache write failed", "key", key, "error", err)
	}
}

func (s *service) record(ctx context.Context, requestID, rawQuery string, routed query.RoutingResult, routeErr error) {
	if s.routeLog == nil {
		return
	}
	entry := query.RouteEntry{
		RequestID:  requestID,
		Query:      rawQuery,
		Source:     routed.Source,
		Intent:     routed.Parsed.Intent.Primary,
		Confidence: routed.Confidence,
		Accepted:   routeErr == nil,
		Latency:    routed.ProcessingTime,
		CreatedAt:  s.now(),
	}
	if routeErr != nil {
		entry.ErrorCode = apperrors.Classify(routeErr).Code
	}
	if err := s.routeLog.Record(ctx, entry); err != nil {
		s.logger.Warn("route log write failed", "requestId", requestID, "error", err)
	}
}
