package weather

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/weather-copilot/internal/domain/query"
	apperrors "github.com/yanqian/weather-copilot/pkg/errors"
)

type stubClient struct {
	observation Observation
	forecast    Forecast
	history     History
	err         error
}

func (s *stubClient) Current(context.Context, float64, float64) (Observation, error) {
	return s.observation, s.err
}

func (s *stubClient) Forecast(context.Context, float64, float64, int, bool) (Forecast, error) {
	return s.forecast, s.err
}

func (s *stubClient) History(context.Context, float64, float64, time.Time, time.Time) (History, error) {
	return s.history, s.err
}

type stubGeocoder struct {
	places   []Place
	err      error
	lastName string
}

func (s *stubGeocoder) Search(_ context.Context, name string, _ int) ([]Place, error) {
	s.lastName = name
	return s.places, s.err
}

type stubStore struct {
	mu      sync.Mutex
	entries map[string]CachedAnswer
	saves   int
}

func (s *stubStore) Get(_ context.Context, key string) (CachedAnswer, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	answer, ok := s.entries[key]
	return answer, ok, nil
}

func (s *stubStore) Save(_ context.Context, key string, answer CachedAnswer, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = make(map[string]CachedAnswer)
	}
	s.entries[key] = answer
	s.saves++
	return nil
}

type stubRouteLog struct {
	mu      sync.Mutex
	entries []query.RouteEntry
}

func (s *stubRouteLog) Record(_ context.Context, entry query.RouteEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

type stubAdvisor struct {
	advice Advice
	err    error
}

func (s *stubAdvisor) Recommend(context.Context, query.ParsedQuery) (Advice, error) {
	return s.advice, s.err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceFixture struct {
	svc      Service
	client   *stubClient
	geocoder *stubGeocoder
	store    *stubStore
	routeLog *stubRouteLog
	advisor  *stubAdvisor
}

func newServiceFixture(t *testing.T, minConfidence float64) *serviceFixture {
	t.Helper()
	logger := newTestLogger()
	resolver := query.NewResolver(logger)
	ruleParser := query.NewRuleParser(resolver, time.UTC)
	router := query.NewRouter(query.Config{
		AIThreshold:   0.7,
		MinConfidence: minConfidence,
		AITimeout:     time.Second,
		Timezone:      time.UTC,
	}, nil, ruleParser, logger)

	fixture := &serviceFixture{
		client: &stubClient{
			observation: Observation{Temperature: 23.5, FeelsLike: 25.0, WeatherCode: 61},
			forecast: Forecast{Days: []ForecastDay{
				{MinTemp: 18, MaxTemp: 26, PrecipitationProb: 70, WeatherCode: 61},
			}},
			history: History{Days: []ForecastDay{{MinTemp: 15, MaxTemp: 22}}},
		},
		geocoder: &stubGeocoder{places: []Place{
			{Name: "Taipei", Country: "Taiwan", Latitude: 25.03, Longitude: 121.56},
		}},
		store:    &stubStore{},
		routeLog: &stubRouteLog{},
		advisor:  &stubAdvisor{advice: Advice{Summary: "Bring an umbrella", Items: []string{"Carry an umbrella"}}},
	}
	fixture.svc = NewService(Config{
		DefaultForecastDays: 7,
		GeocodeLimit:        5,
		CacheTTL:            time.Minute,
	}, router, fixture.client, fixture.geocoder, fixture.store, fixture.routeLog, fixture.advisor, logger)
	return fixture
}

func TestAskCurrentWeather(t *testing.T) {
	fx := newServiceFixture(t, 0.2)

	answer, err := fx.svc.Ask(context.Background(), Request{Query: "weather in Taipei now"})
	require.NoError(t, err)
	require.NotEmpty(t, answer.RequestID)
	require.Equal(t, query.SourceRuleBased, answer.Source)
	require.NotEmpty(t, answer.Data)
	require.Contains(t, answer.Text, "Taipei")
	require.False(t, answer.Cached)

	require.Equal(t, "Taipei", fx.geocoder.lastName)
	require.Len(t, fx.routeLog.entries, 1)
	require.True(t, fx.routeLog.entries[0].Accepted)
}

func TestAskServesSecondRequestFromCache(t *testing.T) {
	fx := newServiceFixture(t, 0.2)
	req := Request{Query: "weather in Taipei now"}

	first, err := fx.svc.Ask(context.Background(), req)
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := fx.svc.Ask(context.Background(), req)
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.Equal(t, first.Text, second.Text)
	require.Equal(t, 1, fx.store.saves)
}

func TestAskRejectionIsRecordedWithErrorCode(t *testing.T) {
	fx := newServiceFixture(t, 0.99)

	_, err := fx.svc.Ask(context.Background(), Request{Query: "zzz qqq vvv"})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeParsingFailed))

	require.Len(t, fx.routeLog.entries, 1)
	entry := fx.routeLog.entries[0]
	require.False(t, entry.Accepted)
	require.Equal(t, apperrors.CodeParsingFailed, entry.ErrorCode)
}

func TestAskAdviceQuestionUsesAdvisor(t *testing.T) {
	fx := newServiceFixture(t, 0.2)

	answer, err := fx.svc.Ask(context.Background(), Request{Query: "should I bring an umbrella to Taipei tomorrow"})
	require.NoError(t, err)
	require.Contains(t, answer.Text, "Bring an umbrella")
}

func TestLocationsForcesGeocoding(t *testing.T) {
	fx := newServiceFixture(t, 0.2)

	answer, err := fx.svc.Locations(context.Background(), Request{Query: "where is Taipei"})
	require.NoError(t, err)
	require.Contains(t, answer.Text, "Taipei")
	require.Equal(t, "Taipei", fx.geocoder.lastName)
}

func TestLocationsWithoutMatchesReturnsNoResults(t *testing.T) {
	fx := newServiceFixture(t, 0.2)
	fx.geocoder.places = nil

	_, err := fx.svc.Locations(context.Background(), Request{Query: "where is Atlantis"})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNoResults))
}

func TestAskRejectsEmptyQuery(t *testing.T) {
	fx := newServiceFixture(t, 0.2)

	_, err := fx.svc.Ask(context.Background(), Request{Query: ""})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidQuery))
}
