//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/weather-copilot/internal/bootstrap"
	"github.com/yanqian/weather-copilot/internal/domain/advisor"
	"github.com/yanqian/weather-copilot/internal/domain/query"
	"github.com/yanqian/weather-copilot/internal/domain/weather"
	"github.com/yanqian/weather-copilot/internal/infra/config"
	geocodeapi "github.com/yanqian/weather-copilot/internal/infra/geocode/openmeteo"
	weatherapi "github.com/yanqian/weather-copilot/internal/infra/weather/openmeteo"
	httpiface "github.com/yanqian/weather-copilot/internal/interface/http"
	"github.com/yanqian/weather-copilot/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideTimezone,
		query.NewResolver,
		query.NewRuleParser,
		provideRouterConfig,
		provideChatClient,
		provideAIParser,
		query.NewRouter,
		provideWeatherClient,
		provideGeocoder,
		wire.Bind(new(weather.Client), new(*weatherapi.Client)),
		wire.Bind(new(weather.Geocoder), new(*geocodeapi.Client)),
		provideAnswerStore,
		provideRouteLog,
		provideAdvisorConfig,
		provideAdvisorChat,
		advisor.NewService,
		wire.Bind(new(weather.Advisor), new(*advisor.Service)),
		provideWeatherServiceConfig,
		weather.NewService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
