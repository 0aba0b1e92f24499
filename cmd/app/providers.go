package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/weather-copilot/internal/domain/advisor"
	"github.com/yanqian/weather-copilot/internal/domain/query"
	"github.com/yanqian/weather-copilot/internal/domain/weather"
	"github.com/yanqian/weather-copilot/internal/infra/answercache"
	"github.com/yanqian/weather-copilot/internal/infra/config"
	geocodeapi "github.com/yanqian/weather-copilot/internal/infra/geocode/openmeteo"
	"github.com/yanqian/weather-copilot/internal/infra/llm/chatgpt"
	"github.com/yanqian/weather-copilot/internal/infra/llm/intentparser"
	"github.com/yanqian/weather-copilot/internal/infra/querylog"
	weatherapi "github.com/yanqian/weather-copilot/internal/infra/weather/openmeteo"
)

func provideTimezone(cfg *config.Config) *time.Location {
	loc, err := time.LoadLocation(cfg.Router.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func provideRouterConfig(cfg *config.Config, tz *time.Location) query.Config {
	return query.Config{
		AIThreshold:   cfg.Router.AIThreshold,
		MinConfidence: cfg.Router.MinConfidence,
		AITimeout:     cfg.Router.AITimeout,
		Timezone:      tz,
	}
}

// provideChatClient returns nil when no API key is configured; routing and
// advice then run entirely on the rule-based paths.
func provideChatClient(cfg *config.Config, logger *slog.Logger) *chatgpt.Client {
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		logger.Info("llm api key not set, ai parsing disabled")
		return nil
	}
	client, err := chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
	if err != nil {
		logger.Error("failed to create chat client, ai parsing disabled", "error", err)
		return nil
	}
	return client
}

func provideAIParser(cfg *config.Config, chat *chatgpt.Client, resolver *query.Resolver, tz *time.Location, logger *slog.Logger) query.AIParser {
	if chat == nil {
		return nil
	}
	return intentparser.New(intentparser.Config{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	}, chat, resolver, tz, logger)
}

func provideAdvisorConfig(cfg *config.Config) advisor.Config {
	return advisor.Config{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Prompt:      cfg.Advisor.Prompt,
	}
}

func provideAdvisorChat(chat *chatgpt.Client) advisor.ChatClient {
	if chat == nil {
		return nil
	}
	return chat
}

func provideWeatherClient(cfg *config.Config) *weatherapi.Client {
	return weatherapi.NewClient(cfg.Weather.ForecastBaseURL, cfg.Weather.ArchiveBaseURL)
}

func provideGeocoder(cfg *config.Config) *geocodeapi.Client {
	return geocodeapi.NewClient(cfg.Weather.GeocodingBaseURL)
}

func provideWeatherServiceConfig(cfg *config.Config) weather.Config {
	return weather.Config{
		DefaultForecastDays: cfg.Weather.DefaultForecastDays,
		GeocodeLimit:        cfg.Weather.GeocodeLimit,
		CacheTTL:            cfg.Cache.TTL,
	}
}

func provideAnswerStore(cfg *config.Config, logger *slog.Logger) weather.AnswerStore {
	if cfg.Cache.Valkey.Enabled {
		opt, err := buildValkeyOptions(cfg)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
			return answercache.NewMemoryStore()
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory store", "error", err)
			return answercache.NewMemoryStore()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory store", "error", err)
		} else {
			logger.Info("valkey answer cache enabled", "addr", cfg.Cache.Valkey.Addr)
			return answercache.NewValkeyStore(client, "answer")
		}
	}
	return answercache.NewMemoryStore()
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.Cache.Valkey.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.Cache.Valkey.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.Cache.Valkey.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}

func provideRouteLog(cfg *config.Config, logger *slog.Logger) query.RouteLog {
	fallback := querylog.NewMemoryLog()
	dsn := strings.TrimSpace(cfg.QueryLog.Postgres.DSN)
	if dsn == "" {
		logger.Info("query log postgres dsn not set, using memory log")
		return fallback
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory log", "error", err)
		return fallback
	}
	if cfg.QueryLog.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.QueryLog.Postgres.MaxConns
	}
	if cfg.QueryLog.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.QueryLog.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory log", "error", err)
		return fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory log", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("query log postgres persistence enabled")
	return querylog.NewPostgresLog(pool)
}
