package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service. It is
// immutable after Load returns.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	LLM      LLMConfig      `yaml:"llm"`
	Router   RouterConfig   `yaml:"router"`
	Weather  WeatherConfig  `yaml:"weather"`
	Advisor  AdvisorConfig  `yaml:"advisor"`
	Cache    CacheConfig    `yaml:"cache"`
	QueryLog QueryLogConfig `yaml:"queryLog"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// LLMConfig contains ChatGPT/OpenAI settings. An empty API key disables the
// AI parser entirely; routing then runs on the rule-based parser alone.
type LLMConfig struct {
	APIKey      string  `yaml:"apiKey"`
	BaseURL     string  `yaml:"baseUrl"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

// RouterConfig controls the confidence gate.
type RouterConfig struct {
	AIThreshold   float64       `yaml:"aiThreshold"`
	MinConfidence float64       `yaml:"minConfidence"`
	AITimeout     time.Duration `yaml:"aiTimeout"`
	Timezone      string        `yaml:"timezone"`
}

// WeatherConfig points at the upstream data APIs.
type WeatherConfig struct {
	ForecastBaseURL     string `yaml:"forecastBaseUrl"`
	ArchiveBaseURL      string `yaml:"archiveBaseUrl"`
	GeocodingBaseURL    string `yaml:"geocodingBaseUrl"`
	DefaultForecastDays int    `yaml:"defaultForecastDays"`
	GeocodeLimit        int    `yaml:"geocodeLimit"`
}

// AdvisorConfig controls the weather advice capability.
type AdvisorConfig struct {
	Prompt string `yaml:"prompt"`
}

// CacheConfig controls the shared answer cache.
type CacheConfig struct {
	TTL    time.Duration `yaml:"ttl"`
	Valkey ValkeyConfig  `yaml:"valkey"`
}

// ValkeyConfig contains connection information for the shared cache.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// QueryLogConfig controls routing decision persistence.
type QueryLogConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	if v := os.Getenv("ROUTER_AI_THRESHOLD"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Router.AIThreshold = parsed
		}
	}
	if v := os.Getenv("ROUTER_MIN_CONFIDENCE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Router.MinConfidence = parsed
		}
	}
	if v := os.Getenv("ROUTER_AI_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Router.AITimeout = parsed
		}
	}
	if v := os.Getenv("ROUTER_TIMEZONE"); v != "" {
		cfg.Router.Timezone = v
	}
	if v := os.Getenv("WEATHER_FORECAST_BASE_URL"); v != "" {
		cfg.Weather.ForecastBaseURL = v
	}
	if v := os.Getenv("WEATHER_ARCHIVE_BASE_URL"); v != "" {
		cfg.Weather.ArchiveBaseURL = v
	}
	if v := os.Getenv("WEATHER_GEOCODING_BASE_URL"); v != "" {
		cfg.Weather.GeocodingBaseURL = v
	}
	if v := os.Getenv("WEATHER_FORECAST_DAYS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Weather.DefaultForecastDays = parsed
		}
	}
	if v := os.Getenv("WEATHER_GEOCODE_LIMIT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Weather.GeocodeLimit = parsed
		}
	}
	if v := os.Getenv("ADVISOR_PROMPT"); v != "" {
		cfg.Advisor.Prompt = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = parsed
		}
	}
	if v := os.Getenv("CACHE_VALKEY_ENABLED"); v != "" {
		cfg.Cache.Valkey.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("CACHE_VALKEY_ADDR"); v != "" {
		cfg.Cache.Valkey.Addr = v
	}
	if v := os.Getenv("QUERYLOG_POSTGRES_DSN"); v != "" {
		cfg.QueryLog.Postgres.DSN = v
	}
	if v := os.Getenv("QUERYLOG_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.QueryLog.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("QUERYLOG_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.QueryLog.Postgres.MinConns = int32(parsed)
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.1,
		},
		Router: RouterConfig{
			AIThreshold:   0.7,
			MinConfidence: 0.3,
			AITimeout:     5 * time.Second,
			Timezone:      "Asia/Taipei",
		},
		Weather: WeatherConfig{
			ForecastBaseURL:     "https://api.open-meteo.com/v1/forecast",
			ArchiveBaseURL:      "https://archive-api.open-meteo.com/v1/archive",
			GeocodingBaseURL:    "https://geocoding-api.open-meteo.com/v1/search",
			DefaultForecastDays: 7,
			GeocodeLimit:        5,
		},
		Advisor: AdvisorConfig{
			Prompt: "You are a practical weather advisor. Analyze the provided weather data and answer the user's question with concrete recommendations. Respond strictly as JSON with the keys summary (string), items (array of <=4 short recommendations), and tips (array of optional reminders). Be concise yet actionable.",
		},
		Cache: CacheConfig{
			TTL: 10 * time.Minute,
		},
		QueryLog: QueryLogConfig{
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if strings.TrimSpace(c.LLM.APIKey) != "" && strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model cannot be empty when an api key is set")
	}
	if c.Router.AIThreshold < 0 || c.Router.AIThreshold > 1 {
		return errors.New("router.aiThreshold must be within [0, 1]")
	}
	if c.Router.MinConfidence < 0 || c.Router.MinConfidence > 1 {
		return errors.New("router.minConfidence must be within [0, 1]")
	}
	if c.Router.MinConfidence > c.Router.AIThreshold {
		return errors.New("router.minConfidence cannot exceed router.aiThreshold")
	}
	if c.Router.AITimeout <= 0 {
		return errors.New("router.aiTimeout must be positive")
	}
	if _, err := time.LoadLocation(c.Router.Timezone); err != nil {
		return fmt.Errorf("router.timezone is not a valid IANA zone: %w", err)
	}
	if c.Weather.ForecastBaseURL == "" {
		return errors.New("weather.forecastBaseUrl cannot be empty")
	}
	if c.Weather.ArchiveBaseURL == "" {
		return errors.New("weather.archiveBaseUrl cannot be empty")
	}
	if c.Weather.GeocodingBaseURL == "" {
		return errors.New("weather.geocodingBaseUrl cannot be empty")
	}
	if c.Weather.DefaultForecastDays <= 0 || c.Weather.DefaultForecastDays > 16 {
		return errors.New("weather.defaultForecastDays must be within [1, 16]")
	}
	if c.Weather.GeocodeLimit <= 0 {
		return errors.New("weather.geocodeLimit must be positive")
	}
	if c.Advisor.Prompt == "" {
		return errors.New("advisor.prompt cannot be empty")
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl cannot be negative")
	}
	if c.Cache.Valkey.Enabled && strings.TrimSpace(c.Cache.Valkey.Addr) == "" {
		return errors.New("cache.valkey.addr cannot be empty when the valkey cache is enabled")
	}
	return nil
}
