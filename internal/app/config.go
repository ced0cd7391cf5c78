package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"showcase/catalogservice/internal/domain"
	"showcase/catalogservice/internal/limiter"
)

// ConfigFileEnv names an optional YAML/TOML/JSON file layered under the environment.
const ConfigFileEnv = "CATALOG_CONFIG_FILE"

type Config struct {
	HTTPAddr       string        `mapstructure:"http_addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFormat      string        `mapstructure:"log_format"`

	TMDBToken        string        `mapstructure:"tmdb_token"`
	TMDBBaseURL      string        `mapstructure:"tmdb_base_url"`
	TMDBImageBaseURL string        `mapstructure:"tmdb_image_base_url"`
	RedisURL         string        `mapstructure:"redis_url"`
	FreshnessTTL     time.Duration `mapstructure:"tmdb_freshness_ttl"`

	LimiterMaxConcurrent int           `mapstructure:"limiter_max_concurrent"`
	LimiterInterval      time.Duration `mapstructure:"limiter_interval"`

	DefaultLocale string `mapstructure:"default_locale"`
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`

	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8090")
	v.SetDefault("request_timeout", 15*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("tmdb_token", "")
	v.SetDefault("tmdb_base_url", "https://api.themoviedb.org/3")
	v.SetDefault("tmdb_image_base_url", "https://image.tmdb.org/t/p")
	v.SetDefault("redis_url", "")
	v.SetDefault("tmdb_freshness_ttl", 24*time.Hour)
	v.SetDefault("limiter_max_concurrent", limiter.DefaultMaxConcurrent)
	v.SetDefault("limiter_interval", limiter.DefaultInterval)
	v.SetDefault("default_locale", domain.DefaultLocaleTag)
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("rate_limit_rps", 50.0)
	v.SetDefault("rate_limit_burst", 100)
}

// LoadConfig reads defaults, then the optional config file, then the
// environment. Environment variables use the upper-cased key names
// (HTTP_ADDR, TMDB_TOKEN, ...).
func LoadConfig() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	if err := v.BindEnv("tmdb_token", "TMDB_TOKEN", "TMDB_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind tmdb token: %w", err)
	}
	if err := v.BindEnv("otlp_endpoint", "OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"); err != nil {
		return Config{}, fmt.Errorf("bind otlp endpoint: %w", err)
	}

	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.TMDBToken = strings.TrimSpace(c.TMDBToken)
	c.TMDBBaseURL = strings.TrimRight(strings.TrimSpace(c.TMDBBaseURL), "/")
	c.TMDBImageBaseURL = strings.TrimRight(strings.TrimSpace(c.TMDBImageBaseURL), "/")
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.OTLPEndpoint = strings.TrimSpace(c.OTLPEndpoint)
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.LimiterMaxConcurrent <= 0 {
		c.LimiterMaxConcurrent = limiter.DefaultMaxConcurrent
	}
	if c.LimiterInterval <= 0 {
		c.LimiterInterval = limiter.DefaultInterval
	}
	if c.RateLimitRPS <= 0 {
		c.RateLimitRPS = 50
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 100
	}
}

// Locale is the configured fallback locale for requests without a cookie.
func (c Config) Locale() domain.Locale {
	return domain.ParseLocale(c.DefaultLocale, domain.DefaultLocale())
}
