package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"showcase/catalogservice/internal/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		ConfigFileEnv, "HTTP_ADDR", "REQUEST_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT",
		"TMDB_TOKEN", "TMDB_API_KEY", "TMDB_BASE_URL", "TMDB_IMAGE_BASE_URL", "REDIS_URL",
		"TMDB_FRESHNESS_TTL", "LIMITER_MAX_CONCURRENT", "LIMITER_INTERVAL", "DEFAULT_LOCALE",
		"OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != ":8090" || cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Fatalf("unexpected server defaults %+v", cfg)
	}
	if cfg.TMDBBaseURL != "https://api.themoviedb.org/3" || cfg.TMDBToken != "" {
		t.Fatalf("unexpected tmdb defaults %+v", cfg)
	}
	if cfg.LimiterMaxConcurrent != 50 || cfg.LimiterInterval != time.Second {
		t.Fatalf("unexpected limiter defaults %+v", cfg)
	}
	if cfg.FreshnessTTL != 24*time.Hour || cfg.RateLimitRPS != 50 || cfg.RateLimitBurst != 100 {
		t.Fatalf("unexpected cache/rate defaults %+v", cfg)
	}
	if got := cfg.Locale(); got != (domain.Locale{Language: "id-ID", Region: "ID"}) {
		t.Fatalf("unexpected default locale %+v", got)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("LOG_LEVEL", " DEBUG ")
	t.Setenv("TMDB_API_KEY", "legacy-token")
	t.Setenv("TMDB_BASE_URL", "http://tmdb.test/3/")
	t.Setenv("LIMITER_MAX_CONCURRENT", "4")
	t.Setenv("LIMITER_INTERVAL", "250ms")
	t.Setenv("TMDB_FRESHNESS_TTL", "2h")
	t.Setenv("DEFAULT_LOCALE", "fr-FR")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != ":9000" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected server config %+v", cfg)
	}
	if cfg.TMDBToken != "legacy-token" || cfg.TMDBBaseURL != "http://tmdb.test/3" {
		t.Fatalf("unexpected tmdb config %+v", cfg)
	}
	if cfg.LimiterMaxConcurrent != 4 || cfg.LimiterInterval != 250*time.Millisecond || cfg.FreshnessTTL != 2*time.Hour {
		t.Fatalf("unexpected durations %+v", cfg)
	}
	if got := cfg.Locale(); got.Language != "fr-FR" || got.Region != "FR" {
		t.Fatalf("unexpected locale %+v", got)
	}

	t.Setenv("TMDB_TOKEN", "primary-token")
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.TMDBToken != "primary-token" {
		t.Fatalf("TMDB_TOKEN must take precedence, got %q", cfg.TMDBToken)
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	body := "http_addr: \":7000\"\nlog_format: json\nrate_limit_rps: 5\nlimiter_max_concurrent: 0\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != ":7000" || cfg.RateLimitRPS != 5 {
		t.Fatalf("file values not applied %+v", cfg)
	}
	if cfg.LogFormat != "text" {
		t.Fatalf("environment must override the file, got %q", cfg.LogFormat)
	}
	if cfg.LimiterMaxConcurrent != 50 {
		t.Fatalf("non-positive limiter size must fall back, got %d", cfg.LimiterMaxConcurrent)
	}

	t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for a missing config file")
	}
}
