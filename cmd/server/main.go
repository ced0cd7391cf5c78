package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "showcase/catalogservice/internal/api/http"
	"showcase/catalogservice/internal/app"
	"showcase/catalogservice/internal/catalog"
	"showcase/catalogservice/internal/limiter"
	"showcase/catalogservice/internal/metrics"
	"showcase/catalogservice/internal/telemetry"
	"showcase/catalogservice/internal/tmdb"
)

const serviceName = "catalog"

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), serviceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.String("tmdbBaseURL", cfg.TMDBBaseURL),
		slog.Bool("hasTMDBToken", cfg.TMDBToken != ""),
		slog.Bool("hasRedis", cfg.RedisURL != ""),
		slog.Duration("freshnessTTL", cfg.FreshnessTTL),
		slog.Int("limiterMaxConcurrent", cfg.LimiterMaxConcurrent),
		slog.Duration("limiterInterval", cfg.LimiterInterval),
		slog.String("defaultLocale", cfg.Locale().String()),
	)

	requestLimiter := limiter.New(limiter.Config{
		MaxConcurrent: cfg.LimiterMaxConcurrent,
		Interval:      cfg.LimiterInterval,
		Logger:        logger,
	})
	defer requestLimiter.Close()

	client := tmdb.NewClient(tmdb.Config{
		Token:        cfg.TMDBToken,
		BaseURL:      cfg.TMDBBaseURL,
		ImageBaseURL: cfg.TMDBImageBaseURL,
		Client:       &http.Client{Timeout: cfg.RequestTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Limiter:      requestLimiter,
		Responses:    buildResponseCache(cfg, logger),
		FreshnessTTL: cfg.FreshnessTTL,
		Logger:       logger,
	})
	if !client.Enabled() {
		logger.Warn("tmdb access token not configured, catalog endpoints will return 503")
	}

	service := catalog.NewService(client, catalog.WithLogger(logger))
	handler := apihttp.NewServer(service,
		apihttp.WithLogger(logger),
		apihttp.WithUpstream(client),
		apihttp.WithDefaultLocale(cfg.Locale()),
		apihttp.WithRequestTimeout(cfg.RequestTimeout),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("catalog service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("timeout", cfg.RequestTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("catalog service stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildResponseCache connects the TMDB freshness cache. A missing or
// unreachable Redis leaves the client uncached.
func buildResponseCache(cfg app.Config, logger *slog.Logger) tmdb.ResponseCache {
	if cfg.RedisURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid redis url, tmdb responses will not be cached", slog.String("error", err.Error()))
		return nil
	}
	cache := tmdb.NewRedisResponseCache(redis.NewClient(redisOpts))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := cache.Ping(ctx); err != nil {
		logger.Warn("redis not reachable, tmdb responses will not be cached", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return cache
}
