package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"showcase/catalogservice/internal/domain"
	"showcase/catalogservice/internal/limiter"
	"showcase/catalogservice/internal/metrics"
)

const (
	defaultBaseURL      = "https://api.themoviedb.org/3"
	defaultFreshnessTTL = 24 * time.Hour
	maxResponseBytes    = 4 << 20
)

var (
	ErrNotConfigured  = errors.New("tmdb access token not configured")
	ErrUpstreamStatus = errors.New("tmdb unexpected status")
)

// Client is the single point of contact with the TMDB API. Every request goes
// through the limiter; results of composed queries and the taxonomy lists are
// cached on the client per locale until Reset.
type Client struct {
	token        string
	baseURL      string
	imageBaseURL string
	http         *http.Client
	limiter      *limiter.Limiter
	responses    ResponseCache
	freshnessTTL time.Duration
	imageRetry   RetryConfig
	logger       *slog.Logger

	shows *ShowCache

	taxonomyMu    sync.RWMutex
	taxonomy      map[taxonomyKey]domain.Taxonomy
	taxonomyGroup singleflight.Group

	health upstreamHealth
}

type Config struct {
	Token        string
	BaseURL      string
	ImageBaseURL string
	Client       *http.Client
	Limiter      *limiter.Limiter
	Responses    ResponseCache
	FreshnessTTL time.Duration
	ImageRetry   RetryConfig
	Logger       *slog.Logger
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	imageBaseURL := strings.TrimSpace(cfg.ImageBaseURL)
	if imageBaseURL == "" {
		imageBaseURL = defaultImageBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	freshnessTTL := cfg.FreshnessTTL
	if freshnessTTL <= 0 {
		freshnessTTL = defaultFreshnessTTL
	}
	imageRetry := cfg.ImageRetry
	if imageRetry.MaxAttempts <= 0 {
		imageRetry = DefaultRetryConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lim := cfg.Limiter
	if lim == nil {
		lim = limiter.New(limiter.Config{Logger: logger})
	}
	return &Client{
		token:        strings.TrimSpace(cfg.Token),
		baseURL:      strings.TrimRight(baseURL, "/"),
		imageBaseURL: strings.TrimRight(imageBaseURL, "/"),
		http:         httpClient,
		limiter:      lim,
		responses:    cfg.Responses,
		freshnessTTL: freshnessTTL,
		imageRetry:   imageRetry,
		logger:       logger,
		shows:        NewShowCache(),
		taxonomy:     make(map[taxonomyKey]domain.Taxonomy),
	}
}

func (c *Client) Enabled() bool {
	return c.token != ""
}

// Shows returns the named-result cache owned by this client.
func (c *Client) Shows() *ShowCache {
	return c.shows
}

// Reset drops every cached show list and the taxonomies of every locale.
// Stores started before the reset are discarded when they complete.
func (c *Client) Reset() {
	c.shows.Reset()
	c.taxonomyMu.Lock()
	c.taxonomy = make(map[taxonomyKey]domain.Taxonomy)
	c.taxonomyMu.Unlock()
	metrics.CacheResetsTotal.Inc()
	c.logger.Info("tmdb caches reset")
}

// Fetch requests path with params and decodes the JSON body into dest.
// Empty parameter values are dropped. A cached body within the freshness
// window is served without going through the limiter.
func (c *Client) Fetch(ctx context.Context, path string, params url.Values, dest any) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}
	resource := BuildPath(path, params)

	if c.responses != nil {
		body, ok, err := c.responses.Get(ctx, resource)
		if err != nil {
			c.logger.Debug("tmdb response cache read failed",
				slog.String("resource", resource),
				slog.String("error", err.Error()),
			)
		}
		if ok {
			if err := json.Unmarshal(body, dest); err == nil {
				metrics.CacheHitsTotal.WithLabelValues("response").Inc()
				return nil
			}
		}
		metrics.CacheMissesTotal.WithLabelValues("response").Inc()
	}

	var body []byte
	err := c.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		body, err = c.get(ctx, path, resource)
		return err
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode tmdb %s: %w", path, err)
	}

	if c.responses != nil {
		if err := c.responses.Set(ctx, resource, body, c.freshnessTTL); err != nil {
			c.logger.Debug("tmdb response cache write failed",
				slog.String("resource", resource),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path, resource string) ([]byte, error) {
	endpoint := EndpointLabel(path)
	startedAt := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+resource, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	body, err := c.do(req)
	latency := time.Since(startedAt)
	metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(latency.Seconds())
	c.health.record(resource, latency, err)

	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, ErrUpstreamStatus) {
			status = "status"
		}
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, status).Inc()
	return body, err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrUpstreamStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

// BuildPath appends the non-empty params to path. Keys are sorted so equal
// requests share a cache key.
func BuildPath(path string, params url.Values) string {
	filtered := url.Values{}
	for key, values := range params {
		for _, value := range values {
			if strings.TrimSpace(value) == "" {
				continue
			}
			filtered.Add(key, value)
		}
	}
	if len(filtered) == 0 {
		return path
	}
	return path + "?" + filtered.Encode()
}

// EndpointLabel replaces numeric path segments so metric labels stay bounded:
// "/movie/550/images" becomes "/movie/{id}/images".
func EndpointLabel(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		if _, err := strconv.Atoi(segment); err == nil {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}
