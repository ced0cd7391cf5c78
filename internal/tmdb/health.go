package tmdb

import (
	"sync"
	"time"
)

// Diagnostics summarizes recent upstream traffic for the status endpoint.
type Diagnostics struct {
	Enabled             bool       `json:"enabled"`
	BaseURL             string     `json:"baseUrl"`
	TotalRequests       int64      `json:"totalRequests"`
	TotalFailures       int64      `json:"totalFailures"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	LastResource        string     `json:"lastResource,omitempty"`
	LimiterActive       int        `json:"limiterActive"`
	LimiterQueued       int        `json:"limiterQueued"`
	LimiterMax          int        `json:"limiterMaxConcurrent"`
	LimiterSpacingMS    int64      `json:"limiterMinSpacingMs"`
	CachedQueries       int        `json:"cachedQueries"`
	CachedTaxonomies    int        `json:"cachedTaxonomies"`
}

type upstreamHealth struct {
	mu                  sync.Mutex
	totalRequests       int64
	totalFailures       int64
	consecutiveFailures int
	lastError           string
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	lastResource        string
}

func (h *upstreamHealth) record(resource string, latency time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now().UTC()
	h.totalRequests++
	h.lastLatency = latency
	h.lastResource = resource

	if err == nil {
		h.consecutiveFailures = 0
		h.lastError = ""
		h.lastSuccessAt = now
		return
	}
	h.consecutiveFailures++
	h.totalFailures++
	h.lastFailureAt = now
	h.lastError = err.Error()
}

func (c *Client) Diagnostics() Diagnostics {
	stats := c.limiter.Stats()
	item := Diagnostics{
		Enabled:       c.Enabled(),
		BaseURL:       c.baseURL,
		LimiterActive:    stats.Active,
		LimiterQueued:    stats.Queued,
		LimiterMax:       stats.MaxConcurrent,
		LimiterSpacingMS: stats.MinSpacing.Milliseconds(),
		CachedQueries:    c.shows.Len(),
	}
	c.taxonomyMu.RLock()
	item.CachedTaxonomies = len(c.taxonomy)
	c.taxonomyMu.RUnlock()

	c.health.mu.Lock()
	defer c.health.mu.Unlock()
	item.TotalRequests = c.health.totalRequests
	item.TotalFailures = c.health.totalFailures
	item.ConsecutiveFailures = c.health.consecutiveFailures
	item.LastError = c.health.lastError
	item.LastResource = c.health.lastResource
	item.LastLatencyMS = c.health.lastLatency.Milliseconds()
	if !c.health.lastSuccessAt.IsZero() {
		lastSuccessAt := c.health.lastSuccessAt
		item.LastSuccessAt = &lastSuccessAt
	}
	if !c.health.lastFailureAt.IsZero() {
		lastFailureAt := c.health.lastFailureAt
		item.LastFailureAt = &lastFailureAt
	}
	return item
}
