package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"showcase/catalogservice/internal/catalog"
	"showcase/catalogservice/internal/domain"
	"showcase/catalogservice/internal/tmdb"
)

// CatalogService is the stage and search surface served under /catalog.
type CatalogService interface {
	LatestShows(ctx context.Context, locale domain.Locale) ([]domain.Show, error)
	TrendingMovies(ctx context.Context, locale domain.Locale) ([]domain.Show, error)
	TrendingSeries(ctx context.Context, locale domain.Locale, oldest bool) ([]domain.Show, error)
	TopRatedShows(ctx context.Context, locale domain.Locale) ([]domain.Show, error)
	TopRatedMovies(ctx context.Context, locale domain.Locale) ([]domain.Show, error)
	TopRatedSeries(ctx context.Context, locale domain.Locale) ([]domain.Show, error)
	TheaterMovies(ctx context.Context, locale domain.Locale) ([]domain.Show, error)
	SearchShows(ctx context.Context, locale domain.Locale, kind domain.ShowKind, queries []string, params url.Values) ([]domain.Show, error)
	Attributes(ctx context.Context, kind domain.ShowKind, locale domain.Locale) (domain.Taxonomy, error)
}

// UpstreamService exposes the TMDB client state and its image CDN.
type UpstreamService interface {
	Enabled() bool
	Diagnostics() tmdb.Diagnostics
	Reset()
	FetchImage(ctx context.Context, size, file string) (tmdb.ImageBlob, error)
}

type Server struct {
	catalog        CatalogService
	upstream       UpstreamService
	logger         *slog.Logger
	defaultLocale  domain.Locale
	requestTimeout time.Duration
	rateRPS        float64
	rateBurst      int
}

type stageResponse struct {
	Stage  string        `json:"stage"`
	Locale string        `json:"locale"`
	Items  []domain.Show `json:"items"`
}

const (
	localeCookie     = "locale"
	maxQueryLength   = 500
	maxSearchQueries = 20
)

// Search parameters forwarded to /search/{kind} as-is.
var searchPassThrough = []string{"year", "primary_release_year", "first_air_date_year", "include_adult"}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithUpstream(upstream UpstreamService) ServerOption {
	return func(s *Server) {
		s.upstream = upstream
	}
}

// WithDefaultLocale sets the locale used for requests without a locale cookie.
func WithDefaultLocale(locale domain.Locale) ServerOption {
	return func(s *Server) {
		if locale.Language != "" {
			s.defaultLocale = locale
		}
	}
}

func WithRequestTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.requestTimeout = timeout
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 && burst > 0 {
			s.rateRPS = rps
			s.rateBurst = burst
		}
	}
}

func NewServer(catalogService CatalogService, options ...ServerOption) *Server {
	server := &Server{
		catalog:       catalogService,
		logger:        slog.Default(),
		defaultLocale: domain.DefaultLocale(),
		rateRPS:       50,
		rateBurst:     100,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

const stagePrefix = "/catalog/stages/"

// route is one entry of the HTTP surface. Operational routes are exempt from
// throttling and tracing and are logged at debug level.
type route struct {
	pattern     string
	handler     http.Handler
	operational bool
}

type routeTable []route

func (s *Server) routes() routeTable {
	return routeTable{
		{pattern: "/health", handler: http.HandlerFunc(s.handleHealth), operational: true},
		{pattern: "/metrics", handler: promhttp.Handler(), operational: true},
		{pattern: stagePrefix, handler: http.HandlerFunc(s.handleStage)},
		{pattern: "/catalog/search", handler: http.HandlerFunc(s.handleSearch)},
		{pattern: "/catalog/attributes", handler: http.HandlerFunc(s.handleAttributes)},
		{pattern: "/catalog/upstream", handler: http.HandlerFunc(s.handleUpstream)},
		{pattern: "/catalog/image", handler: http.HandlerFunc(s.handleImageProxy)},
		{pattern: "/catalog/locale", handler: http.HandlerFunc(s.handleLocale)},
	}
}

// lookup finds the route serving path the way ServeMux does: patterns ending
// in a slash match by prefix, the others exactly.
func (t routeTable) lookup(path string) (route, bool) {
	for _, rt := range t {
		if rt.pattern == path || (strings.HasSuffix(rt.pattern, "/") && strings.HasPrefix(path, rt.pattern)) {
			return rt, true
		}
	}
	return route{}, false
}

// label maps path to a bounded metrics label.
func (t routeTable) label(path string) string {
	rt, ok := t.lookup(path)
	switch {
	case !ok:
		return "/other"
	case rt.pattern != stagePrefix:
		return rt.pattern
	}
	if _, known := stageLoaders[stageName(path)]; known {
		return stagePrefix + stageName(path)
	}
	return stagePrefix + "other"
}

func (t routeTable) operational(path string) bool {
	rt, ok := t.lookup(path)
	return ok && rt.operational
}

func (s *Server) Handler() http.Handler {
	routes := s.routes()
	mux := http.NewServeMux()
	for _, rt := range routes {
		mux.Handle(rt.pattern, rt.handler)
	}
	traced := otelhttp.NewHandler(s.observe(routes, mux), "catalog",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return !routes.operational(r.URL.Path)
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + routes.label(r.URL.Path)
		}),
	)
	return recoverPanics(s.logger, s.throttle(routes, traced))
}

// stageLoader renders one named stage.
type stageLoader func(svc CatalogService, ctx context.Context, locale domain.Locale, query url.Values) ([]domain.Show, error)

var stageLoaders = map[string]stageLoader{
	"latest":          ignoreQuery(CatalogService.LatestShows),
	"trending-movies": ignoreQuery(CatalogService.TrendingMovies),
	"trending-series": func(svc CatalogService, ctx context.Context, locale domain.Locale, query url.Values) ([]domain.Show, error) {
		return svc.TrendingSeries(ctx, locale, parseOptionalBool(query.Get("oldest")))
	},
	"top-rated":        ignoreQuery(CatalogService.TopRatedShows),
	"top-rated-movies": ignoreQuery(CatalogService.TopRatedMovies),
	"top-rated-series": ignoreQuery(CatalogService.TopRatedSeries),
	"theater":          ignoreQuery(CatalogService.TheaterMovies),
}

func ignoreQuery(load func(CatalogService, context.Context, domain.Locale) ([]domain.Show, error)) stageLoader {
	return func(svc CatalogService, ctx context.Context, locale domain.Locale, _ url.Values) ([]domain.Show, error) {
		return load(svc, ctx, locale)
	}
}

func stageName(path string) string {
	return strings.Trim(strings.TrimPrefix(path, stagePrefix), "/")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	}
	if s.upstream != nil {
		payload["tmdbEnabled"] = s.upstream.Enabled()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}

	stage := stageName(r.URL.Path)
	load, ok := stageLoaders[stage]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("unknown stage %q", stage))
		return
	}
	locale := s.localeFrom(r)
	ctx, cancel := s.requestContext(r)
	defer cancel()

	shows, err := load(s.catalog, ctx, locale, r.URL.Query())
	if err != nil {
		s.logger.Warn("stage request failed",
			slog.String("stage", stage),
			slog.String("locale", locale.String()),
			slog.String("error", err.Error()),
		)
		s.writeCatalogError(w, err)
		return
	}
	if shows == nil {
		shows = []domain.Show{}
	}
	writeJSON(w, http.StatusOK, stageResponse{Stage: stage, Locale: locale.String(), Items: shows})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/catalog/search" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}

	query := r.URL.Query()
	kind := domain.NormalizeShowKind(query.Get("type"))
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_request", "type must be movie or tv")
		return
	}
	raw := strings.TrimSpace(query.Get("q"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	if len(raw) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 500 characters)")
		return
	}
	queries := parseCSV(raw)
	if len(queries) > maxSearchQueries {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("too many queries (max %d)", maxSearchQueries))
		return
	}

	params := url.Values{}
	for _, key := range searchPassThrough {
		if value := strings.TrimSpace(query.Get(key)); value != "" {
			params.Set(key, value)
		}
	}

	locale := s.localeFrom(r)
	ctx, cancel := s.requestContext(r)
	defer cancel()
	shows, err := s.catalog.SearchShows(ctx, locale, kind, queries, params)
	if err != nil {
		s.logger.Warn("catalog search failed",
			slog.String("query", truncate(raw, 80)),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":    kind,
		"queries": queries,
		"items":   shows,
	})
}

func (s *Server) handleAttributes(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/catalog/attributes" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}

	kind := domain.NormalizeShowKind(r.URL.Query().Get("type"))
	locale := s.localeFrom(r)
	ctx, cancel := s.requestContext(r)
	defer cancel()
	taxonomy, err := s.catalog.Attributes(ctx, kind, locale)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taxonomy)
}

func (s *Server) handleUpstream(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/catalog/upstream" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.upstream == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "tmdb client is not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.upstream.Diagnostics())
}

// handleLocale stores the chosen locale in a cookie and drops every cached
// query and taxonomy so the next stage request is computed for it.
func (s *Server) handleLocale(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/catalog/locale" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	raw, err := readLocaleInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(raw) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "locale is required")
		return
	}
	locale := domain.ParseLocale(raw, domain.Locale{})
	if locale.Language == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid locale")
		return
	}
	if locale.Region == "" {
		locale = domain.ParseLocale(raw, s.defaultLocale)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     localeCookie,
		Value:    locale.String(),
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if s.upstream != nil {
		s.upstream.Reset()
	}
	s.logger.Info("locale switched", slog.String("locale", locale.String()))
	writeJSON(w, http.StatusOK, map[string]string{
		"locale": locale.Language,
		"region": locale.Region,
	})
}

func readLocaleInput(r *http.Request) (string, error) {
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.HasPrefix(contentType, "application/json") {
		var payload struct {
			Locale string `json:"locale"`
		}
		if err := decodeJSONBody(r, &payload); err != nil {
			return "", err
		}
		return payload.Locale, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", errors.New("invalid form body")
	}
	return r.FormValue("locale"), nil
}

func (s *Server) localeFrom(r *http.Request) domain.Locale {
	cookie, err := r.Cookie(localeCookie)
	if err != nil {
		return s.defaultLocale
	}
	return domain.ParseLocale(cookie.Value, s.defaultLocale)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.requestTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

func (s *Server) writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrUnknownKind):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, tmdb.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "upstream request timed out")
	case errors.Is(err, tmdb.ErrUpstreamStatus):
		writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.ToLower(strings.TrimSpace(part))
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func decodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func parseOptionalBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
