package catalog

import (
	"context"
	"log/slog"
	"math"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"showcase/catalogservice/internal/domain"
	"showcase/catalogservice/internal/metrics"
	"showcase/catalogservice/internal/telemetry"
	"showcase/catalogservice/internal/tmdb"
)

const (
	defaultMaxItem     = 20
	defaultMaxPage     = 5
	defaultStartOnPage = 1

	// List endpoints are always requested in English; localized text comes
	// from the per-item detail lookups.
	queryLanguage = "en-US"
)

// API is the upstream surface the engine and the enricher need.
type API interface {
	Fetch(ctx context.Context, path string, params url.Values, dest any) error
}

// ShowStore receives finished query results.
type ShowStore interface {
	Epoch() uint64
	Store(epoch uint64, key string, shows []domain.Show) bool
}

// ItemFilter maps a candidate to its final form. Returning false drops it.
type ItemFilter func(ctx context.Context, show domain.Show, locale domain.Locale) (domain.Show, bool)

type QueryOptions struct {
	Key           string
	MaxItem       int
	MaxPage       int
	StartOnPage   int
	Params        url.Values
	FilterResults func([]domain.Show) []domain.Show
	FilterItem    ItemFilter
	Locale        domain.Locale
}

func (o QueryOptions) withDefaults() QueryOptions {
	if o.MaxItem <= 0 {
		o.MaxItem = defaultMaxItem
	}
	if o.MaxPage <= 0 {
		o.MaxPage = defaultMaxPage
	}
	if o.StartOnPage <= 0 {
		o.StartOnPage = defaultStartOnPage
	}
	if o.Locale.Language == "" {
		o.Locale = domain.DefaultLocale()
	}
	return o
}

// Engine pages through a list endpoint until enough items survive filtering
// and enrichment.
type Engine struct {
	api    API
	store  ShowStore
	logger *slog.Logger
	tracer trace.Tracer
}

func NewEngine(api API, store ShowStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		api:    api,
		store:  store,
		logger: logger,
		tracer: telemetry.Tracer(),
	}
}

// Query never returns more than MaxItem items and never requests more than
// MaxPage pages. A page that fails to load ends the loop and whatever was
// accumulated is returned. The result is stored under Key only if ctx is
// still live; an abandoned query is never cached.
//
// Items fetched on a page are buffered. FilterResults runs over the whole
// buffer, so it may drop items buffered on earlier pages. Only the number of
// items still missing is taken from the head of the buffer and enriched; the
// rest wait for the next page.
func (e *Engine) Query(ctx context.Context, endpoint string, opts QueryOptions) []domain.Show {
	opts = opts.withDefaults()
	ctx, span := e.tracer.Start(ctx, "catalog.Query", trace.WithAttributes(
		attribute.String("catalog.endpoint", endpoint),
		attribute.String("catalog.key", opts.Key),
		attribute.Int("catalog.maxItem", opts.MaxItem),
		attribute.Int("catalog.maxPage", opts.MaxPage),
	))
	defer span.End()

	var epoch uint64
	if e.store != nil {
		epoch = e.store.Epoch()
	}

	result := make([]domain.Show, 0, opts.MaxItem)
	inResult := make(map[int]struct{}, opts.MaxItem)
	fetched := make(map[int]struct{})
	var buffer []domain.Show
	totalPages := math.MaxInt

	for page := opts.StartOnPage; len(result) < opts.MaxItem && page <= opts.MaxPage && page <= totalPages; page++ {
		var resp tmdb.Page
		if err := e.api.Fetch(ctx, endpoint, pageParams(opts, page), &resp); err != nil {
			metrics.QueryPagesTotal.WithLabelValues("error").Inc()
			span.RecordError(err)
			e.logger.Warn("catalog page fetch failed",
				slog.String("endpoint", endpoint),
				slog.String("key", opts.Key),
				slog.Int("page", page),
				slog.String("error", err.Error()),
			)
			break
		}
		metrics.QueryPagesTotal.WithLabelValues("ok").Inc()
		totalPages = resp.TotalPages

		for _, show := range resp.Shows() {
			if _, seen := fetched[show.ID]; seen {
				continue
			}
			fetched[show.ID] = struct{}{}
			buffer = append(buffer, show)
		}
		if opts.FilterResults != nil {
			buffer = opts.FilterResults(buffer)
		}

		take := min(opts.MaxItem-len(result), len(buffer))
		for _, show := range e.filterItems(ctx, buffer[:take], opts) {
			if _, dup := inResult[show.ID]; dup {
				continue
			}
			inResult[show.ID] = struct{}{}
			result = append(result, show)
		}
		buffer = buffer[take:]

		e.logger.Debug("catalog page processed",
			slog.String("key", opts.Key),
			slog.Int("page", page),
			slog.Int("totalPages", totalPages),
			slog.Int("taken", take),
			slog.Int("accumulated", len(result)),
			slog.Int("buffered", len(buffer)),
		)
	}

	span.SetAttributes(attribute.Int("catalog.items", len(result)))

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return result
	}
	if e.store != nil && opts.Key != "" && allShows(result) {
		e.store.Store(epoch, opts.Key, result)
	}
	return result
}

// filterItems runs the item filter over candidates concurrently and keeps the
// survivors in candidate order.
func (e *Engine) filterItems(ctx context.Context, candidates []domain.Show, opts QueryOptions) []domain.Show {
	if opts.FilterItem == nil {
		return append([]domain.Show(nil), candidates...)
	}

	outcomes := make([]domain.Show, len(candidates))
	kept := make([]bool, len(candidates))
	var g errgroup.Group
	for i, candidate := range candidates {
		g.Go(func() error {
			defer func() {
				if recovered := recover(); recovered != nil {
					e.logger.Error("catalog item filter panic",
						slog.Int("showId", candidate.ID),
						slog.Any("panic", recovered),
					)
				}
			}()
			outcomes[i], kept[i] = opts.FilterItem(ctx, candidate, opts.Locale)
			return nil
		})
	}
	_ = g.Wait()

	survivors := make([]domain.Show, 0, len(candidates))
	for i, show := range outcomes {
		if kept[i] {
			survivors = append(survivors, show)
		}
	}
	return survivors
}

func pageParams(opts QueryOptions, page int) url.Values {
	params := opts.Locale.Params()
	for key, values := range opts.Params {
		params[key] = append([]string(nil), values...)
	}
	params.Set("language", queryLanguage)
	params.Set("page", strconv.Itoa(page))
	return params
}

func allShows(shows []domain.Show) bool {
	for _, show := range shows {
		if !show.IsMovie() && !show.IsSeries() {
			return false
		}
	}
	return true
}
