package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"showcase/catalogservice/internal/domain"
	"showcase/catalogservice/internal/tmdb"
)

const (
	keyLatestMovies   = "latestMovies"
	keyLatestSeries   = "latestSeries"
	keyTrendingMovies = "trendingMovies"
	keyTrendingSeries = "trendingSeries"
	keyTopRatedMovies = "topRatedMovies"
	keyTopRatedSeries = "topRatedSeries"
	keyTheaterMovies  = "theaterMovies"

	topRatedCardLimit = 10
)

// Upstream is what the stage compositions need from the TMDB client.
type Upstream interface {
	API
	Attributes(ctx context.Context, kind domain.ShowKind, locale domain.Locale) (domain.Taxonomy, error)
	Shows() *tmdb.ShowCache
}

// Service composes the query engine and the enricher into the curated stages
// shown on the home page.
type Service struct {
	upstream Upstream
	engine   *Engine
	enricher *Enricher
	logger   *slog.Logger
	now      func() time.Time
}

type ServiceOption func(*Service)

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for date windows and upcoming checks.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(upstream Upstream, opts ...ServiceOption) *Service {
	s := &Service{
		upstream: upstream,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = NewEngine(upstream, upstream.Shows(), s.logger)
	s.enricher = NewEnricher(upstream, s.logger)
	s.enricher.now = s.now
	return s
}

// Attributes exposes the taxonomy of kind.
func (s *Service) Attributes(ctx context.Context, kind domain.ShowKind, locale domain.Locale) (domain.Taxonomy, error) {
	if !kind.Valid() {
		return domain.Taxonomy{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return s.upstream.Attributes(ctx, kind, locale)
}

// LatestShows merges the latest movies and series, newest first. One side
// failing does not hide the other; an error is returned only when both fail.
func (s *Service) LatestShows(ctx context.Context, locale domain.Locale) ([]domain.Show, error) {
	stages := []func(context.Context, domain.Locale) ([]domain.Show, error){
		s.LatestMovies,
		s.LatestSeries,
	}
	parts := make([][]domain.Show, len(stages))
	errs := make([]error, len(stages))
	var g errgroup.Group
	for i, stage := range stages {
		g.Go(func() error {
			shows, err := stage(ctx, locale)
			if err != nil {
				s.logger.Warn("latest stage failed", slog.Int("stage", i), slog.String("error", err.Error()))
				errs[i] = err
				return nil
			}
			parts[i] = shows
			return nil
		})
	}
	_ = g.Wait()
	if errs[0] != nil && errs[1] != nil {
		return nil, errors.Join(errs...)
	}

	var merged []domain.Show
	for _, part := range parts {
		merged = append(merged, part...)
	}
	sortByReleasedAt(merged)
	return merged, nil
}

func (s *Service) LatestMovies(ctx context.Context, locale domain.Locale) ([]domain.Show, error) {
	taxonomy, err := s.upstream.Attributes(ctx, domain.ShowKindMovie, locale)
	if err != nil {
		return nil, err
	}
	now := s.now()
	shows := s.engine.Query(ctx, "/discover/movie", QueryOptions{
		Key:        localeKey(keyLatestMovies, locale),
		MaxItem:    10,
		MaxPage:    3,
		Locale:     locale,
		FilterItem: s.enricher.Epic,
		Params: url.Values{
			"without_genres":       {"27"},
			"vote_average.gte":     {"6"},
			"release_date.gte":     {dateOffset(now, 0, -6, 0)},
			"with_watch_providers": {joinIDs(taxonomy.ProviderIDs())},
		},
	})
	return InsertFirstGenre(shows, taxonomy), nil
}

func (s *Service) LatestSeries(ctx context.Context, locale domain.Locale) ([]domain.Show, error) {
	taxonomy, err := s.upstream.Attributes(ctx, domain.ShowKindSeries, locale)
	if err != nil {
		return nil, err
	}
	now := s.now()
	shows := s.engine.Query(ctx, "/discover/tv", QueryOptions{
		Key:        localeKey(keyLatestSeries, locale),
		MaxItem:    10,
		MaxPage:    3,
		Locale:     locale,
		FilterItem: s.enricher.Epic,
		Params: url.Values{
			"air_date.gte":                  {dateOffset(now, 0, -3, 0)},
			"air_date.lte":                  {dateOffset(now, 0, 2, 0)},
			"first_air_date.gte":            {dateOffset(now, -4, 0, 0)},
			"with_watch_monetization_types": {"flatrate"},
			"with_watch_providers":          {joinIDs(taxonomy.ProviderIDs())},
			"without_genres":                {"16,10764"},
		},
	})
	return InsertFirstGenre(shows, taxonomy), nil
}

// TrendingMovies lists movies released in the last two months, least popular
// first.
func (s *Service) TrendingMovies(ctx context.Context, locale domain.Locale) ([]domain.Show, error) {
	taxonomy, err := s.upstream.Attributes(ctx, domain.ShowKindMovie, locale)
	if err != nil {
		return nil, err
	}
	now := s.now()
	shows := s.engine.Query(ctx, "/discover/movie", QueryOptions{
		Key:    localeKey(keyTrendingMovies, locale),
		Locale: locale,
		Params: url.Values{
			"release_date.gte": {dateOffset(now, 0, -2, 0)},
			"release_date.lte": {dateOffset(now, 0, 0, 0)},
		},
	})
	sortByPopularity(shows)
	return InsertFirstGenre(shows, taxonomy), nil
}

// TrendingSeries lists well-rated series. With oldest set it looks at shows
// that premiered more than three months ago and aired in the last year;
// otherwise at shows that premiered in the last three months.
func (s *Service) TrendingSeries(ctx context.Context, locale domain.Locale, oldest bool) ([]domain.Show, error) {
	taxonomy, err := s.upstream.Attributes(ctx, domain.ShowKindSeries, locale)
	if err != nil {
		return nil, err
	}
	now := s.now()
	key := localeKey(keyTrendingSeries+"#1", locale)
	firstAirDate := "first_air_date.gte"
	params := url.Values{
		"vote_average.gte":     {"6"},
		"vote_count.gte":       {"20"},
		"with_watch_providers": {joinIDs(taxonomy.ProviderIDs())},
	}
	if oldest {
		key = localeKey(keyTrendingSeries+"#2", locale)
		firstAirDate = "first_air_date.lte"
		params.Set("air_date.gte", dateOffset(now, 0, -12, 0))
	}
	params.Set(firstAirDate, dateOffset(now, 0, -3, 0))

	shows := s.engine.Query(ctx, "/discover/tv", QueryOptions{
		Key:    key,
		Locale: locale,
		Params: params,
	})
	return InsertFirstGenre(shows, taxonomy), nil
}

// TopRatedMovies is computed once per locale and served from the show cache.
func (s *Service) TopRatedMovies(ctx context.Context, locale domain.Locale) ([]domain.Show, error) {
	taxonomy, err := s.upstream.Attributes(ctx, domain.ShowKindMovie, locale)
	if err != nil {
		return nil, err
	}
	now := s.now()
	shows, err := s.upstream.Shows().GetOrCompute(ctx, localeKey(keyTopRatedMovies, locale), func(ctx context.Context) ([]domain.Show, error) {
		shows := s.engine.Query(ctx, "/discover/movie", QueryOptions{
			Key:    localeKey(keyTopRatedMovies, locale),
			Locale: locale,
			Params: url.Values{
				"primary_release_date.gte": {dateOffset(now, 0, -12, 0)},
				"sort_by":                  {"vote_count.desc"},
				"with_watch_providers":     {joinIDs(taxonomy.ProviderIDs())},
			},
		})
		return shows, ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	return InsertFirstGenre(shows, taxonomy), nil
}

func (s *Service) TopRatedSeries(ctx context.Context, locale domain.Locale) ([]domain.Show, error) {
	taxonomy, err := s.upstream.Attributes(ctx, domain.ShowKindSeries, locale)
	if err != nil {
		return nil, err
	}
	now := s.now()
	shows, err := s.upstream.Shows().GetOrCompute(ctx, localeKey(keyTopRatedSeries, locale), func(ctx context.Context) ([]domain.Show, error) {
		shows := s.engine.Query(ctx, "/discover/tv", QueryOptions{
			Key:    localeKey(keyTopRatedSeries, locale),
			Locale: locale,
			Params: url.Values{
				"first_air_date.gte":   {dateOffset(now, 0, -12, 0)},
				"sort_by":              {"vote_count.desc"},
				"without_genres":       {"16"},
				"with_watch_providers": {joinIDs(taxonomy.ProviderIDs())},
			},
		})
		return shows, ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	return InsertFirstGenre(shows, taxonomy), nil
}

// TopRatedShows samples every fourth top-rated movie and every third
// top-rated series (at most five), orders them by ascending vote average and
// details the first ten as cards.
func (s *Service) TopRatedShows(ctx context.Context, locale domain.Locale) ([]domain.Show, error) {
	var (
		movies, series       []domain.Show
		moviesErr, seriesErr error
		g                    errgroup.Group
	)
	g.Go(func() error {
		movies, moviesErr = s.TopRatedMovies(ctx, locale)
		return nil
	})
	g.Go(func() error {
		series, seriesErr = s.TopRatedSeries(ctx, locale)
		return nil
	})
	_ = g.Wait()
	if moviesErr != nil {
		return nil, moviesErr
	}
	if seriesErr != nil {
		return nil, seriesErr
	}

	selected := make([]domain.Show, 0, len(movies)/4+5)
	for i, show := range movies {
		if (i+1)%4 == 0 {
			selected = append(selected, show)
		}
	}
	picked := 0
	for i, show := range series {
		if i%3 != 0 || picked == 5 {
			continue
		}
		selected = append(selected, show)
		picked++
	}
	SortByRate(selected, true)
	if len(selected) > topRatedCardLimit {
		selected = selected[:topRatedCardLimit]
	}

	cards := make([]domain.Show, len(selected))
	kept := make([]bool, len(selected))
	var cardGroup errgroup.Group
	for i, show := range selected {
		cardGroup.Go(func() error {
			cards[i], kept[i] = s.enricher.Card(ctx, show, locale)
			return nil
		})
	}
	_ = cardGroup.Wait()

	result := make([]domain.Show, 0, len(cards))
	for i, card := range cards {
		if kept[i] {
			result = append(result, card)
		}
	}
	return result, nil
}

// TheaterMovies lists movies now playing that have both a poster and a backdrop.
func (s *Service) TheaterMovies(ctx context.Context, locale domain.Locale) ([]domain.Show, error) {
	taxonomy, err := s.upstream.Attributes(ctx, domain.ShowKindMovie, locale)
	if err != nil {
		return nil, err
	}
	shows := s.engine.Query(ctx, "/movie/now_playing", QueryOptions{
		Key:     localeKey(keyTheaterMovies, locale),
		MaxPage: 1,
		Locale:  locale,
		FilterResults: func(shows []domain.Show) []domain.Show {
			kept := make([]domain.Show, 0, len(shows))
			for _, show := range shows {
				if show.PosterPath != "" && show.BackdropPath != "" {
					kept = append(kept, show)
				}
			}
			return kept
		},
	})
	return InsertFirstGenre(shows, taxonomy), nil
}

// localeKey scopes a show cache key to locale.
func localeKey(key string, locale domain.Locale) string {
	return key + "|" + locale.String()
}

func joinIDs(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, "|")
}
