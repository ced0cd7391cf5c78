package tmdb

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"showcase/catalogservice/internal/domain"
	"showcase/catalogservice/internal/metrics"
)

type taxonomyRequest struct {
	path   string
	params bool
}

var taxonomyRequests = [...]taxonomyRequest{
	{path: "/genre/tv/list"},
	{path: "/genre/movie/list"},
	{path: "/watch/providers/tv", params: true},
	{path: "/watch/providers/movie", params: true},
}

type taxonomyKey struct {
	locale string
	kind   domain.ShowKind
}

// Attributes returns the genre and watch-provider lists of kind for locale.
// The first call for a locale after construction or Reset loads both kinds in
// one bulk request set; a category that fails to load is stored as an empty
// list.
//
// The bulk load is shared by concurrent callers of the same locale and runs
// detached from the caller that started it. Each caller stops waiting when
// its own ctx ends.
func (c *Client) Attributes(ctx context.Context, kind domain.ShowKind, locale domain.Locale) (domain.Taxonomy, error) {
	if !c.Enabled() {
		return domain.Taxonomy{}, ErrNotConfigured
	}
	if taxonomy, ok := c.lookupTaxonomy(locale, kind); ok {
		metrics.CacheHitsTotal.WithLabelValues("taxonomy").Inc()
		return taxonomy, nil
	}
	metrics.CacheMissesTotal.WithLabelValues("taxonomy").Inc()

	epoch := c.shows.Epoch()
	results := c.taxonomyGroup.DoChan(locale.String(), func() (any, error) {
		if _, ok := c.lookupTaxonomy(locale, kind); ok {
			return nil, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.shows.loadTimeout)
		defer cancel()
		return nil, c.loadTaxonomy(loadCtx, epoch, locale)
	})

	select {
	case <-ctx.Done():
		return domain.Taxonomy{}, ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return domain.Taxonomy{}, result.Err
		}
	}
	taxonomy, _ := c.lookupTaxonomy(locale, kind)
	return taxonomy, nil
}

func (c *Client) lookupTaxonomy(locale domain.Locale, kind domain.ShowKind) (domain.Taxonomy, bool) {
	c.taxonomyMu.RLock()
	defer c.taxonomyMu.RUnlock()
	taxonomy, ok := c.taxonomy[taxonomyKey{locale: locale.String(), kind: kind}]
	if !ok {
		return domain.Taxonomy{}, false
	}
	return domain.Taxonomy{
		Genres:    append([]domain.Genre{}, taxonomy.Genres...),
		Providers: append([]domain.WatchProvider{}, taxonomy.Providers...),
	}, true
}

// loadTaxonomy fetches the four lists of locale. Only a load that ran out of
// time fails; its partial lists are not stored.
func (c *Client) loadTaxonomy(ctx context.Context, epoch uint64, locale domain.Locale) error {
	var (
		g          errgroup.Group
		genreTV    genreList
		genreMovie genreList
		watchTV    providerList
		watchMovie providerList
	)
	targets := [...]any{&genreTV, &genreMovie, &watchTV, &watchMovie}

	for i, request := range taxonomyRequests {
		g.Go(func() error {
			params := locale.Params()
			if !request.params {
				params.Del("region")
				params.Del("watch_region")
			}
			if err := c.Fetch(ctx, request.path, params, targets[i]); err != nil {
				c.logger.Warn("tmdb taxonomy fetch failed",
					slog.String("path", request.path),
					slog.String("locale", locale.String()),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	c.taxonomyMu.Lock()
	defer c.taxonomyMu.Unlock()
	if c.shows.Epoch() != epoch {
		return nil
	}
	c.taxonomy[taxonomyKey{locale: locale.String(), kind: domain.ShowKindSeries}] = domain.Taxonomy{
		Genres:    nonNilGenres(genreTV.Genres),
		Providers: toWatchProviders(watchTV.Results),
	}
	c.taxonomy[taxonomyKey{locale: locale.String(), kind: domain.ShowKindMovie}] = domain.Taxonomy{
		Genres:    nonNilGenres(genreMovie.Genres),
		Providers: toWatchProviders(watchMovie.Results),
	}
	c.logger.Debug("tmdb taxonomy loaded",
		slog.String("locale", locale.String()),
		slog.Int("movieGenres", len(genreMovie.Genres)),
		slog.Int("seriesGenres", len(genreTV.Genres)),
		slog.Int("movieProviders", len(watchMovie.Results)),
		slog.Int("seriesProviders", len(watchTV.Results)),
	)
	return nil
}

func nonNilGenres(genres []domain.Genre) []domain.Genre {
	if genres == nil {
		return []domain.Genre{}
	}
	return genres
}

func toWatchProviders(providers []Provider) []domain.WatchProvider {
	out := make([]domain.WatchProvider, 0, len(providers))
	for _, provider := range providers {
		out = append(out, provider.ToDomain())
	}
	return out
}
