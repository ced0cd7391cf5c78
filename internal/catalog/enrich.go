package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"showcase/catalogservice/internal/domain"
	"showcase/catalogservice/internal/metrics"
	"showcase/catalogservice/internal/telemetry"
	"showcase/catalogservice/internal/tmdb"
)

// Enricher merges secondary lookups (detail, artwork, watch providers and
// certification) into list items.
type Enricher struct {
	api    API
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewEnricher(api API, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		api:    api,
		logger: logger,
		tracer: telemetry.Tracer(),
		now:    time.Now,
	}
}

type epicLookups struct {
	detail    tmdb.Detail
	images    tmdb.Images
	providers tmdb.WatchProviders
	releases  tmdb.ReleaseDates
	ratings   tmdb.ContentRatings
}

// Epic builds the hero-stage form of show. It drops the show when any lookup
// fails or when there is no blank poster, no logo or no overview.
func (e *Enricher) Epic(ctx context.Context, show domain.Show, locale domain.Locale) (domain.Show, bool) {
	if !show.Kind.Valid() {
		e.drop(show, "kind", nil)
		return domain.Show{}, false
	}
	ctx, span := e.tracer.Start(ctx, "catalog.Epic", trace.WithAttributes(
		attribute.Int("catalog.showId", show.ID),
		attribute.String("catalog.kind", string(show.Kind)),
	))
	defer span.End()

	language := displayLanguage(show, locale)
	base := fmt.Sprintf("/%s/%d", show.Kind, show.ID)

	var found epicLookups
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.api.Fetch(gctx, base, url.Values{"language": {locale.Language}}, &found.detail)
	})
	g.Go(func() error {
		return e.api.Fetch(gctx, base+"/images", url.Values{"include_image_language": {imageLanguages(language)}}, &found.images)
	})
	g.Go(func() error {
		return e.api.Fetch(gctx, base+"/watch/providers", nil, &found.providers)
	})
	g.Go(func() error {
		if show.IsMovie() {
			return e.api.Fetch(gctx, base+"/release_dates", nil, &found.releases)
		}
		return e.api.Fetch(gctx, base+"/content_ratings", nil, &found.ratings)
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		e.drop(show, "lookup", err)
		return domain.Show{}, false
	}

	poster := blankPoster(found.images.Posters)
	logo := logoPath(found.images.Logos, language)
	switch {
	case poster == "":
		e.drop(show, "poster", nil)
		return domain.Show{}, false
	case logo == "":
		e.drop(show, "logo", nil)
		return domain.Show{}, false
	case found.detail.Overview == "":
		e.drop(show, "overview", nil)
		return domain.Show{}, false
	}

	region, inRegion := found.providers.Results[locale.Region]
	offers := &region
	if !inRegion {
		offers = nil
		if fallback, ok := found.providers.Results[domain.FallbackRegion]; ok {
			offers = &fallback
		}
	}

	enrichment := domain.Enrichment{
		Overview:        found.detail.Overview,
		PosterBlankPath: poster,
		LogoPath:        logo,
		Certification:   unrated,
		Providers:       mergeProviders(offers),
		CanWatch:        inRegion,
	}

	today := e.now()
	if show.IsSeries() {
		e.applySeries(&enrichment, show, found, locale.Region, today)
	} else {
		enrichment.Certification = movieCertification(found.releases.Results, locale.Region)
		enrichment.IsUpcoming = releasedAfter(show.Date(), today)
		enrichment.ReleasedAt = found.detail.ReleaseDate
	}
	return show.WithEnrichment(enrichment), true
}

func (e *Enricher) applySeries(enrichment *domain.Enrichment, show domain.Show, found epicLookups, region string, now time.Time) {
	detail := found.detail
	enrichment.Certification = seriesCertification(found.ratings.Results, region)

	next := detail.NextEpisode
	upcoming := next != nil && next.EpisodeNumber == 1 && airsWithinMonth(next.AirDate, now)
	enrichment.IsUpcoming = upcoming

	current := detail.LastEpisode
	if upcoming {
		current = next
	}

	overview := ""
	if last := detail.LastEpisode; last != nil {
		for _, season := range detail.Seasons {
			if season.SeasonNumber == last.SeasonNumber {
				overview = season.Overview
				break
			}
		}
	}
	for _, candidate := range []string{overview, detail.Overview, show.Overview} {
		if candidate != "" {
			enrichment.Overview = candidate
			break
		}
	}

	if current != nil {
		enrichment.LatestSeasonNumber = current.SeasonNumber
		enrichment.LatestSeasonLength = current.EpisodeNumber
		enrichment.ReleasedAt = current.AirDate
	}
}

// Card builds the lighter deck form of show: the tagline replaces the overview
// and the artwork rules match Epic.
func (e *Enricher) Card(ctx context.Context, show domain.Show, locale domain.Locale) (domain.Show, bool) {
	if !show.Kind.Valid() {
		e.drop(show, "kind", nil)
		return domain.Show{}, false
	}
	language := displayLanguage(show, locale)
	base := fmt.Sprintf("/%s/%d", show.Kind, show.ID)

	var (
		detail tmdb.Detail
		images tmdb.Images
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.api.Fetch(gctx, base, url.Values{"language": {queryLanguage}}, &detail)
	})
	g.Go(func() error {
		return e.api.Fetch(gctx, base+"/images", url.Values{"include_image_language": {imageLanguages(language)}}, &images)
	})
	if err := g.Wait(); err != nil {
		e.drop(show, "lookup", err)
		return domain.Show{}, false
	}

	poster := blankPoster(images.Posters)
	logo := logoPath(images.Logos, language)
	if poster == "" || logo == "" || detail.Tagline == "" {
		e.drop(show, "card", nil)
		return domain.Show{}, false
	}

	show.Overview = detail.Tagline
	return show.WithEnrichment(domain.Enrichment{
		Overview:        detail.Tagline,
		PosterBlankPath: poster,
		LogoPath:        logo,
	}), true
}

func (e *Enricher) drop(show domain.Show, reason string, err error) {
	metrics.EnrichmentDroppedTotal.WithLabelValues(reason).Inc()
	attrs := []any{
		slog.Int("showId", show.ID),
		slog.String("title", show.Title),
		slog.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		e.logger.Warn("show enrichment failed", attrs...)
		return
	}
	e.logger.Debug("show dropped by enrichment", attrs...)
}

// airsWithinMonth reports whether the air date falls before the calendar day
// one month from now.
func airsWithinMonth(airDate string, now time.Time) bool {
	date, ok := domain.ParseDate(airDate)
	if !ok {
		return false
	}
	return date.Before(calendarDay(now.AddDate(0, 1, 0)))
}

// releasedAfter reports whether the release date is a later calendar day than now.
func releasedAfter(releaseDate string, now time.Time) bool {
	date, ok := domain.ParseDate(releaseDate)
	if !ok {
		return false
	}
	return date.After(calendarDay(now))
}

func calendarDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
