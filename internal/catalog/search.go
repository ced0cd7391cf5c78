package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"showcase/catalogservice/internal/domain"
	"showcase/catalogservice/internal/tmdb"
)

var ErrUnknownKind = errors.New("unknown show kind")

// SearchShows resolves slugs to shows: one /search/{kind} request per query,
// keeping the first result whose slugified title equals the query. Queries
// that fail or find nothing are skipped; the rest keep query order.
func (s *Service) SearchShows(ctx context.Context, locale domain.Locale, kind domain.ShowKind, queries []string, params url.Values) ([]domain.Show, error) {
	if !kind.Valid() {
		return nil, ErrUnknownKind
	}
	path := "/search/" + string(kind)

	found := make([]domain.Show, len(queries))
	ok := make([]bool, len(queries))
	var g errgroup.Group
	for i, query := range queries {
		query = strings.TrimSpace(query)
		if query == "" {
			continue
		}
		g.Go(func() error {
			request := locale.Params()
			for key, values := range params {
				request[key] = append([]string(nil), values...)
			}
			request.Set("query", query)

			var page tmdb.Page
			if err := s.upstream.Fetch(ctx, path, request, &page); err != nil {
				s.logger.Warn("show search failed",
					slog.String("query", query),
					slog.String("kind", string(kind)),
					slog.String("error", err.Error()),
				)
				return nil
			}
			for _, show := range page.Shows() {
				if show.Kind == kind && Slugify(show.Title) == query {
					found[i], ok[i] = show, true
					return nil
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	result := make([]domain.Show, 0, len(queries))
	for i, show := range found {
		if ok[i] {
			result = append(result, show)
		}
	}
	return result, nil
}
