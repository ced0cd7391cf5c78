package catalog

import (
	"sort"
	"strings"

	"showcase/catalogservice/internal/domain"
	"showcase/catalogservice/internal/tmdb"
)

// displayLanguage is the locale language when the show was produced in it,
// English otherwise. Logos are looked up in this language.
func displayLanguage(show domain.Show, locale domain.Locale) string {
	code := locale.LanguageCode()
	if code != "" && code == show.OriginalLanguage {
		return code
	}
	return domain.FallbackLanguage
}

// imageLanguages is the include_image_language value: untagged images plus
// the display language.
func imageLanguages(language string) string {
	if language == "" || language == "null" {
		return "null"
	}
	return "null," + language
}

// blankPoster returns the first poster without any language tag (no title
// text burned in).
func blankPoster(posters []tmdb.Image) string {
	for _, poster := range posters {
		if poster.LanguageIs("") && poster.FilePath != "" {
			return poster.FilePath
		}
	}
	return ""
}

// logoPath prefers a raster logo in language, then an English one.
func logoPath(logos []tmdb.Image, language string) string {
	raster := make([]tmdb.Image, 0, len(logos))
	for _, logo := range logos {
		if logo.FilePath == "" || strings.Contains(logo.FilePath, ".svg") {
			continue
		}
		raster = append(raster, logo)
	}
	for _, want := range []string{language, domain.FallbackLanguage} {
		for _, logo := range raster {
			if logo.LanguageIs(want) {
				return logo.FilePath
			}
		}
	}
	return ""
}

// mergeProviders flattens the offers of one region into a single list ordered
// by display priority, keeping one entry per provider.
func mergeProviders(region *tmdb.RegionProviders) []domain.WatchProvider {
	if region == nil {
		return []domain.WatchProvider{}
	}
	var all []tmdb.Provider
	for _, offers := range [][]tmdb.Provider{region.Free, region.Ads, region.Flatrate, region.Rent, region.Buy} {
		all = append(all, offers...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].DisplayPriority < all[j].DisplayPriority
	})

	seen := make(map[int]struct{}, len(all))
	merged := make([]domain.WatchProvider, 0, len(all))
	for _, provider := range all {
		if _, dup := seen[provider.ProviderID]; dup {
			continue
		}
		seen[provider.ProviderID] = struct{}{}
		merged = append(merged, provider.ToDomain())
	}
	return merged
}
