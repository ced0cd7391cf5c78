package catalog

import (
	"showcase/catalogservice/internal/domain"
	"showcase/catalogservice/internal/tmdb"
)

const unrated = "NR"

// seriesCertification picks the content rating of region, falling back to
// the US rating.
func seriesCertification(ratings []tmdb.ContentRating, region string) string {
	entry := findRating(ratings, region)
	if entry == nil {
		entry = findRating(ratings, domain.FallbackRegion)
	}
	if entry == nil || entry.Rating == "" {
		return unrated
	}
	return entry.Rating
}

func findRating(ratings []tmdb.ContentRating, country string) *tmdb.ContentRating {
	for i := range ratings {
		if ratings[i].Country == country {
			return &ratings[i]
		}
	}
	return nil
}

// movieCertification picks the release entry of region, then US. When that
// entry lists no certification at all, the first country that has one is
// used instead. The first non-empty certification of the chosen entry wins.
func movieCertification(results []tmdb.CountryReleases, region string) string {
	entry := findReleases(results, region)
	if entry == nil {
		entry = findReleases(results, domain.FallbackRegion)
	}
	if entry != nil && !hasCertification(*entry) {
		entry = nil
		for i := range results {
			if hasCertification(results[i]) {
				entry = &results[i]
				break
			}
		}
	}
	if entry == nil {
		return unrated
	}
	for _, release := range entry.ReleaseDates {
		if release.Certification != "" {
			return release.Certification
		}
	}
	return unrated
}

func findReleases(results []tmdb.CountryReleases, country string) *tmdb.CountryReleases {
	for i := range results {
		if results[i].Country == country {
			return &results[i]
		}
	}
	return nil
}

func hasCertification(entry tmdb.CountryReleases) bool {
	for _, release := range entry.ReleaseDates {
		if release.Certification != "" {
			return true
		}
	}
	return false
}
