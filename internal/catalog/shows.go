package catalog

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"showcase/catalogservice/internal/domain"
)

// InsertFirstGenre sets FirstGenreName from the first genre id of each show.
func InsertFirstGenre(shows []domain.Show, taxonomy domain.Taxonomy) []domain.Show {
	for i := range shows {
		if len(shows[i].GenreIDs) == 0 {
			continue
		}
		shows[i].FirstGenreName = taxonomy.GenreName(shows[i].GenreIDs[0])
	}
	return shows
}

// SortByRate orders shows by vote average, descending unless asc is set.
// Ties keep their order.
func SortByRate(shows []domain.Show, asc bool) []domain.Show {
	sort.SliceStable(shows, func(i, j int) bool {
		if asc {
			return shows[i].VoteAverage < shows[j].VoteAverage
		}
		return shows[i].VoteAverage > shows[j].VoteAverage
	})
	return shows
}

// sortByReleasedAt orders shows newest first. Shows without a usable date go last.
func sortByReleasedAt(shows []domain.Show) {
	sort.SliceStable(shows, func(i, j int) bool {
		a, aok := domain.ParseDate(shows[i].ReleasedAt())
		b, bok := domain.ParseDate(shows[j].ReleasedAt())
		if aok != bok {
			return aok
		}
		return a.After(b)
	})
}

func sortByPopularity(shows []domain.Show) {
	sort.SliceStable(shows, func(i, j int) bool {
		return shows[i].Popularity < shows[j].Popularity
	})
}

// Slugify lowercases title, folds accents, drops everything but ASCII letters,
// digits, spaces and dashes, and joins words with single dashes:
// "Amélie: Le Fabuleux Destin" becomes "amelie-le-fabuleux-destin".
func Slugify(title string) string {
	foldMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(foldMarks, strings.ToLower(title))
	if err != nil {
		folded = strings.ToLower(title)
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingDash = true
		}
	}
	return b.String()
}

func dateOffset(now time.Time, years, months, days int) string {
	return now.AddDate(years, months, days).Format(domain.DateLayout)
}
