package catalog

import (
	"testing"
	"time"

	"showcase/catalogservice/internal/domain"
	"showcase/catalogservice/internal/tmdb"
)

func releases(country string, certs ...string) tmdb.CountryReleases {
	entry := tmdb.CountryReleases{Country: country}
	for _, cert := range certs {
		entry.ReleaseDates = append(entry.ReleaseDates, tmdb.ReleaseDate{Certification: cert})
	}
	return entry
}

func TestMovieCertification(t *testing.T) {
	tests := []struct {
		name    string
		results []tmdb.CountryReleases
		want    string
	}{
		{"region entry", []tmdb.CountryReleases{releases("US", "PG"), releases("ID", "", "17+")}, "17+"},
		{"us fallback", []tmdb.CountryReleases{releases("GB", "15"), releases("US", "R")}, "R"},
		{"empty entry uses first rated country", []tmdb.CountryReleases{releases("FR", ""), releases("GB", "15"), releases("ID", "")}, "15"},
		{"no region and no us", []tmdb.CountryReleases{releases("GB", "15")}, "NR"},
		{"nothing rated", []tmdb.CountryReleases{releases("ID", "")}, "NR"},
		{"empty", nil, "NR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := movieCertification(tt.results, "ID"); got != tt.want {
				t.Fatalf("movieCertification = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSeriesCertification(t *testing.T) {
	ratings := []tmdb.ContentRating{{Country: "US", Rating: "TV-14"}, {Country: "ID", Rating: "D"}}
	if got := seriesCertification(ratings, "ID"); got != "D" {
		t.Fatalf("expected region rating, got %q", got)
	}
	if got := seriesCertification(ratings, "BR"); got != "TV-14" {
		t.Fatalf("expected US fallback, got %q", got)
	}
	if got := seriesCertification([]tmdb.ContentRating{{Country: "KR", Rating: "15"}}, "ID"); got != "NR" {
		t.Fatalf("expected NR, got %q", got)
	}
}

func TestMergeProviders(t *testing.T) {
	region := &tmdb.RegionProviders{
		Ads:      []tmdb.Provider{{ProviderID: 300, DisplayPriority: 9}},
		Flatrate: []tmdb.Provider{{ProviderID: 8, DisplayPriority: 4}},
		Buy:      []tmdb.Provider{{ProviderID: 8, DisplayPriority: 2}, {ProviderID: 2, DisplayPriority: 4}},
	}
	got := mergeProviders(region)
	want := []struct{ id, priority int }{{8, 2}, {2, 4}, {300, 9}}
	if len(got) != len(want) {
		t.Fatalf("expected %d providers, got %+v", len(want), got)
	}
	for i, w := range want {
		if got[i].ProviderID != w.id || got[i].DisplayPriority != w.priority {
			t.Fatalf("provider %d = %+v, want id %d priority %d", i, got[i], w.id, w.priority)
		}
	}

	if empty := mergeProviders(nil); empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", empty)
	}
}

func TestLogoAndPosterSelection(t *testing.T) {
	id, en := "id", "en"
	logos := []tmdb.Image{
		{FilePath: "/a.svg", Language: &id},
		{FilePath: "/b.png", Language: &en},
		{FilePath: "/c.png", Language: &id},
	}
	if got := logoPath(logos, "id"); got != "/c.png" {
		t.Fatalf("expected language logo, got %q", got)
	}
	if got := logoPath(logos, "ja"); got != "/b.png" {
		t.Fatalf("expected english fallback, got %q", got)
	}
	if got := logoPath(logos[:1], "id"); got != "" {
		t.Fatalf("svg logos must be skipped, got %q", got)
	}

	posters := []tmdb.Image{{FilePath: "/titled.jpg", Language: &en}, {FilePath: "/blank.jpg"}}
	if got := blankPoster(posters); got != "/blank.jpg" {
		t.Fatalf("expected untagged poster, got %q", got)
	}

	show := domain.Show{OriginalLanguage: "id"}
	if got := displayLanguage(show, domain.Locale{Language: "id-ID", Region: "ID"}); got != "id" {
		t.Fatalf("expected id, got %q", got)
	}
	if got := displayLanguage(show, domain.Locale{Language: "fr-FR", Region: "FR"}); got != "en" {
		t.Fatalf("expected en, got %q", got)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Spider-Man: No Way Home", "spider-man-no-way-home"},
		{"Amélie", "amelie"},
		{"  The   Office -- (US) ", "the-office-us"},
		{"Pokémon 2000", "pokemon-2000"},
		{"進撃の巨人", ""},
		{"Mission: Impossible – Fallout", "mission-impossible-fallout"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSortByRateAndGenre(t *testing.T) {
	shows := []domain.Show{
		{ID: 1, VoteAverage: 7, GenreIDs: []int{18, 28}},
		{ID: 2, VoteAverage: 9},
		{ID: 3, VoteAverage: 7, GenreIDs: []int{99}},
	}
	SortByRate(shows, false)
	if !equalIDs(shows, 2, 1, 3) {
		t.Fatalf("expected descending stable order, got %v", ids(shows))
	}
	SortByRate(shows, true)
	if !equalIDs(shows, 1, 3, 2) {
		t.Fatalf("expected ascending stable order, got %v", ids(shows))
	}

	InsertFirstGenre(shows, domain.Taxonomy{Genres: []domain.Genre{{ID: 18, Name: "Drama"}}})
	if shows[0].FirstGenreName != "Drama" || shows[1].FirstGenreName != "" || shows[2].FirstGenreName != "" {
		t.Fatalf("unexpected genres %+v", shows)
	}
}

func TestSortByReleasedAt(t *testing.T) {
	shows := []domain.Show{
		{ID: 1, Kind: domain.ShowKindMovie, Movie: &domain.MovieFields{ReleaseDate: "2024-01-01"}},
		{ID: 2, Kind: domain.ShowKindMovie, Movie: &domain.MovieFields{}},
		{ID: 3, Kind: domain.ShowKindSeries, Series: &domain.SeriesFields{FirstAirDate: "2023-01-01"}},
	}
	shows[2] = shows[2].WithEnrichment(domain.Enrichment{ReleasedAt: "2025-02-01"})
	sortByReleasedAt(shows)
	if !equalIDs(shows, 3, 1, 2) {
		t.Fatalf("expected [3 1 2], got %v", ids(shows))
	}
}

func TestDateOffset(t *testing.T) {
	now := time.Date(2025, time.March, 15, 23, 0, 0, 0, time.UTC)
	if got := dateOffset(now, 0, -6, 0); got != "2024-09-15" {
		t.Fatalf("dateOffset = %q", got)
	}
	if got := dateOffset(now, -4, 0, 0); got != "2021-03-15" {
		t.Fatalf("dateOffset = %q", got)
	}
}
