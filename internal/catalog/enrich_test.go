package catalog

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"showcase/catalogservice/internal/domain"
)

func newTestEnricher(api API) *Enricher {
	e := NewEnricher(api, nil)
	e.now = fixedClock()
	return e
}

func TestEpicMovie(t *testing.T) {
	api := newFakeAPI()
	api.respond("/movie/10", `{"id":10,"overview":"Ringkasan","release_date":"2025-04-02"}`)
	api.respond("/movie/10/images", `{
		"posters":[{"file_path":"/p-en.jpg","iso_639_1":"en"},{"file_path":"/p-blank.jpg","iso_639_1":null}],
		"logos":[{"file_path":"/l.svg","iso_639_1":"id"},{"file_path":"/l-en.png","iso_639_1":"en"},{"file_path":"/l-id.png","iso_639_1":"id"}]
	}`)
	api.respond("/movie/10/watch/providers", `{"results":{"ID":{
		"flatrate":[{"provider_id":8,"provider_name":"Netflix","display_priority":3}],
		"rent":[{"provider_id":2,"provider_name":"Apple TV","display_priority":1},{"provider_id":8,"provider_name":"Netflix","display_priority":5}],
		"buy":[{"provider_id":2,"provider_name":"Apple TV","display_priority":1}]
	}}}`)
	api.respond("/movie/10/release_dates", `{"results":[
		{"iso_3166_1":"ID","release_dates":[{"certification":""}]},
		{"iso_3166_1":"US","release_dates":[{"certification":""}]},
		{"iso_3166_1":"GB","release_dates":[{"certification":""},{"certification":"12A"}]}
	]}`)

	show := domain.Show{ID: 10, Kind: domain.ShowKindMovie, Title: "Local", OriginalLanguage: "id", Movie: &domain.MovieFields{ReleaseDate: "2025-04-01"}}
	got, ok := newTestEnricher(api).Epic(context.Background(), show, testLocale())
	if !ok {
		t.Fatal("expected show to be enriched")
	}
	e := got.Enrichment
	if e.PosterBlankPath != "/p-blank.jpg" || e.LogoPath != "/l-id.png" {
		t.Fatalf("unexpected artwork %+v", e)
	}
	if e.Overview != "Ringkasan" || e.Certification != "12A" {
		t.Fatalf("unexpected overview/certification %+v", e)
	}
	if !e.IsUpcoming || e.ReleasedAt != "2025-04-02" || !e.CanWatch {
		t.Fatalf("unexpected release state %+v", e)
	}
	if len(e.Providers) != 2 || e.Providers[0].ProviderID != 2 || e.Providers[1].ProviderID != 8 || e.Providers[1].DisplayPriority != 3 {
		t.Fatalf("unexpected providers %+v", e.Providers)
	}
	if lang := api.lastParams("/movie/10/images").Get("include_image_language"); lang != "null,id" {
		t.Fatalf("unexpected image languages %q", lang)
	}
	if lang := api.lastParams("/movie/10").Get("language"); lang != "id-ID" {
		t.Fatalf("detail must be requested in the locale language, got %q", lang)
	}
	if show.Enriched() {
		t.Fatal("input show must not be modified")
	}
}

func TestEpicSeries(t *testing.T) {
	api := newFakeAPI()
	api.respond("/tv/20", `{
		"id":20,"overview":"Series overview",
		"next_episode_to_air":{"episode_number":1,"season_number":2,"air_date":"2025-04-10"},
		"last_episode_to_air":{"episode_number":8,"season_number":1,"air_date":"2024-12-01"},
		"seasons":[{"season_number":1,"overview":"Season one"},{"season_number":2,"overview":""}]
	}`)
	api.respond("/tv/20/images", `{"posters":[{"file_path":"/blank.jpg","iso_639_1":null}],"logos":[{"file_path":"/logo-ko.png","iso_639_1":"ko"},{"file_path":"/logo-en.png","iso_639_1":"en"}]}`)
	api.respond("/tv/20/watch/providers", `{"results":{"US":{"flatrate":[{"provider_id":337,"provider_name":"Disney Plus","display_priority":2}]}}}`)
	api.respond("/tv/20/content_ratings", `{"results":[{"iso_3166_1":"KR","rating":"15"},{"iso_3166_1":"US","rating":"TV-MA"}]}`)

	show := domain.Show{ID: 20, Kind: domain.ShowKindSeries, OriginalLanguage: "ko", Series: &domain.SeriesFields{FirstAirDate: "2024-10-01"}}
	got, ok := newTestEnricher(api).Epic(context.Background(), show, testLocale())
	if !ok {
		t.Fatal("expected series to be enriched")
	}
	e := got.Enrichment
	if e.LogoPath != "/logo-en.png" {
		t.Fatalf("expected english logo for a foreign show, got %q", e.LogoPath)
	}
	if e.Certification != "TV-MA" || e.CanWatch {
		t.Fatalf("expected US fallback without can-watch, got %+v", e)
	}
	if len(e.Providers) != 1 || e.Providers[0].ProviderID != 337 {
		t.Fatalf("expected fallback region providers, got %+v", e.Providers)
	}
	if !e.IsUpcoming || e.LatestSeasonNumber != 2 || e.LatestSeasonLength != 1 || e.ReleasedAt != "2025-04-10" {
		t.Fatalf("expected upcoming season 2 premiere, got %+v", e)
	}
	if e.Overview != "Season one" {
		t.Fatalf("expected latest season overview, got %q", e.Overview)
	}
	if lang := api.lastParams("/tv/20/images").Get("include_image_language"); lang != "null,en" {
		t.Fatalf("unexpected image languages %q", lang)
	}
}

func TestEpicSeriesNotUpcomingUsesLastEpisode(t *testing.T) {
	api := newFakeAPI()
	api.respond("/tv/21", `{
		"id":21,"overview":"Series overview",
		"next_episode_to_air":{"episode_number":5,"season_number":3,"air_date":"2025-03-20"},
		"last_episode_to_air":{"episode_number":4,"season_number":3,"air_date":"2025-03-13"},
		"seasons":[{"season_number":3,"overview":""}]
	}`)
	api.respond("/tv/21/images", `{"posters":[{"file_path":"/blank.jpg","iso_639_1":null}],"logos":[{"file_path":"/logo.png","iso_639_1":"en"}]}`)
	api.respond("/tv/21/watch/providers", `{"results":{}}`)
	api.respond("/tv/21/content_ratings", `{"results":[]}`)

	show := domain.Show{ID: 21, Kind: domain.ShowKindSeries, Series: &domain.SeriesFields{}}
	got, ok := newTestEnricher(api).Epic(context.Background(), show, testLocale())
	if !ok {
		t.Fatal("expected series to be enriched")
	}
	e := got.Enrichment
	if e.IsUpcoming || e.LatestSeasonNumber != 3 || e.LatestSeasonLength != 4 || e.ReleasedAt != "2025-03-13" {
		t.Fatalf("expected last aired episode markers, got %+v", e)
	}
	if e.Overview != "Series overview" || e.Certification != "NR" || len(e.Providers) != 0 {
		t.Fatalf("unexpected fallbacks %+v", e)
	}
}

func TestEpicRejections(t *testing.T) {
	base := func() *fakeAPI {
		api := newFakeAPI()
		api.epicMovieRoutes(30, "2024-01-01")
		return api
	}
	show := domain.Show{ID: 30, Kind: domain.ShowKindMovie, Movie: &domain.MovieFields{ReleaseDate: "2024-01-01"}}

	cases := map[string]func(api *fakeAPI){
		"svg logo only": func(api *fakeAPI) {
			api.respond("/movie/30/images", `{"posters":[{"file_path":"/blank.jpg","iso_639_1":null}],"logos":[{"file_path":"/logo.svg","iso_639_1":"en"}]}`)
		},
		"no blank poster": func(api *fakeAPI) {
			api.respond("/movie/30/images", `{"posters":[{"file_path":"/p.jpg","iso_639_1":"en"}],"logos":[{"file_path":"/logo.png","iso_639_1":"en"}]}`)
		},
		"no overview": func(api *fakeAPI) {
			api.respond("/movie/30", `{"id":30,"overview":""}`)
		},
		"lookup failure": func(api *fakeAPI) {
			api.handle("/movie/30/watch/providers", func(url.Values) (string, error) {
				return "", errors.New("timeout")
			})
		},
	}
	for name, mutate := range cases {
		api := base()
		mutate(api)
		if _, ok := newTestEnricher(api).Epic(context.Background(), show, testLocale()); ok {
			t.Fatalf("%s: expected show to be dropped", name)
		}
	}

	if _, ok := newTestEnricher(base()).Epic(context.Background(), show, testLocale()); !ok {
		t.Fatal("baseline show must be enriched")
	}
}

func TestCardUsesTagline(t *testing.T) {
	api := newFakeAPI()
	api.cardRoutes(domain.ShowKindMovie, 40, "In space no one can hear you scream.")
	show := domain.Show{ID: 40, Kind: domain.ShowKindMovie, Overview: "long overview", Movie: &domain.MovieFields{}}

	got, ok := newTestEnricher(api).Card(context.Background(), show, testLocale())
	if !ok {
		t.Fatal("expected card")
	}
	if got.Overview != "In space no one can hear you scream." || got.Enrichment.LogoPath != "/logo.png" {
		t.Fatalf("unexpected card %+v", got)
	}
	if lang := api.lastParams("/movie/40").Get("language"); lang != "en-US" {
		t.Fatalf("card detail must be requested in en-US, got %q", lang)
	}

	api.cardRoutes(domain.ShowKindMovie, 41, "")
	if _, ok := newTestEnricher(api).Card(context.Background(), domain.Show{ID: 41, Kind: domain.ShowKindMovie, Movie: &domain.MovieFields{}}, testLocale()); ok {
		t.Fatal("card without tagline must be dropped")
	}
}
