package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"showcase/catalogservice/internal/domain"
	"showcase/catalogservice/internal/tmdb"
)

type fakeRoute func(params url.Values) (string, error)

type fakeRequest struct {
	path   string
	params url.Values
}

// fakeAPI answers Fetch from canned JSON bodies keyed by path.
type fakeAPI struct {
	mu       sync.Mutex
	routes   map[string]fakeRoute
	calls    map[string]int
	requests []fakeRequest
	delay    time.Duration

	taxonomy map[domain.ShowKind]domain.Taxonomy
	attrErr  map[domain.ShowKind]error
	shows    *tmdb.ShowCache
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		routes:   map[string]fakeRoute{},
		calls:    map[string]int{},
		taxonomy: map[domain.ShowKind]domain.Taxonomy{},
		attrErr:  map[domain.ShowKind]error{},
		shows:    tmdb.NewShowCache(),
	}
}

func (f *fakeAPI) handle(path string, route fakeRoute) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = route
}

func (f *fakeAPI) respond(path, body string) {
	f.handle(path, func(url.Values) (string, error) { return body, nil })
}

func (f *fakeAPI) setDelay(delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = delay
}

func (f *fakeAPI) Fetch(ctx context.Context, path string, params url.Values, dest any) error {
	f.mu.Lock()
	route := f.routes[path]
	f.calls[path]++
	f.requests = append(f.requests, fakeRequest{path: path, params: params})
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if route == nil {
		return fmt.Errorf("%w: no route for %s", tmdb.ErrUpstreamStatus, path)
	}
	body, err := route(params)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(body), dest)
}

func (f *fakeAPI) Attributes(_ context.Context, kind domain.ShowKind, _ domain.Locale) (domain.Taxonomy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.attrErr[kind]; err != nil {
		return domain.Taxonomy{}, err
	}
	return f.taxonomy[kind], nil
}

func (f *fakeAPI) Shows() *tmdb.ShowCache {
	return f.shows
}

func (f *fakeAPI) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeAPI) lastParams(path string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].path == path {
			return f.requests[i].params
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// JSON builders
// ---------------------------------------------------------------------------

func movieJSON(id int, title string, vote float64) string {
	return fmt.Sprintf(`{"id":%d,"title":%q,"release_date":"2025-01-01","original_language":"en","vote_average":%g,"genre_ids":[28],"poster_path":"/p%d.jpg","backdrop_path":"/b%d.jpg"}`,
		id, title, vote, id, id)
}

func seriesJSON(id int, name string, vote float64) string {
	return fmt.Sprintf(`{"id":%d,"name":%q,"first_air_date":"2024-06-01","original_language":"en","vote_average":%g,"genre_ids":[18]}`,
		id, name, vote)
}

func pageJSON(totalPages int, items ...string) string {
	return fmt.Sprintf(`{"page":1,"total_pages":%d,"results":[%s]}`, totalPages, strings.Join(items, ","))
}

func moviePage(totalPages int, ids ...int) string {
	items := make([]string, 0, len(ids))
	for _, id := range ids {
		items = append(items, movieJSON(id, fmt.Sprintf("Movie %d", id), 7))
	}
	return pageJSON(totalPages, items...)
}

// cardRoutes registers the detail and images lookups used by Enricher.Card.
func (f *fakeAPI) cardRoutes(kind domain.ShowKind, id int, tagline string) {
	base := fmt.Sprintf("/%s/%d", kind, id)
	f.respond(base, fmt.Sprintf(`{"id":%d,"overview":"overview %d","tagline":%q}`, id, id, tagline))
	f.respond(base+"/images", `{"posters":[{"file_path":"/blank.jpg","iso_639_1":null}],"logos":[{"file_path":"/logo.png","iso_639_1":"en"}]}`)
}

// epicMovieRoutes registers every lookup Enricher.Epic performs for a movie.
func (f *fakeAPI) epicMovieRoutes(id int, releaseDate string) {
	base := fmt.Sprintf("/movie/%d", id)
	f.respond(base, fmt.Sprintf(`{"id":%d,"overview":"overview %d","release_date":%q}`, id, id, releaseDate))
	f.respond(base+"/images", `{"posters":[{"file_path":"/blank.jpg","iso_639_1":null}],"logos":[{"file_path":"/logo.png","iso_639_1":"en"}]}`)
	f.respond(base+"/watch/providers", `{"results":{"ID":{"flatrate":[{"provider_id":8,"provider_name":"Netflix","display_priority":1}]}}}`)
	f.respond(base+"/release_dates", `{"results":[{"iso_3166_1":"ID","release_dates":[{"certification":"13+"}]}]}`)
}

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	}
}

func testLocale() domain.Locale {
	return domain.Locale{Language: "id-ID", Region: "ID"}
}

func ids(shows []domain.Show) []int {
	out := make([]int, 0, len(shows))
	for _, show := range shows {
		out = append(out, show.ID)
	}
	return out
}

func equalIDs(got []domain.Show, want ...int) bool {
	gotIDs := ids(got)
	if len(gotIDs) != len(want) {
		return false
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			return false
		}
	}
	return true
}
