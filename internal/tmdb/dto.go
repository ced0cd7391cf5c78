package tmdb

import (
	"strings"

	"showcase/catalogservice/internal/domain"
)

// ListItem is a movie or series record as returned by list, discover and
// search endpoints. Movies carry release_date, series first_air_date.
type ListItem struct {
	ID               int      `json:"id"`
	MediaType        string   `json:"media_type,omitempty"`
	Title            string   `json:"title,omitempty"`
	Name             string   `json:"name,omitempty"`
	OriginalTitle    string   `json:"original_title,omitempty"`
	OriginalName     string   `json:"original_name,omitempty"`
	OriginalLanguage string   `json:"original_language,omitempty"`
	Overview         string   `json:"overview,omitempty"`
	PosterPath       string   `json:"poster_path,omitempty"`
	BackdropPath     string   `json:"backdrop_path,omitempty"`
	GenreIDs         []int    `json:"genre_ids,omitempty"`
	Popularity       float64  `json:"popularity,omitempty"`
	VoteAverage      float64  `json:"vote_average,omitempty"`
	VoteCount        int      `json:"vote_count,omitempty"`
	Adult            bool     `json:"adult,omitempty"`
	Video            bool     `json:"video,omitempty"`
	ReleaseDate      *string  `json:"release_date,omitempty"`
	FirstAirDate     *string  `json:"first_air_date,omitempty"`
	OriginCountry    []string `json:"origin_country,omitempty"`
}

// Kind decides the record kind from the date field the upstream sent.
// Records carrying neither (people, collections) are unknown.
func (r ListItem) Kind() domain.ShowKind {
	switch {
	case r.ReleaseDate != nil:
		return domain.ShowKindMovie
	case r.FirstAirDate != nil:
		return domain.ShowKindSeries
	default:
		return domain.NormalizeShowKind(r.MediaType)
	}
}

// ToShow converts the record into a domain show. The kind is fixed here and
// selects which kind-specific fields are populated.
func (r ListItem) ToShow() domain.Show {
	show := domain.Show{
		ID:               r.ID,
		Kind:             r.Kind(),
		OriginalLanguage: strings.TrimSpace(r.OriginalLanguage),
		Overview:         strings.TrimSpace(r.Overview),
		PosterPath:       r.PosterPath,
		BackdropPath:     r.BackdropPath,
		GenreIDs:         append([]int(nil), r.GenreIDs...),
		Popularity:       r.Popularity,
		VoteAverage:      r.VoteAverage,
		VoteCount:        r.VoteCount,
		Adult:            r.Adult,
	}
	switch show.Kind {
	case domain.ShowKindMovie:
		show.Title = r.Title
		show.OriginalTitle = r.OriginalTitle
		show.Movie = &domain.MovieFields{ReleaseDate: deref(r.ReleaseDate), Video: r.Video}
	case domain.ShowKindSeries:
		show.Title = r.Name
		show.OriginalTitle = r.OriginalName
		show.Series = &domain.SeriesFields{
			FirstAirDate:  deref(r.FirstAirDate),
			OriginCountry: append([]string(nil), r.OriginCountry...),
		}
	default:
		show.Title = r.Title
		if show.Title == "" {
			show.Title = r.Name
		}
	}
	return show
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// Page is one page of a paginated list endpoint.
type Page struct {
	Page         int        `json:"page"`
	Results      []ListItem `json:"results"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
}

func (p Page) Shows() []domain.Show {
	shows := make([]domain.Show, 0, len(p.Results))
	for _, item := range p.Results {
		shows = append(shows, item.ToShow())
	}
	return shows
}

type Episode struct {
	ID            int    `json:"id"`
	Name          string `json:"name,omitempty"`
	AirDate       string `json:"air_date,omitempty"`
	EpisodeNumber int    `json:"episode_number"`
	SeasonNumber  int    `json:"season_number"`
}

type Season struct {
	ID           int    `json:"id"`
	Name         string `json:"name,omitempty"`
	Overview     string `json:"overview,omitempty"`
	AirDate      string `json:"air_date,omitempty"`
	EpisodeCount int    `json:"episode_count"`
	SeasonNumber int    `json:"season_number"`
}

// Detail is the union of the movie and series detail payloads. Fields that
// belong to the other kind stay zero.
type Detail struct {
	ID               int      `json:"id"`
	Overview         string   `json:"overview,omitempty"`
	Tagline          string   `json:"tagline,omitempty"`
	OriginalLanguage string   `json:"original_language,omitempty"`
	ReleaseDate      string   `json:"release_date,omitempty"`
	Runtime          int      `json:"runtime,omitempty"`
	FirstAirDate     string   `json:"first_air_date,omitempty"`
	LastEpisode      *Episode `json:"last_episode_to_air,omitempty"`
	NextEpisode      *Episode `json:"next_episode_to_air,omitempty"`
	Seasons          []Season `json:"seasons,omitempty"`
}

type Image struct {
	FilePath    string  `json:"file_path"`
	Language    *string `json:"iso_639_1"`
	AspectRatio float64 `json:"aspect_ratio,omitempty"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	VoteAverage float64 `json:"vote_average,omitempty"`
}

// LanguageIs reports whether the image is tagged with lang. An empty lang
// matches images without a language tag.
func (i Image) LanguageIs(lang string) bool {
	if i.Language == nil {
		return lang == ""
	}
	return *i.Language == lang
}

type Images struct {
	ID        int     `json:"id"`
	Backdrops []Image `json:"backdrops"`
	Logos     []Image `json:"logos"`
	Posters   []Image `json:"posters"`
}

type Provider struct {
	ProviderID      int    `json:"provider_id"`
	ProviderName    string `json:"provider_name"`
	LogoPath        string `json:"logo_path,omitempty"`
	DisplayPriority int    `json:"display_priority"`
}

func (p Provider) ToDomain() domain.WatchProvider {
	return domain.WatchProvider{
		ProviderID:      p.ProviderID,
		ProviderName:    p.ProviderName,
		LogoPath:        p.LogoPath,
		DisplayPriority: p.DisplayPriority,
	}
}

// RegionProviders lists offers for one watch region by monetization type.
// Free and Ads are only present for some regions.
type RegionProviders struct {
	Link     string     `json:"link,omitempty"`
	Free     []Provider `json:"free,omitempty"`
	Ads      []Provider `json:"ads,omitempty"`
	Flatrate []Provider `json:"flatrate,omitempty"`
	Rent     []Provider `json:"rent,omitempty"`
	Buy      []Provider `json:"buy,omitempty"`
}

type WatchProviders struct {
	ID      int                        `json:"id"`
	Results map[string]RegionProviders `json:"results"`
}

type ReleaseDate struct {
	Certification string `json:"certification"`
	ReleaseDate   string `json:"release_date,omitempty"`
	Type          int    `json:"type,omitempty"`
}

type CountryReleases struct {
	Country      string        `json:"iso_3166_1"`
	ReleaseDates []ReleaseDate `json:"release_dates"`
}

type ReleaseDates struct {
	ID      int               `json:"id"`
	Results []CountryReleases `json:"results"`
}

type ContentRating struct {
	Country string `json:"iso_3166_1"`
	Rating  string `json:"rating"`
}

type ContentRatings struct {
	ID      int             `json:"id"`
	Results []ContentRating `json:"results"`
}

type genreList struct {
	Genres []domain.Genre `json:"genres"`
}

type providerList struct {
	Results []Provider `json:"results"`
}
