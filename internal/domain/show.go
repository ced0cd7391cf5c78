package domain

import (
	"strings"
	"time"
)

type ShowKind string

const (
	ShowKindUnknown ShowKind = ""
	ShowKindMovie   ShowKind = "movie"
	ShowKindSeries  ShowKind = "tv"
)

// DateLayout is the calendar date format used by the upstream API.
const DateLayout = "2006-01-02"

func (k ShowKind) Valid() bool {
	return k == ShowKindMovie || k == ShowKindSeries
}

// NormalizeShowKind maps user input ("movie", "tv", "series") to a ShowKind.
func NormalizeShowKind(raw string) ShowKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "movie", "movies":
		return ShowKindMovie
	case "tv", "series", "show", "shows":
		return ShowKindSeries
	default:
		return ShowKindUnknown
	}
}

type MovieFields struct {
	ReleaseDate string `json:"releaseDate"`
	Video       bool   `json:"video,omitempty"`
}

type SeriesFields struct {
	FirstAirDate  string   `json:"firstAirDate"`
	OriginCountry []string `json:"originCountry,omitempty"`
}

// Show is a movie or a series as returned by list endpoints. Kind is decided
// once when the upstream record is ingested and selects which of Movie or
// Series is set.
type Show struct {
	ID               int           `json:"id"`
	Kind             ShowKind      `json:"mediaType"`
	Title            string        `json:"title"`
	OriginalTitle    string        `json:"originalTitle,omitempty"`
	OriginalLanguage string        `json:"originalLanguage,omitempty"`
	Overview         string        `json:"overview,omitempty"`
	PosterPath       string        `json:"posterPath,omitempty"`
	BackdropPath     string        `json:"backdropPath,omitempty"`
	GenreIDs         []int         `json:"genreIds,omitempty"`
	Popularity       float64       `json:"popularity,omitempty"`
	VoteAverage      float64       `json:"voteAverage"`
	VoteCount        int           `json:"voteCount"`
	Adult            bool          `json:"adult,omitempty"`
	Movie            *MovieFields  `json:"movie,omitempty"`
	Series           *SeriesFields `json:"series,omitempty"`
	FirstGenreName   string        `json:"firstGenreName,omitempty"`
	Enrichment       *Enrichment   `json:"enrichment,omitempty"`
}

func (s Show) IsMovie() bool  { return s.Kind == ShowKindMovie && s.Movie != nil }
func (s Show) IsSeries() bool { return s.Kind == ShowKindSeries && s.Series != nil }

// Date returns the release date for movies and the first air date for series.
func (s Show) Date() string {
	switch {
	case s.IsMovie():
		return s.Movie.ReleaseDate
	case s.IsSeries():
		return s.Series.FirstAirDate
	default:
		return ""
	}
}

// Enriched reports whether secondary lookups have been merged into the show.
func (s Show) Enriched() bool {
	return s.Enrichment != nil
}

// ReleasedAt is the date stages sort on: the enrichment date when present,
// the list date otherwise.
func (s Show) ReleasedAt() string {
	if s.Enrichment != nil && s.Enrichment.ReleasedAt != "" {
		return s.Enrichment.ReleasedAt
	}
	return s.Date()
}

// WithEnrichment returns a copy of s carrying e. The receiver is not modified.
func (s Show) WithEnrichment(e Enrichment) Show {
	enrichment := e
	enrichment.Providers = append([]WatchProvider(nil), e.Providers...)
	s.Enrichment = &enrichment
	return s
}

type Enrichment struct {
	Overview           string          `json:"overview"`
	PosterBlankPath    string          `json:"posterBlankPath"`
	LogoPath           string          `json:"logoPath"`
	Certification      string          `json:"certification,omitempty"`
	Providers          []WatchProvider `json:"providers,omitempty"`
	CanWatch           bool            `json:"canWatch"`
	IsUpcoming         bool            `json:"isUpcoming"`
	ReleasedAt         string          `json:"releasedAt,omitempty"`
	LatestSeasonNumber int             `json:"latestSeasonNumber,omitempty"`
	LatestSeasonLength int             `json:"latestSeasonLength,omitempty"`
}

// ParseDate parses an upstream calendar date. Empty or malformed values yield
// the zero time and false.
func ParseDate(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func CloneShows(shows []Show) []Show {
	if shows == nil {
		return nil
	}
	cloned := make([]Show, len(shows))
	for i, show := range shows {
		copied := show
		copied.GenreIDs = append([]int(nil), show.GenreIDs...)
		if show.Movie != nil {
			movie := *show.Movie
			copied.Movie = &movie
		}
		if show.Series != nil {
			series := *show.Series
			series.OriginCountry = append([]string(nil), show.Series.OriginCountry...)
			copied.Series = &series
		}
		if show.Enrichment != nil {
			copied = copied.WithEnrichment(*show.Enrichment)
		}
		cloned[i] = copied
	}
	return cloned
}
