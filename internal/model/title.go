package model

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// IDList is a list of catalog ids stored in a single CSV cell as "18|80".
type IDList []int64

// MarshalText implements encoding.TextMarshaler.
func (l IDList) MarshalText() ([]byte, error) {
	parts := make([]string, len(l))
	for i, id := range l {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return []byte(strings.Join(parts, "|")), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unparseable entries are
// dropped rather than failing the whole row.
func (l *IDList) UnmarshalText(b []byte) error {
	*l = nil
	for _, part := range strings.Split(string(b), "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		*l = append(*l, id)
	}
	return nil
}

// NameList is a list of names stored in a single CSV cell as "A|B".
type NameList []string

// MarshalText implements encoding.TextMarshaler.
func (l NameList) MarshalText() ([]byte, error) {
	return []byte(strings.Join(l, "|")), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *NameList) UnmarshalText(b []byte) error {
	*l = nil
	for _, part := range strings.Split(string(b), "|") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

// Flatten renders the list the way the final dataset shows it: "A, B".
func (l NameList) Flatten() string {
	return strings.Join(l, ", ")
}

// Title is one top-rated entry pulled from TMDB, with the Spanish and
// English titles merged by id.
type Title struct {
	ID          int64      `csv:"id" json:"id"`
	Type        EntityType `csv:"type" json:"type"`
	TitleES     string     `csv:"title_es" json:"title_es"`
	TitleEN     string     `csv:"title_en" json:"title_en"`
	Overview    string     `csv:"overview" json:"overview"`
	ReleaseDate string     `csv:"release_date" json:"release_date"`
	GenreIDs    IDList     `csv:"genre_ids" json:"genre_ids"`
	VoteAverage float64    `csv:"vote_average" json:"vote_average"`
	VoteCount   int64      `csv:"vote_count" json:"vote_count"`
	Popularity  float64    `csv:"popularity" json:"popularity"`
}

// ReleaseYear extracts the year from a YYYY-MM-DD release date.
func (t Title) ReleaseYear() *int {
	if len(t.ReleaseDate) < 4 {
		return nil
	}
	y, err := strconv.Atoi(t.ReleaseDate[:4])
	if err != nil || y <= 0 {
		return nil
	}
	return &y
}

// SearchTitle is the title used to query the rating catalog: the English
// title when known, the Spanish one otherwise.
func (t Title) SearchTitle() string {
	if strings.TrimSpace(t.TitleEN) != "" {
		return t.TitleEN
	}
	return t.TitleES
}

// SourceRecord converts the title into the resolver's input.
func (t Title) SourceRecord() SourceRecord {
	return SourceRecord{
		CatalogID:   t.ID,
		Title:       t.SearchTitle(),
		ReleaseYear: t.ReleaseYear(),
		EntityType:  t.Type,
	}
}

// Genre maps a TMDB genre id to its display name.
type Genre struct {
	ID   int64  `csv:"id" json:"id"`
	Name string `csv:"name" json:"name"`
}

// WatchProviders lists the subscription (flatrate) providers of one title.
type WatchProviders struct {
	ID        int64    `csv:"id" json:"id"`
	Providers NameList `csv:"watch_providers" json:"watch_providers"`
}

// Rating is one row of the rating-catalog cross-reference table.
type Rating struct {
	TMDBID     int64            `csv:"tmdb_id" json:"tmdb_id"`
	IMDBRating *decimal.Decimal `csv:"imdb_rating" json:"imdb_rating"`
	IMDBVotes  *string          `csv:"imdb_votes" json:"imdb_votes"`
}

// RatingFromEnriched converts a resolver output into a table row.
func RatingFromEnriched(e EnrichedRecord) Rating {
	return Rating{TMDBID: e.CatalogID, IMDBRating: e.RatingValue, IMDBVotes: e.VoteCount}
}

// UnifiedTitle is one row of the base movies-and-shows dataset.
type UnifiedTitle struct {
	Type        string           `csv:"type" json:"type"`
	ID          int64            `csv:"id" json:"id"`
	Title       string           `csv:"title" json:"title"`
	Overview    string           `csv:"overview" json:"overview"`
	ReleaseDate string           `csv:"release_date" json:"release_date"`
	Genre       NameList         `csv:"genre" json:"genre"`
	TMDBRating  *float64         `csv:"tmdb_rating" json:"tmdb_rating"`
	TMDBCount   int64            `csv:"tmdb_count" json:"tmdb_count"`
	IMDBRating  *decimal.Decimal `csv:"imdb_rating" json:"imdb_rating"`
	IMDBCount   *string          `csv:"imdb_count" json:"imdb_count"`
}

// EnrichedTitle is one row of the final dataset.
type EnrichedTitle struct {
	Type           string          `csv:"type" json:"type"`
	ID             int64           `csv:"id" json:"id"`
	Title          string          `csv:"title" json:"title"`
	Overview       string          `csv:"overview" json:"overview"`
	ReleaseDate    string          `csv:"release_date" json:"release_date"`
	Genre          string          `csv:"genre" json:"genre"`
	TMDBRating     float64         `csv:"tmdb_rating" json:"tmdb_rating"`
	TMDBCount      int64           `csv:"tmdb_count" json:"tmdb_count"`
	IMDBRating     decimal.Decimal `csv:"imdb_rating" json:"imdb_rating"`
	IMDBCount      int64           `csv:"imdb_count" json:"imdb_count"`
	IsPopular      bool            `csv:"is_popular" json:"is_popular"`
	WatchProviders string          `csv:"watch_providers" json:"watch_providers"`
}
