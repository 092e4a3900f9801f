package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// EntityType distinguishes movies from series across both catalogs.
type EntityType string

const (
	EntityMovie  EntityType = "movie"
	EntitySeries EntityType = "series"
)

// ParseEntityType accepts the labels used by either catalog or the datasets
// ("movie", "series", "tv", "show").
func ParseEntityType(s string) (EntityType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "movies":
		return EntityMovie, true
	case "series", "tv", "show", "shows":
		return EntitySeries, true
	default:
		return "", false
	}
}

// TMDBPath returns the path segment TMDB uses for this type.
func (e EntityType) TMDBPath() string {
	if e == EntitySeries {
		return "tv"
	}
	return "movie"
}

// OMDBType returns the value of the OMDB "type" query parameter.
func (e EntityType) OMDBType() string {
	if e == EntitySeries {
		return "series"
	}
	return "movie"
}

// DatasetLabel returns the value written to the "type" column of the
// unified dataset.
func (e EntityType) DatasetLabel() string {
	if e == EntitySeries {
		return "show"
	}
	return "movie"
}

// Plural returns "movies" or "shows", used in file names and logs.
func (e EntityType) Plural() string {
	if e == EntitySeries {
		return "shows"
	}
	return "movies"
}

// SourceRecord is a title read from the primary (listing) catalog. It is
// never modified once handed to the resolver.
type SourceRecord struct {
	CatalogID   int64      `json:"catalog_id"`
	Title       string     `json:"title"`
	ReleaseYear *int       `json:"release_year,omitempty"`
	EntityType  EntityType `json:"entity_type"`
}

// CandidateRecord is the single result returned by the rating catalog for
// one lookup. VoteCount is kept as the catalog sent it ("1,234").
type CandidateRecord struct {
	ReturnedTitle string           `json:"returned_title"`
	ReturnedYear  *int             `json:"returned_year,omitempty"`
	RatingValue   *decimal.Decimal `json:"rating_value,omitempty"`
	VoteCount     *string          `json:"vote_count,omitempty"`
	Found         bool             `json:"found"`
}

// EnrichedRecord is the rating enrichment for one source record. Nil fields
// mean the match was rejected or nothing was found.
type EnrichedRecord struct {
	CatalogID   int64            `json:"catalog_id"`
	RatingValue *decimal.Decimal `json:"rating_value"`
	VoteCount   *string          `json:"vote_count"`
}

// Matched reports whether the record carries accepted rating fields.
func (e EnrichedRecord) Matched() bool {
	return e.RatingValue != nil || e.VoteCount != nil
}
