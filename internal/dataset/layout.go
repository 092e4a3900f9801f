package dataset

import (
	"path/filepath"

	"github.com/sells-group/catalog-etl/internal/model"
)

// Layout resolves the paths of every table under a data directory.
type Layout struct {
	Dir string
}

// BronzeDir holds raw extracts.
func (l Layout) BronzeDir() string { return filepath.Join(l.Dir, "1_bronze") }

// SilverDir holds unified and enriched tables.
func (l Layout) SilverDir() string { return filepath.Join(l.Dir, "2_silver") }

// GoldDir holds the published outputs.
func (l Layout) GoldDir() string { return filepath.Join(l.Dir, "3_gold") }

// TopRated is the TMDB top-rated listing for e.
func (l Layout) TopRated(e model.EntityType) string {
	return filepath.Join(l.BronzeDir(), "TMDB_top_rated_"+e.Plural()+".csv")
}

// Genres is the TMDB genre list for e.
func (l Layout) Genres(e model.EntityType) string {
	return filepath.Join(l.BronzeDir(), "TMDB_"+e.Plural()+"_genres.csv")
}

// WatchProviders is the TMDB watch provider table for e.
func (l Layout) WatchProviders(e model.EntityType) string {
	return filepath.Join(l.BronzeDir(), "TMDB_watch_providers_"+e.Plural()+".csv")
}

// Ratings is the OMDB cross-reference table for e.
func (l Layout) Ratings(e model.EntityType) string {
	return filepath.Join(l.BronzeDir(), "OMDB_imdb_rating_"+e.Plural()+".csv")
}

// Base is the unified movies-and-shows table.
func (l Layout) Base() string {
	return filepath.Join(l.SilverDir(), "base_movies_and_shows.csv")
}

// Enriched is the cleaned and enriched table.
func (l Layout) Enriched() string {
	return filepath.Join(l.SilverDir(), "enriched_result_movies_shows.csv")
}

// Gold is the published result in the given format extension.
func (l Layout) Gold(ext string) string {
	return filepath.Join(l.GoldDir(), "movies_and_shows_result."+ext)
}

// Lock is the file guarding against concurrent runs.
func (l Layout) Lock() string {
	return filepath.Join(l.Dir, ".catalog-etl.lock")
}
