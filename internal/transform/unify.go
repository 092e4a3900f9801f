// Package transform turns the bronze extracts into the unified and enriched
// silver tables.
package transform

import (
	"github.com/sells-group/catalog-etl/internal/model"
)

// Set is the bronze data of one entity type.
type Set struct {
	Type    model.EntityType
	Titles  []model.Title
	Genres  []model.Genre
	Ratings []model.Rating
}

// Unify left-joins ratings onto titles by id, resolves genre names and
// concatenates the sets in order into the base dataset.
func Unify(sets ...Set) []model.UnifiedTitle {
	var n int
	for _, s := range sets {
		n += len(s.Titles)
	}
	out := make([]model.UnifiedTitle, 0, n)
	for _, s := range sets {
		ratings := make(map[int64]model.Rating, len(s.Ratings))
		for _, r := range s.Ratings {
			ratings[r.TMDBID] = r
		}
		for _, t := range s.Titles {
			tmdbRating := t.VoteAverage
			row := model.UnifiedTitle{
				Type:        s.Type.DatasetLabel(),
				ID:          t.ID,
				Title:       t.TitleES,
				Overview:    t.Overview,
				ReleaseDate: t.ReleaseDate,
				Genre:       GenreNames(t.GenreIDs, s.Genres),
				TMDBRating:  &tmdbRating,
				TMDBCount:   t.VoteCount,
			}
			if r, ok := ratings[t.ID]; ok {
				row.IMDBRating = r.IMDBRating
				row.IMDBCount = r.IMDBVotes
			}
			out = append(out, row)
		}
	}
	return out
}

// GenreNames returns the names of the genres in ids, in genre-list order.
// Unknown ids are dropped.
func GenreNames(ids model.IDList, genres []model.Genre) model.NameList {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var names model.NameList
	for _, g := range genres {
		if _, ok := want[g.ID]; ok {
			names = append(names, g.Name)
		}
	}
	return names
}
