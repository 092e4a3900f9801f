package transform

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-etl/internal/dataset"
	"github.com/sells-group/catalog-etl/internal/model"
)

// Entities is the order in which entity types are processed and written.
var Entities = []model.EntityType{model.EntityMovie, model.EntitySeries}

// LoadSet reads the bronze tables of one entity type.
func LoadSet(l dataset.Layout, e model.EntityType) (Set, error) {
	s := Set{Type: e}
	var err error
	if s.Titles, err = dataset.ReadTable[model.Title](l.TopRated(e)); err != nil {
		return s, eris.Wrapf(err, "transform: load %s titles", e.Plural())
	}
	if s.Genres, err = dataset.ReadTable[model.Genre](l.Genres(e)); err != nil {
		return s, eris.Wrapf(err, "transform: load %s genres", e.Plural())
	}
	if s.Ratings, err = dataset.ReadTable[model.Rating](l.Ratings(e)); err != nil {
		return s, eris.Wrapf(err, "transform: load %s ratings", e.Plural())
	}
	return s, nil
}

// UnifyFiles builds the base dataset from the bronze tables and writes it.
// It returns the number of rows written.
func UnifyFiles(l dataset.Layout) (int, error) {
	sets := make([]Set, 0, len(Entities))
	for _, e := range Entities {
		s, err := LoadSet(l, e)
		if err != nil {
			return 0, err
		}
		sets = append(sets, s)
	}
	rows := Unify(sets...)
	if err := dataset.WriteTable(l.Base(), rows); err != nil {
		return 0, eris.Wrap(err, "transform: write base dataset")
	}
	zap.L().Info("transform: base dataset written",
		zap.String("path", l.Base()),
		zap.Int("rows", len(rows)),
	)
	return len(rows), nil
}

// EnrichFiles cleans the base dataset, joins the watch providers and writes
// the enriched dataset. It returns the number of rows written.
func EnrichFiles(l dataset.Layout) (int, error) {
	rows, err := dataset.ReadTable[model.UnifiedTitle](l.Base())
	if err != nil {
		return 0, eris.Wrap(err, "transform: load base dataset")
	}
	providers := make(map[model.EntityType][]model.WatchProviders, len(Entities))
	for _, e := range Entities {
		p, err := dataset.ReadTable[model.WatchProviders](l.WatchProviders(e))
		if err != nil {
			return 0, eris.Wrapf(err, "transform: load %s watch providers", e.Plural())
		}
		providers[e] = p
	}

	out := Enrich(rows, providers)
	if err := dataset.WriteTable(l.Enriched(), out); err != nil {
		return 0, eris.Wrap(err, "transform: write enriched dataset")
	}
	zap.L().Info("transform: enriched dataset written",
		zap.String("path", l.Enriched()),
		zap.Int("rows", len(out)),
		zap.Int("dropped", len(rows)-len(out)),
	)
	return len(out), nil
}
