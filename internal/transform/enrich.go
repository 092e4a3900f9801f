package transform

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/catalog-etl/internal/model"
)

const (
	// MissingDate replaces unknown release dates.
	MissingDate = "1111-11-11"

	// PopularVotes is the vote count above which a title is popular on
	// either catalog.
	PopularVotes = 10000

	missing = -1
)

var missingRating = decimal.NewFromInt(missing)

// Enrich cleans the base dataset: vote counts become integers, missing
// values get sentinels, dates switch to DD/MM/YYYY and popularity is
// flagged. Only rows rated on both catalogs are kept. Watch providers are
// left-joined by type and id. Movies come first, then shows, each in input
// order.
func Enrich(rows []model.UnifiedTitle, providers map[model.EntityType][]model.WatchProviders) []model.EnrichedTitle {
	byType := make(map[model.EntityType]map[int64]model.NameList, len(providers))
	for e, list := range providers {
		m := make(map[int64]model.NameList, len(list))
		for _, p := range list {
			m[p.ID] = p.Providers
		}
		byType[e] = m
	}

	var movies, shows []model.EnrichedTitle
	for _, row := range rows {
		e, ok := model.ParseEntityType(row.Type)
		if !ok {
			continue
		}
		out := enrichRow(row)
		if out.IMDBRating.Equal(missingRating) || out.TMDBRating == missing {
			continue
		}
		out.WatchProviders = byType[e][row.ID].Flatten()
		if e == model.EntitySeries {
			shows = append(shows, out)
		} else {
			movies = append(movies, out)
		}
	}
	return append(movies, shows...)
}

func enrichRow(row model.UnifiedTitle) model.EnrichedTitle {
	out := model.EnrichedTitle{
		Type:        row.Type,
		ID:          row.ID,
		Title:       row.Title,
		Overview:    row.Overview,
		ReleaseDate: FormatDate(row.ReleaseDate),
		Genre:       row.Genre.Flatten(),
		TMDBRating:  missing,
		TMDBCount:   row.TMDBCount,
		IMDBRating:  missingRating,
		IMDBCount:   ParseVotes(row.IMDBCount),
	}
	if row.TMDBRating != nil {
		out.TMDBRating = *row.TMDBRating
	}
	if row.IMDBRating != nil {
		out.IMDBRating = *row.IMDBRating
	}
	out.IsPopular = out.TMDBCount > PopularVotes || out.IMDBCount > PopularVotes
	return out
}

// ParseVotes turns a vote count such as "1,234" into 1234. Missing or
// unreadable counts are -1.
func ParseVotes(s *string) int64 {
	if s == nil {
		return missing
	}
	v := strings.ReplaceAll(strings.TrimSpace(*s), ",", "")
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return missing
	}
	return n
}

// FormatDate converts YYYY-MM-DD to DD/MM/YYYY. Empty or unparseable dates
// are treated as missing and rendered from MissingDate.
func FormatDate(s string) string {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		d, _ = time.Parse(time.DateOnly, MissingDate)
	}
	return d.Format("02/01/2006")
}
