package transform

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-etl/internal/dataset"
	"github.com/sells-group/catalog-etl/internal/model"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func str(s string) *string { return &s }

func f64(v float64) *float64 { return &v }

func bronzeSets() []Set {
	return []Set{
		{
			Type: model.EntityMovie,
			Titles: []model.Title{
				{ID: 238, Type: model.EntityMovie, TitleES: "El padrino", TitleEN: "The Godfather", ReleaseDate: "1972-03-14", GenreIDs: model.IDList{80, 18}, VoteAverage: 8.7, VoteCount: 21000},
				{ID: 5, Type: model.EntityMovie, TitleES: "Desconocida", VoteAverage: 6.1, VoteCount: 12},
			},
			Genres:  []model.Genre{{ID: 18, Name: "Drama"}, {ID: 80, Name: "Crimen"}},
			Ratings: []model.Rating{{TMDBID: 238, IMDBRating: dec("9.2"), IMDBVotes: str("2,000,000")}, {TMDBID: 5}},
		},
		{
			Type: model.EntitySeries,
			Titles: []model.Title{
				{ID: 1396, Type: model.EntitySeries, TitleES: "Breaking Bad", ReleaseDate: "2008-01-20", GenreIDs: model.IDList{18}, VoteAverage: 8.9, VoteCount: 9000},
			},
			Genres:  []model.Genre{{ID: 18, Name: "Drama"}},
			Ratings: []model.Rating{{TMDBID: 1396, IMDBRating: dec("9.5"), IMDBVotes: str("2,100")}},
		},
	}
}

func TestUnify(t *testing.T) {
	rows := Unify(bronzeSets()...)
	require.Len(t, rows, 3)

	gf := rows[0]
	assert.Equal(t, "movie", gf.Type)
	assert.Equal(t, "El padrino", gf.Title)
	assert.Equal(t, model.NameList{"Drama", "Crimen"}, gf.Genre, "genre names follow the genre list order")
	require.NotNil(t, gf.TMDBRating)
	assert.Equal(t, 8.7, *gf.TMDBRating)
	assert.True(t, dec("9.2").Equal(*gf.IMDBRating))
	assert.Equal(t, "2,000,000", *gf.IMDBCount)

	assert.Nil(t, rows[1].IMDBRating)
	assert.Nil(t, rows[1].IMDBCount)

	bb := rows[2]
	assert.Equal(t, "show", bb.Type)
	assert.Equal(t, "2008-01-20", bb.ReleaseDate)
}

func TestGenreNames_UnknownDropped(t *testing.T) {
	got := GenreNames(model.IDList{99, 18}, []model.Genre{{ID: 18, Name: "Drama"}})
	assert.Equal(t, model.NameList{"Drama"}, got)
	assert.Nil(t, GenreNames(nil, []model.Genre{{ID: 18, Name: "Drama"}}))
}

func TestParseVotes(t *testing.T) {
	assert.Equal(t, int64(1234), ParseVotes(str("1,234")))
	assert.Equal(t, int64(2000000), ParseVotes(str("2,000,000")))
	assert.Equal(t, int64(-1), ParseVotes(nil))
	assert.Equal(t, int64(-1), ParseVotes(str("N/A")))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "14/03/1972", FormatDate("1972-03-14"))
	assert.Equal(t, "11/11/1111", FormatDate(""))
	assert.Equal(t, "11/11/1111", FormatDate("soon"))
}

func TestEnrich(t *testing.T) {
	rows := Unify(bronzeSets()...)
	// a show listed before the movies must still come after them
	rows = append([]model.UnifiedTitle{rows[2]}, rows[:2]...)
	providers := map[model.EntityType][]model.WatchProviders{
		model.EntityMovie:  {{ID: 238, Providers: model.NameList{"SkyShowtime", "Movistar Plus+"}}},
		model.EntitySeries: {{ID: 238, Providers: model.NameList{"Wrong Type"}}},
	}

	out := Enrich(rows, providers)
	require.Len(t, out, 2, "titles without an IMDB rating are dropped")

	gf := out[0]
	assert.Equal(t, int64(238), gf.ID)
	assert.Equal(t, "14/03/1972", gf.ReleaseDate)
	assert.Equal(t, "Drama, Crimen", gf.Genre)
	assert.Equal(t, int64(2000000), gf.IMDBCount)
	assert.True(t, gf.IsPopular)
	assert.Equal(t, "SkyShowtime, Movistar Plus+", gf.WatchProviders)

	bb := out[1]
	assert.Equal(t, int64(1396), bb.ID)
	assert.Equal(t, int64(2100), bb.IMDBCount)
	assert.False(t, bb.IsPopular, "9000 TMDB votes and 2100 IMDB votes are below the bar")
	assert.Empty(t, bb.WatchProviders)
}

func TestEnrich_PopularByIMDBOnly(t *testing.T) {
	rows := []model.UnifiedTitle{{
		Type: "movie", ID: 1, Title: "Niche", TMDBRating: f64(7), TMDBCount: 50,
		IMDBRating: dec("7.5"), IMDBCount: str("10,001"),
	}}
	out := Enrich(rows, nil)
	require.Len(t, out, 1)
	assert.True(t, out[0].IsPopular)
	assert.Equal(t, "11/11/1111", out[0].ReleaseDate)
}

func TestFiles_RoundTrip(t *testing.T) {
	l := dataset.Layout{Dir: t.TempDir()}
	for _, s := range bronzeSets() {
		require.NoError(t, dataset.WriteTable(l.TopRated(s.Type), s.Titles))
		require.NoError(t, dataset.WriteTable(l.Genres(s.Type), s.Genres))
		require.NoError(t, dataset.WriteTable(l.Ratings(s.Type), s.Ratings))
	}
	require.NoError(t, dataset.WriteTable(l.WatchProviders(model.EntityMovie), []model.WatchProviders{{ID: 238, Providers: model.NameList{"Netflix"}}}))
	require.NoError(t, dataset.WriteTable[model.WatchProviders](l.WatchProviders(model.EntitySeries), nil))

	n, err := UnifyFiles(l)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = EnrichFiles(l)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out, err := dataset.ReadTable[model.EnrichedTitle](l.Enriched())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Netflix", out[0].WatchProviders)
	assert.Equal(t, "Drama, Crimen", out[0].Genre)
	assert.True(t, decimal.RequireFromString("9.2").Equal(out[0].IMDBRating))
}

func TestUnifyFiles_MissingBronze(t *testing.T) {
	_, err := UnifyFiles(dataset.Layout{Dir: t.TempDir()})
	assert.Error(t, err)
}
