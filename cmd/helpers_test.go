package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-etl/internal/config"
	"github.com/sells-group/catalog-etl/internal/dataset"
	"github.com/sells-group/catalog-etl/internal/model"
	"github.com/sells-group/catalog-etl/internal/store"
)

// useTestConfig points the package config at a temp data dir and captures
// command output. It restores the previous state on cleanup.
func useTestConfig(t *testing.T, omdbURL string) *bytes.Buffer {
	t.Helper()
	dir := t.TempDir()

	prevCfg, prevOut := cfg, cmdOut
	t.Cleanup(func() { cfg, cmdOut = prevCfg, prevOut })

	cfg = &config.Config{
		OMDB:    config.OMDBConfig{APIKey: "key", BaseURL: omdbURL + "/"},
		Match:   config.MatchConfig{Threshold: 0.6, YearTolerance: -1},
		Pacing:  config.PacingConfig{Quota: 100, Workers: 1},
		Retry:   config.RetryConfig{MaxAttempts: 1},
		Circuit: config.CircuitConfig{FailureThreshold: 5},
		Data:    config.DataConfig{Dir: dir, Formats: []string{"csv"}},
		Store:   config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "catalog.db")},
	}
	buf := &bytes.Buffer{}
	cmdOut = buf
	return buf
}

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := initStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

// omdbServer answers title lookups for a fixed catalog and counts them.
func omdbServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("apikey") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"Response":"False","Error":"Invalid API key!"}`))
			return
		}
		title := q.Get("t")
		if title != "" && hits != nil {
			hits.Add(1)
		}
		switch title {
		case "The Matrix":
			w.Write([]byte(`{"Title":"The Matrix","Year":"1999","Type":"movie","imdbRating":"8.7","imdbVotes":"2,000,000","Response":"True"}`))
		case "Dark":
			w.Write([]byte(`{"Title":"Dark","Year":"2017–2020","Type":"series","imdbRating":"8.7","imdbVotes":"450,000","Response":"True"}`))
		case "":
			w.Write([]byte(`{"Response":"False","Error":"No movie title provided."}`))
		default:
			w.Write([]byte(`{"Response":"False","Error":"Movie not found!"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeBronze writes a small TMDB extract for both entities.
func writeBronze(t *testing.T) {
	t.Helper()
	l := layout()
	require.NoError(t, dataset.WriteTable(l.TopRated(model.EntityMovie), []model.Title{
		{ID: 603, Type: model.EntityMovie, TitleES: "Matrix", TitleEN: "The Matrix", ReleaseDate: "1999-03-30", GenreIDs: model.IDList{28}, VoteAverage: 8.2, VoteCount: 25000},
		{ID: 7, Type: model.EntityMovie, TitleES: "Inexistente", TitleEN: "Nowhere To Be Found", VoteAverage: 6.0, VoteCount: 10},
	}))
	require.NoError(t, dataset.WriteTable(l.TopRated(model.EntitySeries), []model.Title{
		{ID: 70523, Type: model.EntitySeries, TitleES: "Dark", TitleEN: "Dark", ReleaseDate: "2017-12-01", GenreIDs: model.IDList{18}, VoteAverage: 8.4, VoteCount: 6000},
	}))
	require.NoError(t, dataset.WriteTable(l.Genres(model.EntityMovie), []model.Genre{{ID: 28, Name: "Acción"}}))
	require.NoError(t, dataset.WriteTable(l.Genres(model.EntitySeries), []model.Genre{{ID: 18, Name: "Drama"}}))
	require.NoError(t, dataset.WriteTable(l.WatchProviders(model.EntityMovie), []model.WatchProviders{{ID: 603, Providers: model.NameList{"Netflix"}}}))
	require.NoError(t, dataset.WriteTable(l.WatchProviders(model.EntitySeries), []model.WatchProviders{{ID: 70523, Providers: model.NameList{"Netflix"}}}))
}
