package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-etl/internal/dataset"
	"github.com/sells-group/catalog-etl/internal/store"
	"github.com/sells-group/catalog-etl/pkg/omdb"
	"github.com/sells-group/catalog-etl/pkg/tmdb"
)

func layout() dataset.Layout {
	return dataset.Layout{Dir: cfg.Data.Dir}
}

func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		var pg *store.PostgresStore
		pg, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
		if err == nil {
			st = pg
		}
	default:
		st, err = store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	}
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func newTMDB() (tmdb.Client, error) {
	if err := cfg.RequireTMDB(); err != nil {
		return nil, err
	}
	return tmdb.NewClient(cfg.TMDB.Token,
		tmdb.WithBaseURL(cfg.TMDB.BaseURL),
		tmdb.WithRateLimit(cfg.TMDB.RatePerSec, 1),
		tmdb.WithMaxPages(cfg.TMDB.MaxPages),
		tmdb.WithRetry(cfg.Retry.Settings()),
		tmdb.WithCircuit(cfg.Circuit.Settings()),
	), nil
}

func newOMDB(extra ...omdb.Option) (omdb.Client, error) {
	if err := cfg.RequireOMDB(); err != nil {
		return nil, err
	}
	opts := []omdb.Option{
		omdb.WithBaseURL(cfg.OMDB.BaseURL),
		omdb.WithRateLimit(cfg.OMDB.RatePerSec, 1),
		omdb.WithRetry(cfg.Retry.Settings()),
		omdb.WithCircuit(cfg.Circuit.Settings()),
	}
	return omdb.NewClient(cfg.OMDB.APIKey, append(opts, extra...)...), nil
}
