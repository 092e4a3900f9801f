// Package extract pulls the top-rated listings, genre lists and watch
// providers from TMDB and writes them to the bronze layer.
package extract

import (
	"cmp"
	"context"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/catalog-etl/internal/dataset"
	"github.com/sells-group/catalog-etl/internal/model"
	"github.com/sells-group/catalog-etl/pkg/tmdb"
)

// Options configures an Extractor.
type Options struct {
	// Languages lists the listing languages. The first fills title_es and
	// the rest of the row; the second, if any, fills title_en.
	Languages      []string
	Region         string
	ProvidersLimit int
	Workers        int
}

// Stats summarizes one entity extraction.
type Stats struct {
	Titles     int
	Genres     int
	Providers  int
	PageErrors int
}

// Extractor reads TMDB through a tmdb.Client.
type Extractor struct {
	client tmdb.Client
	opts   Options
	log    *zap.Logger
}

// New returns an Extractor.
func New(client tmdb.Client, opts Options) *Extractor {
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"es-ES", "en-US"}
	}
	if opts.Region == "" {
		opts.Region = "ES"
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Extractor{client: client, opts: opts, log: zap.L().With(zap.String("component", "extract"))}
}

func media(e model.EntityType) tmdb.MediaType {
	return tmdb.MediaType(e.TMDBPath())
}

// Titles fetches the top-rated listing in every configured language and
// merges the passes by id, sorted by vote average then vote count, both
// descending.
func (x *Extractor) Titles(ctx context.Context, e model.EntityType) ([]model.Title, int, error) {
	primary, pageErrs := x.client.AllTopRated(ctx, media(e), x.opts.Languages[0])
	x.logPageErrors(e, x.opts.Languages[0], pageErrs)
	failed := len(pageErrs)
	if len(primary) == 0 && failed > 0 {
		return nil, failed, eris.Wrapf(pageErrs[0], "extract: top rated %s", e.Plural())
	}

	english := make(map[int64]string)
	if len(x.opts.Languages) > 1 {
		results, errs := x.client.AllTopRated(ctx, media(e), x.opts.Languages[1])
		x.logPageErrors(e, x.opts.Languages[1], errs)
		failed += len(errs)
		for _, r := range results {
			english[r.ID] = r.DisplayTitle()
		}
	}

	seen := make(map[int64]bool, len(primary))
	titles := make([]model.Title, 0, len(primary))
	for _, r := range primary {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		t := model.Title{
			ID:          r.ID,
			Type:        e,
			TitleES:     r.DisplayTitle(),
			Overview:    r.Overview,
			ReleaseDate: r.Date(),
			GenreIDs:    model.IDList(r.GenreIDs),
			VoteAverage: r.VoteAverage,
			VoteCount:   r.VoteCount,
			Popularity:  r.Popularity,
		}
		if len(x.opts.Languages) > 1 {
			t.TitleEN = english[r.ID]
		} else {
			t.TitleEN = t.TitleES
		}
		titles = append(titles, t)
	}

	slices.SortStableFunc(titles, func(a, b model.Title) int {
		if c := cmp.Compare(b.VoteAverage, a.VoteAverage); c != 0 {
			return c
		}
		return cmp.Compare(b.VoteCount, a.VoteCount)
	})
	return titles, failed, nil
}

func (x *Extractor) logPageErrors(e model.EntityType, lang string, errs []tmdb.PageError) {
	for _, pe := range errs {
		x.log.Warn("extract: page failed",
			zap.String("entity", e.Plural()),
			zap.String("language", lang),
			zap.Int("page", pe.Page),
			zap.Error(pe.Err),
		)
	}
}

// Genres fetches the genre list in the primary language.
func (x *Extractor) Genres(ctx context.Context, e model.EntityType) ([]model.Genre, error) {
	genres, err := x.client.Genres(ctx, media(e), x.opts.Languages[0])
	if err != nil {
		return nil, eris.Wrapf(err, "extract: genres %s", e.Plural())
	}
	out := make([]model.Genre, len(genres))
	for i, g := range genres {
		out[i] = model.Genre{ID: g.ID, Name: g.Name}
	}
	return out, nil
}

// Providers fetches the subscription providers of the first ProvidersLimit
// titles, in title order. A title whose lookup fails gets an empty list.
func (x *Extractor) Providers(ctx context.Context, e model.EntityType, titles []model.Title) ([]model.WatchProviders, error) {
	n := len(titles)
	if x.opts.ProvidersLimit > 0 && n > x.opts.ProvidersLimit {
		n = x.opts.ProvidersLimit
	}
	out := make([]model.WatchProviders, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.opts.Workers)
	for i := 0; i < n; i++ {
		id := titles[i].ID
		g.Go(func() error {
			names, err := x.client.WatchProviders(gctx, media(e), id, x.opts.Region)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				x.log.Warn("extract: watch providers failed", zap.Int64("id", id), zap.Error(err))
				names = nil
			}
			out[i] = model.WatchProviders{ID: id, Providers: model.NameList(names)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrapf(err, "extract: watch providers %s", e.Plural())
	}
	return out, nil
}

// Run extracts one entity type and writes its bronze tables.
func (x *Extractor) Run(ctx context.Context, l dataset.Layout, e model.EntityType) (Stats, error) {
	var st Stats

	titles, failed, err := x.Titles(ctx, e)
	st.PageErrors = failed
	if err != nil {
		return st, err
	}
	if err := dataset.WriteTable(l.TopRated(e), titles); err != nil {
		return st, eris.Wrap(err, "extract: write top rated")
	}
	st.Titles = len(titles)

	genres, err := x.Genres(ctx, e)
	if err != nil {
		return st, err
	}
	if err := dataset.WriteTable(l.Genres(e), genres); err != nil {
		return st, eris.Wrap(err, "extract: write genres")
	}
	st.Genres = len(genres)

	providers, err := x.Providers(ctx, e, titles)
	if err != nil {
		return st, err
	}
	if err := dataset.WriteTable(l.WatchProviders(e), providers); err != nil {
		return st, eris.Wrap(err, "extract: write watch providers")
	}
	st.Providers = len(providers)

	x.log.Info("extract: complete",
		zap.String("entity", e.Plural()),
		zap.Int("titles", st.Titles),
		zap.Int("genres", st.Genres),
		zap.Int("providers", st.Providers),
		zap.Int("page_errors", st.PageErrors),
	)
	return st, nil
}
