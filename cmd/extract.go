package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/catalog-etl/internal/extract"
	"github.com/sells-group/catalog-etl/internal/model"
	"github.com/sells-group/catalog-etl/internal/store"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Pull top-rated movies and shows from TMDB into the bronze layer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		entities, err := entitiesFlag(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return withLock(layout().Lock(), func() error {
			_, err := runExtract(ctx, st, entities)
			return err
		})
	},
}

func runExtract(ctx context.Context, st store.Store, entities []model.EntityType) (*model.RunResult, error) {
	return recordStage(ctx, st, model.StageExtract, 0, func(ctx context.Context, _ *model.Run) (*model.RunResult, error) {
		client, err := newTMDB()
		if err != nil {
			return nil, err
		}
		if err := client.Authenticate(ctx); err != nil {
			return nil, eris.Wrap(err, "extract: authenticate")
		}

		x := extract.New(client, extract.Options{
			Languages:      cfg.TMDB.Languages,
			Region:         cfg.TMDB.Region,
			ProvidersLimit: cfg.TMDB.ProvidersLimit,
		})

		result := &model.RunResult{Reasons: map[string]int{}}
		for _, e := range entities {
			stats, err := x.Run(ctx, layout(), e)
			result.Reasons["page_errors"] += stats.PageErrors
			if err != nil {
				return result, err
			}
			result.Total += stats.Titles
			result.Reasons[e.Plural()] = stats.Titles
			fmt.Fprintf(cmdOut, "%s: %d titles, %d genres, %d provider rows\n",
				e.Plural(), stats.Titles, stats.Genres, stats.Providers)
		}
		return result, nil
	})
}

// entitiesFlag parses --entity: movie, series (or show/tv) or all.
func entitiesFlag(cmd *cobra.Command) ([]model.EntityType, error) {
	v, _ := cmd.Flags().GetString("entity")
	return parseEntities(v)
}

func parseEntities(v string) ([]model.EntityType, error) {
	if v == "" || v == "all" {
		return []model.EntityType{model.EntityMovie, model.EntitySeries}, nil
	}
	e, ok := model.ParseEntityType(v)
	if !ok {
		return nil, eris.Errorf("unknown entity %q (movie, series or all)", v)
	}
	return []model.EntityType{e}, nil
}

func init() {
	extractCmd.Flags().String("entity", "all", "entity to extract: movie, series or all")
	rootCmd.AddCommand(extractCmd)
}
