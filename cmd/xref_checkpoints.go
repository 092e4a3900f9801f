package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-etl/internal/dataset"
	"github.com/sells-group/catalog-etl/internal/match"
	"github.com/sells-group/catalog-etl/internal/model"
)

var xrefCheckpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Manage stored xref resolutions used by --resume",
}

var xrefCheckpointsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Seed checkpoints from existing OMDB_imdb_rating tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		entities, err := entitiesFlag(cmd)
		if err != nil {
			return err
		}
		policy := match.Policy{Threshold: cfg.Match.Threshold, YearTolerance: cfg.Match.YearTolerance}
		if cmd.Flags().Changed("threshold") {
			policy.Threshold, _ = cmd.Flags().GetFloat64("threshold")
		}
		if cmd.Flags().Changed("year-tolerance") {
			policy.YearTolerance, _ = cmd.Flags().GetInt("year-tolerance")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		l := layout()
		for _, e := range entities {
			cps, err := ratingCheckpoints(l, e, policy)
			if err != nil {
				return err
			}
			n, err := st.SaveCheckpoints(ctx, cps)
			if err != nil {
				return eris.Wrapf(err, "import %s checkpoints", e.Plural())
			}
			zap.L().Info("checkpoints imported", zap.String("entity", e.Plural()), zap.Int("count", n))
			fmt.Fprintf(cmdOut, "%s: %d checkpoints at threshold %.2f, year tolerance %d\n",
				e.Plural(), n, policy.Threshold, policy.YearTolerance)
		}
		return nil
	},
}

var xrefCheckpointsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete stored checkpoints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		entity, _ := cmd.Flags().GetString("entity")

		var e model.EntityType
		if entity != "" && entity != "all" {
			var ok bool
			if e, ok = model.ParseEntityType(entity); !ok {
				return eris.Errorf("unknown entity %q (movie, series or all)", entity)
			}
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.ClearCheckpoints(ctx, e)
		if err != nil {
			return eris.Wrap(err, "clear checkpoints")
		}
		fmt.Fprintf(cmdOut, "cleared %d checkpoints\n", n)
		return nil
	},
}

// ratingCheckpoints turns a written ratings table back into checkpoints
// stamped with the policy the table was resolved under.
func ratingCheckpoints(l dataset.Layout, e model.EntityType, policy match.Policy) ([]model.Checkpoint, error) {
	rows, err := dataset.ReadTable[model.Rating](l.Ratings(e))
	if err != nil {
		return nil, eris.Wrapf(err, "read %s ratings", e.Plural())
	}
	now := time.Now().UTC()
	cps := make([]model.Checkpoint, len(rows))
	for i, r := range rows {
		cps[i] = model.Checkpoint{
			EntityType:    e,
			CatalogID:     r.TMDBID,
			Threshold:     policy.Threshold,
			YearTolerance: policy.YearTolerance,
			Record:        model.EnrichedRecord{CatalogID: r.TMDBID, RatingValue: r.IMDBRating, VoteCount: r.IMDBVotes},
			CreatedAt:     now,
		}
	}
	return cps, nil
}

func init() {
	xrefCheckpointsImportCmd.Flags().String("entity", "all", "entity to import: movie, series or all")
	xrefCheckpointsImportCmd.Flags().Float64("threshold", 0.6, "threshold the ratings were resolved at (overrides match.threshold)")
	xrefCheckpointsImportCmd.Flags().Int("year-tolerance", -1, "year tolerance the ratings were resolved at, -1 for none (overrides match.year_tolerance)")
	xrefCheckpointsClearCmd.Flags().String("entity", "all", "entity to clear: movie, series or all")

	xrefCheckpointsCmd.AddCommand(xrefCheckpointsImportCmd)
	xrefCheckpointsCmd.AddCommand(xrefCheckpointsClearCmd)
	xrefCmd.AddCommand(xrefCheckpointsCmd)
}
