package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-etl/internal/export"
	"github.com/sells-group/catalog-etl/internal/model"
	"github.com/sells-group/catalog-etl/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: extract, xref, transform and export",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		opts, err := xrefFlags(cmd)
		if err != nil {
			return err
		}
		formats, err := formatsFlag(cmd)
		if err != nil {
			return err
		}
		skipExtract, _ := cmd.Flags().GetBool("skip-extract")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return withLock(layout().Lock(), func() error {
			return runPipeline(ctx, st, opts, formats, skipExtract)
		})
	},
}

// runPipeline runs every stage for both entities, stopping at the first
// failing stage. Each stage is recorded as its own run.
func runPipeline(ctx context.Context, st store.Store, opts xrefOptions, formats []export.Format, skipExtract bool) error {
	entities := []model.EntityType{model.EntityMovie, model.EntitySeries}

	if !skipExtract {
		if _, err := runExtract(ctx, st, entities); err != nil {
			return err
		}
	}
	if _, err := runXref(ctx, st, entities, opts); err != nil {
		return err
	}
	if _, err := runTransform(ctx, st); err != nil {
		return err
	}
	if _, err := runExport(ctx, st, formats); err != nil {
		return err
	}
	zap.L().Info("pipeline complete", zap.String("data_dir", cfg.Data.Dir))
	return nil
}

func init() {
	runCmd.Flags().Float64("threshold", 0.6, "minimum similarity ratio to accept a match (overrides match.threshold)")
	runCmd.Flags().Int("workers", 1, "concurrent OMDB lookups (overrides pacing.workers)")
	runCmd.Flags().Bool("resume", false, "skip titles already resolved at the same threshold and year tolerance")
	runCmd.Flags().Bool("skip-extract", false, "reuse the existing bronze TMDB tables")
	runCmd.Flags().StringSlice("format", nil, "output formats: csv, jsonl, xlsx (overrides data.formats)")
	rootCmd.AddCommand(runCmd)
}
