package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/catalog-etl/internal/model"
	"github.com/sells-group/catalog-etl/internal/store"
	"github.com/sells-group/catalog-etl/internal/transform"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Unify the bronze tables and build the enriched dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return withLock(layout().Lock(), func() error {
			_, err := runTransform(ctx, st)
			return err
		})
	},
}

func runTransform(ctx context.Context, st store.Store) (*model.RunResult, error) {
	return recordStage(ctx, st, model.StageTransform, 0, func(context.Context, *model.Run) (*model.RunResult, error) {
		l := layout()
		base, err := transform.UnifyFiles(l)
		if err != nil {
			return nil, err
		}
		enriched, err := transform.EnrichFiles(l)
		result := &model.RunResult{
			Total:   base,
			Matched: enriched,
			Reasons: map[string]int{"base": base, "enriched": enriched, "dropped": base - enriched},
		}
		if err != nil {
			return result, err
		}
		fmt.Fprintf(cmdOut, "base: %d rows, enriched: %d rows\n", base, enriched)
		return result, nil
	})
}

func init() {
	rootCmd.AddCommand(transformCmd)
}
