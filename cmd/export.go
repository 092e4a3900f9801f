package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/catalog-etl/internal/export"
	"github.com/sells-group/catalog-etl/internal/model"
	"github.com/sells-group/catalog-etl/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Publish the enriched dataset to the gold layer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		formats, err := formatsFlag(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return withLock(layout().Lock(), func() error {
			_, err := runExport(ctx, st, formats)
			return err
		})
	},
}

// formatsFlag parses --format, falling back to data.formats.
func formatsFlag(cmd *cobra.Command) ([]export.Format, error) {
	names := cfg.Data.Formats
	if cmd.Flags().Changed("format") {
		names, _ = cmd.Flags().GetStringSlice("format")
	}
	return parseFormats(names)
}

func parseFormats(names []string) ([]export.Format, error) {
	out := make([]export.Format, 0, len(names))
	seen := make(map[export.Format]bool, len(names))
	for _, n := range names {
		f, err := export.ParseFormat(n)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

func runExport(ctx context.Context, st store.Store, formats []export.Format) (*model.RunResult, error) {
	return recordStage(ctx, st, model.StageExport, 0, func(context.Context, *model.Run) (*model.RunResult, error) {
		paths, err := export.Files(layout(), formats...)
		result := &model.RunResult{Total: len(formats), Matched: len(paths)}
		if err != nil {
			return result, err
		}
		for _, p := range paths {
			fmt.Fprintln(cmdOut, p)
		}
		return result, nil
	})
}

func init() {
	exportCmd.Flags().StringSlice("format", nil, "output formats: csv, jsonl, xlsx (overrides data.formats)")
	rootCmd.AddCommand(exportCmd)
}
