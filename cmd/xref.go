package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-etl/internal/dataset"
	"github.com/sells-group/catalog-etl/internal/match"
	"github.com/sells-group/catalog-etl/internal/model"
	"github.com/sells-group/catalog-etl/internal/store"
	"github.com/sells-group/catalog-etl/internal/xref"
	"github.com/sells-group/catalog-etl/pkg/omdb"
)

var xrefCmd = &cobra.Command{
	Use:   "xref",
	Short: "Cross-reference TMDB titles against OMDB for IMDB ratings",
	Long: "Looks up every extracted title in OMDB, accepts the returned rating when the " +
		"returned title is similar enough, and writes the OMDB_imdb_rating tables.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		entities, err := entitiesFlag(cmd)
		if err != nil {
			return err
		}
		opts, err := xrefFlags(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return withLock(layout().Lock(), func() error {
			_, err := runXref(ctx, st, entities, opts)
			return err
		})
	},
}

type xrefOptions struct {
	Policy  match.Policy
	Resume  bool
	Workers int
}

func xrefFlags(cmd *cobra.Command) (xrefOptions, error) {
	opts := xrefOptions{
		Policy:  match.Policy{Threshold: cfg.Match.Threshold, YearTolerance: cfg.Match.YearTolerance},
		Workers: cfg.Pacing.Workers,
	}
	if cmd.Flags().Changed("threshold") {
		opts.Policy.Threshold, _ = cmd.Flags().GetFloat64("threshold")
	}
	if opts.Policy.Threshold < 0 || opts.Policy.Threshold > 1 {
		return opts, eris.Errorf("threshold %v outside [0, 1]", opts.Policy.Threshold)
	}
	if cmd.Flags().Changed("workers") {
		opts.Workers, _ = cmd.Flags().GetInt("workers")
	}
	opts.Resume, _ = cmd.Flags().GetBool("resume")
	return opts, nil
}

// sourceRecords reads the extracted titles of e as resolver input.
func sourceRecords(l dataset.Layout, e model.EntityType) ([]model.SourceRecord, error) {
	titles, err := dataset.ReadTable[model.Title](l.TopRated(e))
	if err != nil {
		return nil, eris.Wrapf(err, "xref: load %s (run extract first)", e.Plural())
	}
	recs := make([]model.SourceRecord, len(titles))
	for i, t := range titles {
		if t.Type == "" {
			t.Type = e
		}
		recs[i] = t.SourceRecord()
	}
	return recs, nil
}

func writeRatings(l dataset.Layout, e model.EntityType, records []model.EnrichedRecord) error {
	rows := make([]model.Rating, len(records))
	for i, r := range records {
		rows[i] = model.RatingFromEnriched(r)
	}
	return eris.Wrapf(dataset.WriteTable(l.Ratings(e), rows), "xref: write %s ratings", e.Plural())
}

func runXref(ctx context.Context, st store.Store, entities []model.EntityType, opts xrefOptions) (*model.RunResult, error) {
	return recordStage(ctx, st, model.StageXref, opts.Policy.Threshold, func(ctx context.Context, run *model.Run) (*model.RunResult, error) {
		gate := xref.NewGate(cfg.Pacing.RatePerSec, 1, cfg.Pacing.Quota)
		client, err := newOMDB(omdb.WithGate(gate))
		if err != nil {
			return nil, err
		}
		if err := client.Authenticate(ctx); err != nil {
			return nil, eris.Wrap(err, "xref: authenticate")
		}

		l := layout()
		recs := make([][]model.SourceRecord, len(entities))
		done := make([]map[int64]model.EnrichedRecord, len(entities))
		pending := make([][]model.SourceRecord, len(entities))
		for i, e := range entities {
			if recs[i], err = sourceRecords(l, e); err != nil {
				return nil, err
			}
			pending[i] = recs[i]
			if opts.Resume {
				if done[i], err = st.LoadCheckpoints(ctx, e, opts.Policy); err != nil {
					return nil, err
				}
				pending[i] = xref.Pending(recs[i], done[i])
				zap.L().Info("xref: resuming",
					zap.String("entity", e.Plural()),
					zap.Int("checkpointed", len(recs[i])-len(pending[i])),
					zap.Int("pending", len(pending[i])),
				)
			}
		}

		resolver := xref.NewResolver(omdb.Lookup{Client: client},
			xref.WithAuditor(match.MultiAuditor{match.NewLogAuditor(nil), xref.NewStoreAuditor(st)}),
			xref.WithGate(gate),
			xref.WithBatching(cfg.Pacing.BatchSize, cfg.Pacing.BatchPause),
			xref.WithSubsetPause(cfg.Pacing.SubsetPause),
			xref.WithWorkers(opts.Workers),
			xref.WithCheckpoints(st),
			xref.WithRunID(run.ID),
		)

		results := resolver.ResolveBatches(ctx, pending, opts.Policy)

		var summary xref.Summary
		for i, e := range entities {
			merged := xref.Merge(recs[i], done[i], xref.Records(results[i]))
			if err := writeRatings(l, e, merged); err != nil {
				return summary.RunResult(), err
			}
			summary.Add(results[i]...)
		}

		fmt.Fprintln(cmdOut, formatSummary(summary))
		if gate.Remaining() == 0 {
			zap.L().Warn("xref: call quota spent; rerun with --resume to finish", zap.Int("used", gate.Used()))
		}
		return summary.RunResult(), ctx.Err()
	})
}

// formatSummary renders per-reason counts as a table.
func formatSummary(s xref.Summary) string {
	rows := make([][]string, 0, len(match.Reasons)+1)
	for _, r := range match.Reasons {
		rows = append(rows, []string{string(r), strconv.Itoa(s.Reasons[r])})
	}
	rows = append(rows, []string{"total", strconv.Itoa(s.Total)})
	return renderTable([]string{"Reason", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}

func init() {
	xrefCmd.Flags().String("entity", "all", "entity to cross-reference: movie, series or all")
	xrefCmd.Flags().Float64("threshold", 0.6, "minimum similarity ratio to accept a match (overrides match.threshold)")
	xrefCmd.Flags().Int("workers", 1, "concurrent lookups (overrides pacing.workers)")
	xrefCmd.Flags().Bool("resume", false, "skip titles already resolved at the same threshold and year tolerance")
	rootCmd.AddCommand(xrefCmd)
}
