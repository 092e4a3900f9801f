package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/catalog-etl/internal/model"
	"github.com/sells-group/catalog-etl/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline run history",
	Long:  "Commands for listing, viewing, and summarizing recorded stage runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stage runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		stage, _ := cmd.Flags().GetString("stage")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Stage:  model.Stage(stage),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmdOut, "No runs found.")
			return nil
		}

		formatRunsList(cmdOut, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(cmdOut)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics per stage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(cmdOut, computeRunStats(runs))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().String("stage", "", "filter by stage (extract, xref, transform, export)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().Int("limit", 1000, "number of most recent runs to aggregate")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// stageStats aggregates the runs of one stage.
type stageStats struct {
	Stage      model.Stage
	Total      int
	Complete   int
	Failed     int
	Running    int
	AvgDurSecs float64
	// MatchRate is matched/total over completed xref runs.
	MatchRate float64
}

// computeRunStats aggregates runs per stage, in pipeline order.
func computeRunStats(runs []model.Run) []stageStats {
	order := []model.Stage{model.StageExtract, model.StageXref, model.StageTransform, model.StageExport}
	byStage := make(map[model.Stage]*stageStats, len(order))
	durs := make(map[model.Stage]int64)
	var total, matched int

	for _, r := range runs {
		s, ok := byStage[r.Stage]
		if !ok {
			s = &stageStats{Stage: r.Stage}
			byStage[r.Stage] = s
		}
		s.Total++
		switch r.Status {
		case model.RunStatusComplete:
			s.Complete++
			if r.Result != nil {
				durs[r.Stage] += r.Result.Duration
				if r.Stage == model.StageXref {
					total += r.Result.Total
					matched += r.Result.Matched
				}
			}
		case model.RunStatusFailed:
			s.Failed++
		default:
			s.Running++
		}
	}

	out := make([]stageStats, 0, len(byStage))
	for _, st := range order {
		s, ok := byStage[st]
		if !ok {
			continue
		}
		if s.Complete > 0 {
			s.AvgDurSecs = float64(durs[st]) / 1000 / float64(s.Complete)
		}
		if st == model.StageXref && total > 0 {
			s.MatchRate = float64(matched) / float64(total)
		}
		out = append(out, *s)
	}
	return out
}

// formatRunsList writes a table of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		threshold := ""
		if r.Stage == model.StageXref {
			threshold = strconv.FormatFloat(r.Threshold, 'f', 2, 64)
		}
		var counts, reasons, dur string
		if r.Result != nil {
			counts = fmt.Sprintf("%d/%d", r.Result.Matched, r.Result.Total)
			reasons = formatReasons(r.Result.Reasons)
			dur = (time.Duration(r.Result.Duration) * time.Millisecond).Round(time.Second).String()
		}
		rows[i] = []string{
			truncateID(r.ID),
			string(r.Stage),
			threshold,
			string(r.Status),
			counts,
			reasons,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		}
	}
	_, _ = fmt.Fprintln(out, renderTable(
		[]string{"ID", "Stage", "Threshold", "Status", "Matched", "Reasons", "Created", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
	))
}

// formatRunStats writes per-stage stats to w.
func formatRunStats(out io.Writer, stats []stageStats) {
	rows := make([][]string, len(stats))
	for i, s := range stats {
		rate := ""
		if s.Stage == model.StageXref {
			rate = fmt.Sprintf("%.1f%%", s.MatchRate*100)
		}
		rows[i] = []string{
			string(s.Stage),
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Complete),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Running),
			fmt.Sprintf("%.1fs", s.AvgDurSecs),
			rate,
		}
	}
	_, _ = fmt.Fprintln(out, renderTable(
		[]string{"Stage", "Runs", "Complete", "Failed", "Running", "Avg duration", "Match rate"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
}

// formatReasons renders a reason map as "a=1 b=2", sorted by key.
func formatReasons(reasons map[string]int) string {
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.Itoa(reasons[k])
	}
	return strings.Join(parts, " ")
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
