package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/catalog-etl/internal/match"
	"github.com/sells-group/catalog-etl/internal/model"
	"github.com/sells-group/catalog-etl/internal/store"
)

var xrefTuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Replay stored verdict ratios against a range of thresholds",
	Long: "Reads the similarity ratios recorded by earlier xref runs and reports how many " +
		"candidates each threshold would accept, without calling OMDB.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		runID, _ := cmd.Flags().GetString("run")
		entity, _ := cmd.Flags().GetString("entity")
		from, _ := cmd.Flags().GetFloat64("from")
		to, _ := cmd.Flags().GetFloat64("to")
		step, _ := cmd.Flags().GetFloat64("step")
		output, _ := cmd.Flags().GetString("output")

		filter := store.VerdictFilter{RunID: runID}
		if entity != "" && entity != "all" {
			e, ok := model.ParseEntityType(entity)
			if !ok {
				return eris.Errorf("unknown entity %q (movie, series or all)", entity)
			}
			filter.EntityType = e
		}

		thresholds := match.Steps(from, to, step)
		if len(thresholds) == 0 {
			return eris.Errorf("empty threshold range %v..%v step %v", from, to, step)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ratios, err := st.Ratios(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "xref tune")
		}
		if len(ratios) == 0 {
			fmt.Fprintln(cmdOut, "No verdicts with a candidate found.")
			return nil
		}

		return writeSweep(cmdOut, match.Sweep(ratios, thresholds), output)
	},
}

func writeSweep(w io.Writer, points []match.SweepPoint, output string) error {
	switch output {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(points); err != nil {
			return eris.Wrap(err, "encode sweep")
		}
		return enc.Close()
	case "", "table":
		rows := make([][]string, len(points))
		for i, p := range points {
			rows[i] = []string{
				strconv.FormatFloat(p.Threshold, 'f', 2, 64),
				strconv.Itoa(p.Accepted),
				strconv.Itoa(p.Rejected),
			}
		}
		_, err := fmt.Fprintln(w, renderTable(
			[]string{"Threshold", "Accepted", "Rejected"}, rows,
			[]columnAlignment{alignRight, alignRight, alignRight},
		))
		return err
	default:
		return eris.Errorf("unknown output %q (table or yaml)", output)
	}
}

func init() {
	xrefTuneCmd.Flags().String("run", "", "only replay verdicts of this run")
	xrefTuneCmd.Flags().String("entity", "all", "entity to replay: movie, series or all")
	xrefTuneCmd.Flags().Float64("from", 0.5, "lowest threshold")
	xrefTuneCmd.Flags().Float64("to", 1.0, "highest threshold")
	xrefTuneCmd.Flags().Float64("step", 0.05, "threshold increment")
	xrefTuneCmd.Flags().StringP("output", "o", "table", "output format: table or yaml")
	xrefCmd.AddCommand(xrefTuneCmd)
}
