package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-etl/internal/config"
)

var cfg *config.Config

// cmdOut receives command output meant for the user; tests swap it.
var cmdOut io.Writer = os.Stdout

var rootCmd = &cobra.Command{
	Use:   "catalog-etl",
	Short: "Movie and show catalog enrichment pipeline",
	Long:  "Extracts top-rated movies and shows from TMDB, cross-references each title against OMDB for IMDB ratings, and publishes the unified dataset as csv, jsonl and xlsx.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
			c.Data.Dir = dir
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("data-dir", "", "data directory (overrides data.dir)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
