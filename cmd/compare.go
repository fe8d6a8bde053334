package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/blockgroup-index/internal/snapshot"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare composite scores between two census years",
	Long: `Computes the composite score for the before and after years and writes
the after snapshot with percentDiff, the percent change per block group.
Block groups with a zero baseline report 0.

Example:
  compare --before 2013 --after 2022 --format xlsx --output change.xlsx`,
	RunE: runCompare,
}

func init() {
	f := compareCmd.Flags()
	f.String("city", "", "city slug (default from config)")
	f.String("before", "", "baseline census year (default from config)")
	f.String("after", "", "comparison census year (default from config)")
	addOutputFlags(compareCmd)
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := newAppEnv(cfg)
	if err != nil {
		return err
	}
	city, err := cityFlag(cmd, env.Initial.City)
	if err != nil {
		return err
	}
	before, err := yearFlag(cmd, "before", env.Initial.BeforeYear)
	if err != nil {
		return err
	}
	after, err := yearFlag(cmd, "after", env.Initial.AfterYear)
	if err != nil {
		return err
	}
	weights, err := weightsFlag(cmd, env.Initial.Weights)
	if err != nil {
		return err
	}

	fc, err := env.Snapshot.Compare(ctx, snapshot.CompareRequest{
		City:          city,
		BeforeYear:    before,
		AfterYear:     after,
		Weights:       weights,
		RetainMetrics: true,
	})
	if err != nil {
		return eris.Wrap(err, "no data available")
	}
	return writeOutput(cmd, fc)
}
