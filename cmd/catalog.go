package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/blockgroup-index/internal/model"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List cities, metrics, years and download links",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := newAppEnv(cfg)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CITY\tNAME\tSTATUS")
		for _, c := range model.Cities() {
			status := "coming soon"
			if c.Active() {
				status = "active"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", c, c.DisplayName(), status)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(out, "\nmetrics: %v\nyears:   %v\nweights: %s\n\n", model.Metrics(), model.Years(), env.Initial.Weights)

		city := env.Initial.City
		if !city.Active() {
			return nil
		}
		for _, y := range model.Years() {
			for _, d := range env.Layers.Downloads(city, y) {
				fmt.Fprintln(out, d.URL)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
