package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/blockgroup-index/internal/export"
	"github.com/sells-group/blockgroup-index/internal/geometry"
	"github.com/sells-group/blockgroup-index/internal/model"
	"github.com/sells-group/blockgroup-index/internal/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Compute the composite score for one city and year",
	Long: `Downloads every metric layer for a city and year, blends them into a
weighted composite score and writes the result.

Examples:
  # Equal weights, GeoJSON to stdout
  snapshot --year 2022

  # Income-heavy weighting as CSV
  snapshot --year 2013 --weights idi=60,ldi=20,pdi=10,cdi=10 --format csv --output atl.csv`,
	RunE: runSnapshot,
}

func init() {
	f := snapshotCmd.Flags()
	f.String("city", "", "city slug (default from config)")
	f.String("year", "", "census year: 2013 or 2022 (default from config)")
	addOutputFlags(snapshotCmd)
	rootCmd.AddCommand(snapshotCmd)
}

// addOutputFlags registers the flags shared by snapshot and compare.
func addOutputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("weights", "", "metric weights, e.g. idi=40,ldi=20 (unnamed metrics keep the config default)")
	f.String("format", "geojson", "output format: geojson, csv or xlsx")
	f.String("output", "", "output file path (default: stdout)")
	f.Float64("simplify", 0, "Douglas-Peucker tolerance in degrees (0 keeps full geometry)")
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
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
	year, err := yearFlag(cmd, "year", env.Initial.Year)
	if err != nil {
		return err
	}
	weights, err := weightsFlag(cmd, env.Initial.Weights)
	if err != nil {
		return err
	}

	fc, err := env.Snapshot.Fetch(ctx, snapshot.Request{City: city, Year: year, Weights: weights, RetainMetrics: true})
	if err != nil {
		return eris.Wrap(err, "no data available")
	}
	return writeOutput(cmd, fc)
}

func cityFlag(cmd *cobra.Command, def model.City) (model.City, error) {
	v, _ := cmd.Flags().GetString("city")
	if v == "" {
		return def, nil
	}
	return model.ParseCity(v)
}

func yearFlag(cmd *cobra.Command, name string, def model.Year) (model.Year, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return def, nil
	}
	return model.ParseYear(v)
}

// weightsFlag overlays --weights onto def.
func weightsFlag(cmd *cobra.Command, def model.WeightSet) (model.WeightSet, error) {
	v, _ := cmd.Flags().GetString("weights")
	return model.ApplyWeights(def, v)
}

func writeOutput(cmd *cobra.Command, fc *geojson.FeatureCollection) error {
	formatName, _ := cmd.Flags().GetString("format")
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}
	tolerance, _ := cmd.Flags().GetFloat64("simplify")
	fc = geometry.SimplifyCollection(fc, tolerance)

	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		return export.Write(cmd.OutOrStdout(), fc, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "create output file")
	}
	if err := writeAndClose(f, fc, format); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}
	zap.L().Info("snapshot written",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("features", len(fc.Features)),
	)
	return nil
}

// writeAndClose encodes fc into wc and closes it. A failed close is an
// error since buffered bytes may not have reached the disk.
func writeAndClose(wc io.WriteCloser, fc *geojson.FeatureCollection, format export.Format) error {
	if err := export.Write(wc, fc, format); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return eris.Wrap(err, "close output file")
	}
	return nil
}
