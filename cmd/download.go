package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/blockgroup-index/internal/layers"
	"github.com/sells-group/blockgroup-index/internal/model"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Save the published metric layers for a city and year",
	Long: `Downloads the raw per-metric files from the data host into a directory,
byte for byte.

Example:
  download --year 2013 --format csv --dir ./data`,
	RunE: runDownload,
}

func init() {
	f := downloadCmd.Flags()
	f.String("city", "", "city slug (default from config)")
	f.String("year", "", "census year (default from config)")
	f.String("format", "all", "file format: csv, geojson or all")
	f.String("dir", ".", "destination directory")
	f.Int("concurrency", 4, "parallel downloads")
	rootCmd.AddCommand(downloadCmd)
}

func downloadFormats(name string) ([]layers.Format, error) {
	switch name {
	case "", "all":
		return []layers.Format{layers.FormatCSV, layers.FormatGeoJSON}, nil
	case string(layers.FormatCSV):
		return []layers.Format{layers.FormatCSV}, nil
	case string(layers.FormatGeoJSON):
		return []layers.Format{layers.FormatGeoJSON}, nil
	}
	return nil, eris.Errorf("unknown download format %q", name)
}

func runDownload(cmd *cobra.Command, _ []string) error {
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
	formatName, _ := cmd.Flags().GetString("format")
	formats, err := downloadFormats(formatName)
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("dir")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "create download dir")
	}
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	log := zap.L().With(zap.String("city", string(city)), zap.String("year", string(year)))
	out := cmd.OutOrStdout()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for _, m := range model.Metrics() {
		for _, f := range formats {
			g.Go(func() error {
				path, n, err := env.Layers.SaveLayer(gctx, city, m, year, f, dir)
				if err != nil {
					return err
				}
				log.Info("layer saved", zap.String("path", path), zap.Int64("bytes", n))
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(out, "saved %d files to %s\n", len(model.Metrics())*len(formats), dir)
	return nil
}
