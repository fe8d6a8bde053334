package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/blockgroup-index/internal/server"
	"github.com/sells-group/blockgroup-index/internal/session"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve snapshots, comparisons and map sessions over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := newAppEnv(cfg)
		if err != nil {
			return err
		}

		sessions := session.NewManager(env.Snapshot, env.Initial,
			session.WithMaxSessions(cfg.Server.MaxSessions),
			session.WithMetrics(env.Metrics),
		)
		defer sessions.Close()

		if idle := time.Duration(cfg.Server.SessionIdleMins) * time.Minute; idle > 0 {
			go sessions.RunSweeper(ctx, time.Minute, idle)
		}

		srv := server.New(env.Snapshot, env.Layers, sessions, server.Options{
			Defaults: server.Defaults{
				City:       env.Initial.City,
				Year:       env.Initial.Year,
				BeforeYear: env.Initial.BeforeYear,
				AfterYear:  env.Initial.AfterYear,
				Weights:    env.Initial.Weights,
			},
			CORSOrigins: cfg.Server.CORSOrigins,
			Gatherer:    env.Registry,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		zap.L().Info("data host",
			zap.String("base_url", env.Layers.BaseURL()),
			zap.String("default_city", string(env.Initial.City)),
			zap.Bool("city_active", env.Initial.City.Active()),
		)
		return srv.Run(ctx, fmt.Sprintf(":%d", port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
