package main

import (
	"math"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/sells-group/blockgroup-index/internal/config"
	"github.com/sells-group/blockgroup-index/internal/fetcher"
	"github.com/sells-group/blockgroup-index/internal/layers"
	"github.com/sells-group/blockgroup-index/internal/model"
	"github.com/sells-group/blockgroup-index/internal/monitoring"
	"github.com/sells-group/blockgroup-index/internal/snapshot"
	"github.com/sells-group/blockgroup-index/internal/viewstate"
)

// appEnv wires the data host client, orchestrator and metrics shared by
// every command.
type appEnv struct {
	Registry *prometheus.Registry
	Metrics  *monitoring.Metrics
	Layers   *layers.Client
	Snapshot *snapshot.Orchestrator
	Initial  viewstate.State
}

func newAppEnv(c *config.Config) (*appEnv, error) {
	weights, err := c.Defaults.WeightSet()
	if err != nil {
		return nil, err
	}
	city, err := model.ParseCity(c.Defaults.City)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	obs := monitoring.NewMetrics(reg)

	f := fetcher.NewHTTPFetcher(httpOptions(c.DataHost))
	lc := layers.NewClient(c.DataHost.BaseURL, f, layers.WithMetrics(obs))

	return &appEnv{
		Registry: reg,
		Metrics:  obs,
		Layers:   lc,
		Snapshot: snapshot.New(lc, snapshot.WithMetrics(obs)),
		Initial: viewstate.Initial(viewstate.ModeSingle, city,
			model.Year(c.Defaults.Year), model.Year(c.Defaults.BeforeYear), model.Year(c.Defaults.AfterYear), weights),
	}, nil
}

// httpOptions maps the data host section onto fetcher options. A positive
// rate_limit pins a fixed limiter for the configured host; adaptive_rate
// swaps it for one that tunes itself from the host's 429s.
func httpOptions(c config.DataHostConfig) fetcher.HTTPOptions {
	opts := fetcher.HTTPOptions{
		UserAgent:   c.UserAgent,
		Timeout:     c.Timeout(),
		MaxAttempts: c.MaxAttempts,
	}
	if c.RateLimit <= 0 && !c.AdaptiveRate {
		return opts
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" {
		return opts
	}

	limit, burst := fetcher.DefaultRate, fetcher.DefaultBurst
	if c.RateLimit > 0 {
		limit = rate.Limit(c.RateLimit)
		burst = int(math.Max(1, math.Ceil(c.RateLimit)))
	}
	if c.AdaptiveRate {
		opts.AdaptiveLimiters = map[string]*fetcher.AdaptiveLimiter{
			u.Host: fetcher.NewAdaptiveLimiter(u.Host, limit, burst),
		}
		return opts
	}
	opts.RateLimiters = map[string]*rate.Limiter{
		u.Host: rate.NewLimiter(limit, burst),
	}
	return opts
}
