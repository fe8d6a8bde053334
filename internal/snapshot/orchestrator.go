// Package snapshot fetches every metric layer for a city and year in
// parallel and turns them into composite-scored snapshots and comparisons.
package snapshot

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/blockgroup-index/internal/composite"
	"github.com/sells-group/blockgroup-index/internal/model"
	"github.com/sells-group/blockgroup-index/internal/monitoring"
)

// Snapshot kinds used as metric labels.
const (
	KindSingle  = "single"
	KindCompare = "compare"
)

// LayerSource loads one metric layer.
type LayerSource interface {
	FetchLayer(ctx context.Context, city model.City, metric model.Metric, year model.Year) (*geojson.FeatureCollection, error)
}

// Request identifies one snapshot.
type Request struct {
	City    model.City
	Year    model.Year
	Weights model.WeightSet
	// RetainMetrics keeps each metric's value on the scored features.
	RetainMetrics bool
}

// CompareRequest identifies a two-period comparison.
type CompareRequest struct {
	City          model.City
	BeforeYear    model.Year
	AfterYear     model.Year
	Weights       model.WeightSet
	RetainMetrics bool
}

// Orchestrator fans out layer fetches and assembles the results.
type Orchestrator struct {
	source  LayerSource
	metrics []model.Metric
	obs     *monitoring.Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records snapshot outcomes.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *Orchestrator) { o.obs = m }
}

// New creates an Orchestrator over all metrics in canonical order.
func New(source LayerSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:  source,
		metrics: model.Metrics(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Fetch downloads every metric layer concurrently and scores them. The
// snapshot fails as a whole if any single layer fails; the first error
// cancels the remaining requests. Nothing is retried here.
func (o *Orchestrator) Fetch(ctx context.Context, req Request) (*geojson.FeatureCollection, error) {
	fc, err := o.fetch(ctx, req)
	o.obs.ObserveSnapshot(KindSingle, err)
	return fc, err
}

func (o *Orchestrator) fetch(ctx context.Context, req Request) (*geojson.FeatureCollection, error) {
	log := zap.L().With(
		zap.String("city", string(req.City)),
		zap.String("year", string(req.Year)),
	)

	if err := req.Weights.Validate(); err != nil {
		return nil, err
	}
	if req.Weights.Total() == 0 {
		log.Info("snapshot skipped: all weights are zero")
		return nil, composite.ErrZeroWeight
	}

	layers := make([]*geojson.FeatureCollection, len(o.metrics))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range o.metrics {
		g.Go(func() error {
			fc, err := o.source.FetchLayer(gctx, req.City, m, req.Year)
			if err != nil {
				return eris.Wrapf(err, "snapshot: layer %s", m)
			}
			layers[i] = fc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() == nil {
			log.Error("snapshot fetch failed", zap.Error(err))
		}
		return nil, err
	}

	return composite.Score(layers, o.metrics, req.Weights, composite.ScoreOptions{RetainMetrics: req.RetainMetrics})
}

// Compare fetches the before and after snapshots concurrently and returns
// the after snapshot annotated with percentDiff. Either side failing fails
// the comparison.
func (o *Orchestrator) Compare(ctx context.Context, req CompareRequest) (*geojson.FeatureCollection, error) {
	fc, err := o.compare(ctx, req)
	o.obs.ObserveSnapshot(KindCompare, err)
	return fc, err
}

func (o *Orchestrator) compare(ctx context.Context, req CompareRequest) (*geojson.FeatureCollection, error) {
	var before, after *geojson.FeatureCollection

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fc, err := o.fetch(gctx, Request{City: req.City, Year: req.BeforeYear, Weights: req.Weights, RetainMetrics: req.RetainMetrics})
		if err != nil {
			return eris.Wrapf(err, "snapshot: before %s", req.BeforeYear)
		}
		before = fc
		return nil
	})
	g.Go(func() error {
		fc, err := o.fetch(gctx, Request{City: req.City, Year: req.AfterYear, Weights: req.Weights, RetainMetrics: req.RetainMetrics})
		if err != nil {
			return eris.Wrapf(err, "snapshot: after %s", req.AfterYear)
		}
		after = fc
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return composite.Diff(before, after)
}
