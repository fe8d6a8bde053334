// Package composite blends per-metric index layers into a weighted composite
// score and compares two scored snapshots.
package composite

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/blockgroup-index/internal/model"
)

// ErrZeroWeight is returned when the weights sum to zero and no composite
// score is defined.
var ErrZeroWeight = eris.New("composite: total weight is zero")

// ScoreOptions tunes the scored output.
type ScoreOptions struct {
	// RetainMetrics writes each metric's parsed value onto the output feature
	// under the metric name, for tooltips that show the breakdown.
	RetainMetrics bool
}

// Score computes compositeScore = Σ(value_m × weight_m) / Σ weight_m for every
// feature of the first layer. layers[i] holds the values for metrics[i].
// Features are joined by GEOID; a geography missing from a layer, or carrying
// a non-numeric value, contributes zero. Order and geometry come from the
// first layer and extra geographies in later layers are ignored.
func Score(layers []*geojson.FeatureCollection, metrics []model.Metric, weights model.WeightSet, opts ScoreOptions) (*geojson.FeatureCollection, error) {
	if len(layers) == 0 {
		return nil, eris.New("composite: no layers")
	}
	if len(layers) != len(metrics) {
		return nil, eris.Errorf("composite: %d layers for %d metrics", len(layers), len(metrics))
	}
	for i, fc := range layers {
		if fc == nil {
			return nil, eris.Errorf("composite: layer %s is nil", metrics[i])
		}
	}

	var total float64
	for _, m := range metrics {
		total += weights.Get(m)
	}
	if total == 0 {
		return nil, ErrZeroWeight
	}

	lookups := make([]map[string]float64, len(layers))
	for i, fc := range layers {
		lookups[i] = buildLookup(fc, metrics[i])
	}

	base := layers[0]
	out := &geojson.FeatureCollection{
		BBox:     base.BBox,
		Features: make([]*geojson.Feature, 0, len(base.Features)),
	}

	extra := 1
	if opts.RetainMetrics {
		extra += len(metrics)
	}

	for _, f := range base.Features {
		if f == nil {
			continue
		}
		geoid, _ := GEOID(f)

		var sum float64
		scored := cloneFeature(f, extra)
		for i, m := range metrics {
			v := lookups[i][geoid]
			sum += v * weights.Get(m)
			if opts.RetainMetrics {
				scored.Properties[string(m)] = v
			}
		}
		scored.Properties[model.PropCompositeScore] = sum / total
		out.Features = append(out.Features, scored)
	}

	return out, nil
}

// buildLookup maps GEOID to the parsed metric value. Features without a GEOID
// cannot be joined and are skipped.
func buildLookup(fc *geojson.FeatureCollection, m model.Metric) map[string]float64 {
	lookup := make(map[string]float64, len(fc.Features))
	for _, f := range fc.Features {
		geoid, ok := GEOID(f)
		if !ok {
			continue
		}
		lookup[geoid] = valueOrZero(f.Properties[string(m)])
	}
	return lookup
}
