package composite

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/blockgroup-index/internal/model"
)

// ErrNoSnapshot is returned when either side of a comparison is missing.
var ErrNoSnapshot = eris.New("composite: snapshot unavailable")

// Diff annotates every feature of after with percentDiff, the percent change
// of compositeScore relative to the before feature with the same GEOID,
// rounded to two decimals. Order and geometry come from after.
//
// percentDiff is zero when the GEOID is absent from before, when either score
// is not numeric, or when the before score is zero.
func Diff(before, after *geojson.FeatureCollection) (*geojson.FeatureCollection, error) {
	if before == nil || after == nil {
		return nil, ErrNoSnapshot
	}

	prior := make(map[string]*geojson.Feature, len(before.Features))
	for _, f := range before.Features {
		if geoid, ok := GEOID(f); ok {
			prior[geoid] = f
		}
	}

	out := &geojson.FeatureCollection{
		BBox:     after.BBox,
		Features: make([]*geojson.Feature, 0, len(after.Features)),
	}
	for _, f := range after.Features {
		if f == nil {
			continue
		}
		diffed := cloneFeature(f, 1)
		var pct float64
		if geoid, ok := GEOID(f); ok {
			if b := prior[geoid]; b != nil {
				pct = PercentChange(b.Properties[model.PropCompositeScore], f.Properties[model.PropCompositeScore])
			}
		}
		diffed.Properties[model.PropPercentDiff] = pct
		out.Features = append(out.Features, diffed)
	}

	return out, nil
}

// PercentChange returns round2((after-before)/before*100). It returns zero
// when either value is not numeric or when before is zero, including the
// case where a geography grows from a zero baseline.
func PercentChange(before, after any) float64 {
	b, ok := ParseNumber(before)
	if !ok {
		return 0
	}
	a, ok := ParseNumber(after)
	if !ok {
		return 0
	}
	if b == 0 {
		return 0
	}
	return round2((a - b) / b * 100)
}
