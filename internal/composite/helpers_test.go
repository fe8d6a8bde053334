package composite

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/blockgroup-index/internal/model"
)

// layer builds a single-metric collection from GEOID/value pairs in order.
func layer(m model.Metric, pairs ...any) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{}
	for i := 0; i+1 < len(pairs); i += 2 {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{float64(i), float64(i)}),
			Properties: map[string]interface{}{
				model.PropGEOID: pairs[i],
				string(m):       pairs[i+1],
			},
		})
	}
	return fc
}

// scored builds a collection that already carries composite scores.
func scored(pairs ...any) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{}
	for i := 0; i+1 < len(pairs); i += 2 {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{float64(i), 0}),
			Properties: map[string]interface{}{
				model.PropGEOID:          pairs[i],
				model.PropCompositeScore: pairs[i+1],
			},
		})
	}
	return fc
}

func geoids(fc *geojson.FeatureCollection) []string {
	out := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		id, _ := GEOID(f)
		out = append(out, id)
	}
	return out
}

func prop(fc *geojson.FeatureCollection, i int, key string) float64 {
	v, _ := fc.Features[i].Properties[key].(float64)
	return v
}
