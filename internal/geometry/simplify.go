// Package geometry thins block-group polygons for map payloads and picks
// tooltip anchor points.
package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// minRingPoints is the smallest closed ring: a triangle plus the closing point.
const minRingPoints = 4

// Simplify applies Douglas-Peucker simplification with the given tolerance
// (in coordinate units) to polygons and multipolygons. Rings that would
// collapse below a triangle keep their original coordinates. Other geometry
// types, nil geometries and non-positive tolerances are returned unchanged.
func Simplify(g geom.T, tolerance float64) geom.T {
	if g == nil || tolerance <= 0 {
		return g
	}
	switch p := g.(type) {
	case *geom.Polygon:
		coords := simplifyRings(p.Coords(), tolerance)
		out, err := geom.NewPolygon(p.Layout()).SetCoords(coords)
		if err != nil {
			return g
		}
		return out.SetSRID(p.SRID())
	case *geom.MultiPolygon:
		polys := p.Coords()
		simplified := make([][][]geom.Coord, len(polys))
		for i, rings := range polys {
			simplified[i] = simplifyRings(rings, tolerance)
		}
		out, err := geom.NewMultiPolygon(p.Layout()).SetCoords(simplified)
		if err != nil {
			return g
		}
		return out.SetSRID(p.SRID())
	default:
		return g
	}
}

func simplifyRings(rings [][]geom.Coord, tolerance float64) [][]geom.Coord {
	dp := simplify.DouglasPeucker(tolerance)
	out := make([][]geom.Coord, len(rings))
	for i, ring := range rings {
		ls := make(orb.LineString, len(ring))
		for j, c := range ring {
			ls[j] = orb.Point{c.X(), c.Y()}
		}
		result, ok := dp.Simplify(ls).(orb.LineString)
		if !ok || len(result) < minRingPoints {
			out[i] = ring
			continue
		}
		coords := make([]geom.Coord, len(result))
		for j, pt := range result {
			coords[j] = geom.Coord{pt[0], pt[1]}
		}
		out[i] = coords
	}
	return out
}

// SimplifyCollection returns a copy of fc with every geometry simplified.
// Properties are shared with the input.
func SimplifyCollection(fc *geojson.FeatureCollection, tolerance float64) *geojson.FeatureCollection {
	if fc == nil || tolerance <= 0 {
		return fc
	}
	out := &geojson.FeatureCollection{
		BBox:     fc.BBox,
		Features: make([]*geojson.Feature, len(fc.Features)),
	}
	for i, f := range fc.Features {
		if f == nil {
			continue
		}
		out.Features[i] = &geojson.Feature{
			ID:         f.ID,
			BBox:       f.BBox,
			Geometry:   Simplify(f.Geometry, tolerance),
			Properties: f.Properties,
		}
	}
	return out
}
