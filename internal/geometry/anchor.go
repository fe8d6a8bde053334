package geometry

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Point is a longitude/latitude pair.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Anchor returns the center of g's bounding box, used to place tooltips.
// It reports false for nil or empty geometries.
func Anchor(g geom.T) (Point, bool) {
	if g == nil || g.Empty() {
		return Point{}, false
	}
	b := g.Bounds()
	if b == nil || b.IsEmpty() {
		return Point{}, false
	}
	return Point{
		Lon: (b.Min(0) + b.Max(0)) / 2,
		Lat: (b.Min(1) + b.Max(1)) / 2,
	}, true
}

// CollectionExtent returns the bounds of every feature geometry in fc.
func CollectionExtent(fc *geojson.FeatureCollection) *geom.Bounds {
	if fc == nil {
		return nil
	}
	gs := make([]geom.T, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f != nil {
			gs = append(gs, f.Geometry)
		}
	}
	return Extent(gs...)
}

// Extent returns the combined bounds of geometries, skipping nil and empty
// ones. The result is nil when nothing contributes.
func Extent(gs ...geom.T) *geom.Bounds {
	var ext *geom.Bounds
	for _, g := range gs {
		if g == nil || g.Empty() {
			continue
		}
		if ext == nil {
			ext = g.Bounds().Clone()
			continue
		}
		ext.Extend(g)
	}
	return ext
}
