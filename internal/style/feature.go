package style

import (
	"fmt"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/blockgroup-index/internal/composite"
	"github.com/sells-group/blockgroup-index/internal/geometry"
	"github.com/sells-group/blockgroup-index/internal/model"
)

// Style is the path style of one rendered feature.
type Style struct {
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	DashArray   string  `json:"dashArray,omitempty"`
}

// Value reads the measure from a feature. Missing or non-numeric values
// read as zero.
func Value(f *geojson.Feature, m Measure) float64 {
	if f == nil {
		return 0
	}
	v, _ := composite.ParseNumber(f.Properties[m.Property()])
	return v
}

// FeatureStyle returns the resting style of a feature.
func FeatureStyle(f *geojson.Feature, m Measure) Style {
	return Style{
		FillColor:   m.Scale().Color(Value(f, m)),
		FillOpacity: 0.7,
		Color:       "#ffffff",
		Weight:      1,
		DashArray:   "3",
	}
}

// Highlight returns the hover style derived from a resting style.
func Highlight(s Style) Style {
	s.Weight = 3
	s.Color = "#666666"
	s.DashArray = ""
	s.FillOpacity = 0.9
	return s
}

// Reset returns the style a feature goes back to when the pointer leaves.
func Reset(f *geojson.Feature, m Measure) Style {
	return FeatureStyle(f, m)
}

// StyleFor returns the style for a feature given whether it is hovered.
func StyleFor(f *geojson.Feature, m Measure, hovered bool) Style {
	if hovered {
		return Highlight(FeatureStyle(f, m))
	}
	return Reset(f, m)
}

// Tooltip is the hover card for one block group.
type Tooltip struct {
	GEOID  string          `json:"geoid"`
	Lines  []string        `json:"lines"`
	Anchor *geometry.Point `json:"anchor,omitempty"`
}

// TooltipFor formats the composite score, any per-metric values present on
// the feature, and the percent change when the measure is diff.
func TooltipFor(f *geojson.Feature, m Measure) Tooltip {
	geoid, _ := composite.GEOID(f)
	tt := Tooltip{GEOID: geoid}
	if f == nil {
		return tt
	}

	tt.Lines = append(tt.Lines, fmt.Sprintf("Composite score: %.2f", Value(f, MeasureScore)))
	for _, metric := range model.Metrics() {
		if v, ok := composite.ParseNumber(f.Properties[string(metric)]); ok {
			tt.Lines = append(tt.Lines, fmt.Sprintf("%s: %.2f", metric, v))
		}
	}
	if m == MeasureDiff {
		tt.Lines = append(tt.Lines, fmt.Sprintf("Change: %+.2f%%", Value(f, MeasureDiff)))
	}

	if pt, ok := geometry.Anchor(f.Geometry); ok {
		tt.Anchor = &pt
	}
	return tt
}

// Annotate returns a copy of fc with simplestyle "fill" and "fill-opacity"
// properties set from the measure, for renderers that read them directly.
func Annotate(fc *geojson.FeatureCollection, m Measure) *geojson.FeatureCollection {
	if fc == nil {
		return nil
	}
	out := &geojson.FeatureCollection{
		BBox:     fc.BBox,
		Features: make([]*geojson.Feature, 0, len(fc.Features)),
	}
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		s := FeatureStyle(f, m)
		props := make(map[string]interface{}, len(f.Properties)+2)
		for k, v := range f.Properties {
			props[k] = v
		}
		props["fill"] = s.FillColor
		props["fill-opacity"] = s.FillOpacity
		out.Features = append(out.Features, &geojson.Feature{
			ID:         f.ID,
			BBox:       f.BBox,
			Geometry:   f.Geometry,
			Properties: props,
		})
	}
	return out
}
