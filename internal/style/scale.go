// Package style computes choropleth colors, hover styles, tooltips and
// legends for scored block groups. Every function is pure: the renderer
// passes in a feature and pointer state and gets a style value back.
package style

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blockgroup-index/internal/model"
)

// Measure names the feature property a map colors by.
type Measure string

// Measures.
const (
	MeasureScore Measure = "score"
	MeasureDiff  Measure = "diff"
)

// ParseMeasure accepts "score" or "diff"; empty means score.
func ParseMeasure(s string) (Measure, error) {
	switch Measure(s) {
	case "", MeasureScore:
		return MeasureScore, nil
	case MeasureDiff:
		return MeasureDiff, nil
	}
	return "", eris.Errorf("style: unknown measure %q", s)
}

// Property returns the feature property holding the measure.
func (m Measure) Property() string {
	if m == MeasureDiff {
		return model.PropPercentDiff
	}
	return model.PropCompositeScore
}

// Scale returns the color scale for the measure.
func (m Measure) Scale() Scale {
	if m == MeasureDiff {
		return DiffScale()
	}
	return ScoreScale()
}

// Scale maps a value to a color by class breaks. Colors has one more entry
// than Breaks: values below Breaks[0] take Colors[0] and values at or above
// Breaks[i] take Colors[i+1].
type Scale struct {
	Breaks []float64
	Colors []string
	// Suffix is appended to legend labels, e.g. "%".
	Suffix string
}

// ScoreScale is the sequential scale for composite scores (0 to 100).
func ScoreScale() Scale {
	return Scale{
		Breaks: []float64{20, 40, 60, 80},
		Colors: []string{"#ffffb2", "#fecc5c", "#fd8d3c", "#f03b20", "#bd0026"},
	}
}

// DiffScale is the diverging scale for percent change. The middle class
// covers changes under five percent either way.
func DiffScale() Scale {
	return Scale{
		Breaks: []float64{-20, -10, -5, 5, 10, 20},
		Colors: []string{"#b2182b", "#ef8a62", "#fddbc7", "#f7f7f7", "#d1e5f0", "#67a9cf", "#2166ac"},
		Suffix: "%",
	}
}

// Class returns the index of the color class for v.
func (s Scale) Class(v float64) int {
	return sort.Search(len(s.Breaks), func(i int) bool { return s.Breaks[i] > v })
}

// Color returns the fill color for v.
func (s Scale) Color(v float64) string {
	return s.Colors[s.Class(v)]
}

// LegendEntry is one class of a legend, ordered low to high.
type LegendEntry struct {
	Label string   `json:"label"`
	Color string   `json:"color"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
}

// Legend lists the classes of s with human-readable ranges.
func Legend(s Scale) []LegendEntry {
	entries := make([]LegendEntry, len(s.Colors))
	for i, color := range s.Colors {
		e := LegendEntry{Color: color}
		switch {
		case len(s.Breaks) == 0:
			e.Label = "all"
		case i == 0:
			e.Max = &s.Breaks[0]
			e.Label = fmt.Sprintf("< %g%s", s.Breaks[0], s.Suffix)
		case i == len(s.Breaks):
			e.Min = &s.Breaks[i-1]
			e.Label = fmt.Sprintf(">= %g%s", s.Breaks[i-1], s.Suffix)
		default:
			e.Min = &s.Breaks[i-1]
			e.Max = &s.Breaks[i]
			e.Label = fmt.Sprintf("%g to %g%s", s.Breaks[i-1], s.Breaks[i], s.Suffix)
		}
		entries[i] = e
	}
	return entries
}
