package composite

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/blockgroup-index/internal/model"
)

// GEOID returns the feature's GEOID property as a string. Numeric GEOIDs are
// formatted without exponent or trailing zeros so that 130890001001 and
// "130890001001" join.
func GEOID(f *geojson.Feature) (string, bool) {
	if f == nil || f.Properties == nil {
		return "", false
	}
	v, ok := f.Properties[model.PropGEOID]
	if !ok || v == nil {
		return "", false
	}
	switch id := v.(type) {
	case string:
		return id, true
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case json.Number:
		return id.String(), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	default:
		return fmt.Sprint(id), true
	}
}

// ParseNumber converts a property value to a finite float. The boolean is
// false when the value is missing or not numeric.
func ParseNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// valueOrZero is ParseNumber with missing and malformed values read as zero.
func valueOrZero(v any) float64 {
	f, _ := ParseNumber(v)
	return f
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

// cloneFeature copies a feature's properties so derived values never leak
// into the input collection. Geometry is shared and treated as read-only.
func cloneFeature(f *geojson.Feature, extra int) *geojson.Feature {
	props := make(map[string]interface{}, len(f.Properties)+extra)
	for k, v := range f.Properties {
		props[k] = v
	}
	return &geojson.Feature{
		ID:         f.ID,
		BBox:       f.BBox,
		Geometry:   f.Geometry,
		Properties: props,
	}
}
