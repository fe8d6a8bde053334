package composite

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-geom/encoding/geojson"
)

func TestGEOID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		props  map[string]interface{}
		want   string
		wantOK bool
	}{
		{"string", map[string]interface{}{"GEOID": "130890001001"}, "130890001001", true},
		{"float", map[string]interface{}{"GEOID": 130890001001.0}, "130890001001", true},
		{"json number", map[string]interface{}{"GEOID": json.Number("42")}, "42", true},
		{"int", map[string]interface{}{"GEOID": 7}, "7", true},
		{"missing", map[string]interface{}{"OTHER": "x"}, "", false},
		{"null", map[string]interface{}{"GEOID": nil}, "", false},
		{"no properties", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := GEOID(&geojson.Feature{Properties: tt.props})
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := GEOID(nil)
	assert.False(t, ok)
}

func TestParseNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     any
		want   float64
		wantOK bool
	}{
		{"float", 12.5, 12.5, true},
		{"int", 3, 3, true},
		{"string", " 7.25 ", 7.25, true},
		{"json number", json.Number("1e2"), 100, true},
		{"bad string", "n/a", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
		{"nan", math.NaN(), 0, false},
		{"inf string", "Inf", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNumber(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRound2(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 33.33, round2(33.3333), 1e-9)
	assert.InDelta(t, 66.67, round2(66.6666), 1e-9)
	assert.InDelta(t, -60.0, round2(-60.0), 1e-9)
	assert.False(t, math.Signbit(round2(-0.001)))
}
