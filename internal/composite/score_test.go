package composite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/blockgroup-index/internal/model"
)

func fourLayers() []*geojson.FeatureCollection {
	return []*geojson.FeatureCollection{
		layer(model.MetricIDI, "A", 80.0, "B", 10.0),
		layer(model.MetricLDI, "A", 60.0, "B", 20.0),
		layer(model.MetricPDI, "A", 40.0, "B", 30.0),
		layer(model.MetricCDI, "A", 20.0, "B", 40.0),
	}
}

func TestScoreEqualWeights(t *testing.T) {
	t.Parallel()

	out, err := Score(fourLayers(), model.Metrics(), model.DefaultWeights(), ScoreOptions{})
	require.NoError(t, err)
	require.Len(t, out.Features, 2)

	assert.InDelta(t, 50.0, prop(out, 0, model.PropCompositeScore), 1e-9)
	assert.InDelta(t, 25.0, prop(out, 1, model.PropCompositeScore), 1e-9)
}

func TestScoreWeightedFormula(t *testing.T) {
	t.Parallel()

	ws := model.WeightSet{model.MetricIDI: 3, model.MetricLDI: 1, model.MetricPDI: 0, model.MetricCDI: 1.5}
	out, err := Score(fourLayers(), model.Metrics(), ws, ScoreOptions{})
	require.NoError(t, err)

	want := (80*3 + 60*1 + 40*0 + 20*1.5) / 5.5
	assert.InDelta(t, want, prop(out, 0, model.PropCompositeScore), 1e-9)
}

func TestScoreWeightsNeedNotSumTo100(t *testing.T) {
	t.Parallel()

	small := model.WeightSet{model.MetricIDI: 1, model.MetricLDI: 1, model.MetricPDI: 1, model.MetricCDI: 1}
	a, err := Score(fourLayers(), model.Metrics(), small, ScoreOptions{})
	require.NoError(t, err)
	b, err := Score(fourLayers(), model.Metrics(), model.DefaultWeights(), ScoreOptions{})
	require.NoError(t, err)

	assert.InDelta(t, prop(b, 0, model.PropCompositeScore), prop(a, 0, model.PropCompositeScore), 1e-9)
}

func TestScoreZeroWeight(t *testing.T) {
	t.Parallel()

	zero := model.WeightSet{model.MetricIDI: 0, model.MetricLDI: 0, model.MetricPDI: 0, model.MetricCDI: 0}
	out, err := Score(fourLayers(), model.Metrics(), zero, ScoreOptions{})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrZeroWeight)

	out, err = Score(fourLayers(), model.Metrics(), model.WeightSet{}, ScoreOptions{})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrZeroWeight)
}

func TestScoreBaseOrderAndMissingGeographies(t *testing.T) {
	t.Parallel()

	layers := []*geojson.FeatureCollection{
		layer(model.MetricIDI, "C", 10.0, "A", 20.0, "B", 30.0),
		layer(model.MetricLDI, "A", 40.0, "Z", 99.0), // C and B absent, Z extra
		layer(model.MetricPDI),
		layer(model.MetricCDI, "B", 8.0),
	}
	out, err := Score(layers, model.Metrics(), model.DefaultWeights(), ScoreOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"C", "A", "B"}, geoids(out))
	assert.InDelta(t, 10.0/4, prop(out, 0, model.PropCompositeScore), 1e-9)
	assert.InDelta(t, (20.0+40.0)/4, prop(out, 1, model.PropCompositeScore), 1e-9)
	assert.InDelta(t, (30.0+8.0)/4, prop(out, 2, model.PropCompositeScore), 1e-9)
}

func TestScoreNonNumericValuesCountAsZero(t *testing.T) {
	t.Parallel()

	layers := []*geojson.FeatureCollection{
		layer(model.MetricIDI, "A", "40"),
		layer(model.MetricLDI, "A", "n/a"),
		layer(model.MetricPDI, "A", nil),
		layer(model.MetricCDI, "A", true),
	}
	out, err := Score(layers, model.Metrics(), model.DefaultWeights(), ScoreOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, prop(out, 0, model.PropCompositeScore), 1e-9)
}

func TestScoreNumericGEOIDJoinsString(t *testing.T) {
	t.Parallel()

	layers := []*geojson.FeatureCollection{
		layer(model.MetricIDI, 130890001001.0, 40.0),
		layer(model.MetricLDI, "130890001001", 40.0),
		layer(model.MetricPDI, "130890001001", 40.0),
		layer(model.MetricCDI, "130890001001", 40.0),
	}
	out, err := Score(layers, model.Metrics(), model.DefaultWeights(), ScoreOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 40.0, prop(out, 0, model.PropCompositeScore), 1e-9)
}

func TestScoreDoesNotMutateInputs(t *testing.T) {
	t.Parallel()

	layers := fourLayers()
	out, err := Score(layers, model.Metrics(), model.DefaultWeights(), ScoreOptions{RetainMetrics: true})
	require.NoError(t, err)

	_, has := layers[0].Features[0].Properties[model.PropCompositeScore]
	assert.False(t, has)
	assert.Same(t, layers[0].Features[0].Geometry, out.Features[0].Geometry)
}

func TestScoreRetainMetrics(t *testing.T) {
	t.Parallel()

	out, err := Score(fourLayers(), model.Metrics(), model.DefaultWeights(), ScoreOptions{RetainMetrics: true})
	require.NoError(t, err)

	assert.InDelta(t, 80.0, prop(out, 0, "IDI"), 1e-9)
	assert.InDelta(t, 60.0, prop(out, 0, "LDI"), 1e-9)
	assert.InDelta(t, 40.0, prop(out, 0, "PDI"), 1e-9)
	assert.InDelta(t, 20.0, prop(out, 0, "CDI"), 1e-9)
}

func TestScorePreconditions(t *testing.T) {
	t.Parallel()

	_, err := Score(nil, nil, model.DefaultWeights(), ScoreOptions{})
	assert.Error(t, err)

	_, err = Score(fourLayers()[:2], model.Metrics(), model.DefaultWeights(), ScoreOptions{})
	assert.Error(t, err)

	layers := fourLayers()
	layers[2] = nil
	_, err = Score(layers, model.Metrics(), model.DefaultWeights(), ScoreOptions{})
	assert.Error(t, err)
}

func TestScoreEmptyBase(t *testing.T) {
	t.Parallel()

	layers := fourLayers()
	layers[0] = layer(model.MetricIDI)
	out, err := Score(layers, model.Metrics(), model.DefaultWeights(), ScoreOptions{})
	require.NoError(t, err)
	assert.Empty(t, out.Features)
}
