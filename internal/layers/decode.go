package layers

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/blockgroup-index/internal/fetcher"
)

// wireFeature mirrors a GeoJSON feature but accepts string or numeric ids
// and null geometries, both of which appear in published layers.
type wireFeature struct {
	ID         json.RawMessage        `json:"id,omitempty"`
	Geometry   *geojson.Geometry      `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type wireCollection struct {
	Type     string        `json:"type"`
	Features []wireFeature `json:"features"`
}

// DecodeCollection reads a GeoJSON FeatureCollection.
func DecodeCollection(r io.Reader) (*geojson.FeatureCollection, error) {
	wc, err := fetcher.DecodeJSONObject[wireCollection](r)
	if err != nil {
		return nil, eris.Wrap(err, "layers: decode feature collection")
	}
	return wc.collection()
}

func (wc *wireCollection) collection() (*geojson.FeatureCollection, error) {
	if wc.Type != "FeatureCollection" {
		return nil, eris.Errorf("layers: expected FeatureCollection, got %q", wc.Type)
	}

	fc := &geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(wc.Features)),
	}
	for i, wf := range wc.Features {
		f := &geojson.Feature{
			ID:         featureID(wf.ID),
			Properties: wf.Properties,
		}
		if f.Properties == nil {
			f.Properties = map[string]interface{}{}
		}
		if wf.Geometry != nil {
			g, err := wf.Geometry.Decode()
			if err != nil {
				return nil, eris.Wrapf(err, "layers: decode geometry of feature %d", i)
			}
			f.Geometry = g
		}
		fc.Features = append(fc.Features, f)
	}
	return fc, nil
}

func featureID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}
