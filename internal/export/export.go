// Package export writes scored snapshots as GeoJSON, CSV or XLSX.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/blockgroup-index/internal/composite"
	"github.com/sells-group/blockgroup-index/internal/model"
)

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatGeoJSON Format = "geojson"
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
)

// ParseFormat accepts a format name; empty means GeoJSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", "json":
		return FormatGeoJSON, nil
	case FormatGeoJSON, FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", eris.Errorf("export: unknown format %q", s)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/geo+json"
	}
}

// Ext returns the file extension without a dot.
func (f Format) Ext() string {
	if f == "" {
		return string(FormatGeoJSON)
	}
	return string(f)
}

// Row is the tabular form of one scored block group. Metric values are only
// present when the snapshot retained them; PercentDiff only on comparisons.
type Row struct {
	GEOID          string   `csv:"GEOID"`
	IDI            *float64 `csv:"IDI,omitempty"`
	LDI            *float64 `csv:"LDI,omitempty"`
	PDI            *float64 `csv:"PDI,omitempty"`
	CDI            *float64 `csv:"CDI,omitempty"`
	CompositeScore float64  `csv:"composite_score"`
	PercentDiff    *float64 `csv:"percent_diff,omitempty"`
}

var header = []string{"GEOID", "IDI", "LDI", "PDI", "CDI", "composite_score", "percent_diff"}

// Rows flattens a scored collection in feature order.
func Rows(fc *geojson.FeatureCollection) []Row {
	if fc == nil {
		return nil
	}
	rows := make([]Row, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		geoid, _ := composite.GEOID(f)
		score, _ := composite.ParseNumber(f.Properties[model.PropCompositeScore])
		rows = append(rows, Row{
			GEOID:          geoid,
			IDI:            optional(f, string(model.MetricIDI)),
			LDI:            optional(f, string(model.MetricLDI)),
			PDI:            optional(f, string(model.MetricPDI)),
			CDI:            optional(f, string(model.MetricCDI)),
			CompositeScore: score,
			PercentDiff:    optional(f, model.PropPercentDiff),
		})
	}
	return rows
}

func optional(f *geojson.Feature, key string) *float64 {
	v, ok := composite.ParseNumber(f.Properties[key])
	if !ok {
		return nil
	}
	return &v
}

// Write encodes fc in the given format.
func Write(w io.Writer, fc *geojson.FeatureCollection, format Format) error {
	switch format {
	case FormatGeoJSON, "":
		return WriteGeoJSON(w, fc)
	case FormatCSV:
		return WriteCSV(w, fc)
	case FormatXLSX:
		return WriteXLSX(w, fc)
	}
	return eris.Errorf("export: unknown format %q", format)
}

// WriteGeoJSON encodes fc as a GeoJSON FeatureCollection.
func WriteGeoJSON(w io.Writer, fc *geojson.FeatureCollection) error {
	if fc == nil {
		fc = &geojson.FeatureCollection{}
	}
	if fc.Features == nil {
		fc = &geojson.FeatureCollection{BBox: fc.BBox, Features: []*geojson.Feature{}}
	}
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		return eris.Wrap(err, "export: encode geojson")
	}
	return nil
}

// WriteCSV writes one row per feature with a header line.
func WriteCSV(w io.Writer, fc *geojson.FeatureCollection) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	rows := Rows(fc)
	var err error
	if len(rows) == 0 {
		err = enc.EncodeHeader(Row{})
	} else {
		err = enc.Encode(rows)
	}
	if err != nil {
		return eris.Wrap(err, "export: encode csv")
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

// WriteXLSX writes the rows to a single "blockgroups" sheet.
func WriteXLSX(w io.Writer, fc *geojson.FeatureCollection) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("blockgroups")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	hr := sheet.AddRow()
	for _, h := range header {
		hr.AddCell().SetString(h)
	}

	for _, r := range Rows(fc) {
		row := sheet.AddRow()
		row.AddCell().SetString(r.GEOID)
		for _, v := range []*float64{r.IDI, r.LDI, r.PDI, r.CDI} {
			floatCell(row, v)
		}
		row.AddCell().SetFloat(r.CompositeScore)
		floatCell(row, r.PercentDiff)
	}

	if err := file.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

func floatCell(row *xlsx.Row, v *float64) {
	cell := row.AddCell()
	if v != nil {
		cell.SetFloat(*v)
	}
}
