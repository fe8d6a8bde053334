package server

import (
	"bytes"
	"net/http"

	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/blockgroup-index/internal/export"
	"github.com/sells-group/blockgroup-index/internal/geometry"
	"github.com/sells-group/blockgroup-index/internal/layers"
	"github.com/sells-group/blockgroup-index/internal/model"
	"github.com/sells-group/blockgroup-index/internal/snapshot"
	"github.com/sells-group/blockgroup-index/internal/style"
)

type cityInfo struct {
	ID     model.City `json:"id"`
	Name   string     `json:"name"`
	Active bool       `json:"active"`
}

type catalogResponse struct {
	Cities   []cityInfo      `json:"cities"`
	Metrics  []model.Metric  `json:"metrics"`
	Years    []model.Year    `json:"years"`
	Weights  model.WeightSet `json:"default_weights"`
	Defaults struct {
		City       model.City `json:"city"`
		Year       model.Year `json:"year"`
		BeforeYear model.Year `json:"before_year"`
		AfterYear  model.Year `json:"after_year"`
	} `json:"defaults"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	var resp catalogResponse
	for _, c := range model.Cities() {
		resp.Cities = append(resp.Cities, cityInfo{ID: c, Name: c.DisplayName(), Active: c.Active()})
	}
	resp.Metrics = model.Metrics()
	resp.Years = model.Years()
	resp.Weights = s.opts.Defaults.Weights
	resp.Defaults.City = s.opts.Defaults.City
	resp.Defaults.Year = s.opts.Defaults.Year
	resp.Defaults.BeforeYear = s.opts.Defaults.BeforeYear
	resp.Defaults.AfterYear = s.opts.Defaults.AfterYear
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	city, err := queryCity(q, s.opts.Defaults.City)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	year, err := queryYear(q, "year", s.opts.Defaults.Year)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	weights, err := queryWeights(q, s.opts.Defaults.Weights)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ro, err := queryRender(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !city.Active() {
		writeNoData(w, r)
		return
	}

	fc, err := s.loader.Fetch(r.Context(), snapshot.Request{
		City:          city,
		Year:          year,
		Weights:       weights,
		RetainMetrics: true,
	})
	if err != nil {
		writeNoData(w, r)
		return
	}
	s.render(w, fc, ro, style.MeasureScore, attachmentName("composite", city, string(year), ro.Format.Ext()))
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	city, err := queryCity(q, s.opts.Defaults.City)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	before, err := queryYear(q, "before", s.opts.Defaults.BeforeYear)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	after, err := queryYear(q, "after", s.opts.Defaults.AfterYear)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	weights, err := queryWeights(q, s.opts.Defaults.Weights)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ro, err := queryRender(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !city.Active() {
		writeNoData(w, r)
		return
	}

	fc, err := s.loader.Compare(r.Context(), snapshot.CompareRequest{
		City:          city,
		BeforeYear:    before,
		AfterYear:     after,
		Weights:       weights,
		RetainMetrics: true,
	})
	if err != nil {
		writeNoData(w, r)
		return
	}
	s.render(w, fc, ro, style.MeasureDiff, attachmentName("change", city, string(before)+"_"+string(after), ro.Format.Ext()))
}

func (s *Server) handleDownloads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	city, err := queryCity(q, s.opts.Defaults.City)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	year, err := queryYear(q, "year", s.opts.Defaults.Year)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !city.Active() {
		writeNoData(w, r)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		City  model.City        `json:"city"`
		Year  model.Year        `json:"year"`
		Files []layers.Download `json:"files"`
	}{city, year, s.files.Downloads(city, year)})
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	m, err := style.ParseMeasure(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Mode    style.Measure       `json:"mode"`
		Entries []style.LegendEntry `json:"entries"`
	}{m, style.Legend(m.Scale())})
}

// render simplifies, styles and encodes fc. The input is never modified.
func (s *Server) render(w http.ResponseWriter, fc *geojson.FeatureCollection, ro renderOptions, m style.Measure, filename string) {
	fc = prepare(fc, ro.Simplify, ro.Styled, m)

	var buf bytes.Buffer
	if err := export.Write(&buf, fc, ro.Format); err != nil {
		zap.L().Error("render snapshot", zap.String("format", string(ro.Format)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "encoding failed")
		return
	}

	w.Header().Set("Content-Type", ro.Format.ContentType())
	if ro.Format != export.FormatGeoJSON {
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// prepare returns a copy of fc with simplified geometry, optional fill
// annotations and a bounding box covering every feature.
func prepare(fc *geojson.FeatureCollection, tolerance float64, styled bool, m style.Measure) *geojson.FeatureCollection {
	if fc == nil {
		return nil
	}
	fc = geometry.SimplifyCollection(fc, tolerance)
	if styled {
		fc = style.Annotate(fc, m)
	}
	out := *fc
	if ext := geometry.CollectionExtent(&out); ext != nil {
		out.BBox = ext
	}
	return &out
}
