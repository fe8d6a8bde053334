// Package viewstate holds the map view's inputs and latest result as an
// immutable value, updated only through Update.
//
// Every input change advances Generation. A result carries the generation
// it was requested for and is dropped by Update unless that generation is
// still current, so a slow response can never overwrite a newer one.
package viewstate

import (
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/blockgroup-index/internal/model"
	"github.com/sells-group/blockgroup-index/internal/snapshot"
)

// Mode selects a single snapshot or a two-period comparison.
type Mode string

// View modes.
const (
	ModeSingle  Mode = "single"
	ModeCompare Mode = "compare"
)

// Status is the load state of the current generation.
type Status string

// Load states.
const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusNoData  Status = "no_data"
)

// State is one immutable view of the map. Copy it freely; Update never
// mutates its argument.
type State struct {
	Mode       Mode                       `json:"mode"`
	City       model.City                 `json:"city"`
	Year       model.Year                 `json:"year"`
	BeforeYear model.Year                 `json:"before_year"`
	AfterYear  model.Year                 `json:"after_year"`
	Weights    model.WeightSet            `json:"weights"`
	Generation uint64                     `json:"generation"`
	Status     Status                     `json:"status"`
	Err        string                     `json:"error,omitempty"`
	Result     *geojson.FeatureCollection `json:"-"`
}

// Initial returns an idle state. Nothing is loaded until the first input
// action or Refresh.
func Initial(mode Mode, city model.City, year, before, after model.Year, weights model.WeightSet) State {
	if mode == "" {
		mode = ModeSingle
	}
	return State{
		Mode:       mode,
		City:       city,
		Year:       year,
		BeforeYear: before,
		AfterYear:  after,
		Weights:    weights.Clone(),
		Status:     StatusIdle,
	}
}

// SnapshotRequest describes the fetch for a single-mode state.
func (s State) SnapshotRequest() snapshot.Request {
	return snapshot.Request{
		City:          s.City,
		Year:          s.Year,
		Weights:       s.Weights.Clone(),
		RetainMetrics: true,
	}
}

// CompareRequest describes the fetch for a compare-mode state.
func (s State) CompareRequest() snapshot.CompareRequest {
	return snapshot.CompareRequest{
		City:          s.City,
		BeforeYear:    s.BeforeYear,
		AfterYear:     s.AfterYear,
		Weights:       s.Weights.Clone(),
		RetainMetrics: true,
	}
}

// Superseded reports whether next requires a new fetch relative to prev.
func Superseded(prev, next State) bool {
	return next.Generation != prev.Generation
}
