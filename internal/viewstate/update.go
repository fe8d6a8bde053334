package viewstate

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/blockgroup-index/internal/model"
)

// Action is an input change or a fetch outcome.
type Action interface {
	isAction()
}

// Input actions. Each one that changes the state starts a new generation.
type (
	SetMode       struct{ Mode Mode }
	SetCity       struct{ City model.City }
	SetYear       struct{ Year model.Year }
	SetBeforeYear struct{ Year model.Year }
	SetAfterYear  struct{ Year model.Year }
	SetWeight     struct {
		Metric model.Metric
		Weight float64
	}
	SetWeights struct{ Weights model.WeightSet }
	// Refresh starts a new generation without changing any input.
	Refresh struct{}
)

// Loaded delivers a result for Generation.
type Loaded struct {
	Generation uint64
	Result     *geojson.FeatureCollection
}

// Failed reports that the fetch for Generation produced no data.
type Failed struct {
	Generation uint64
	Err        error
}

func (SetMode) isAction()       {}
func (SetCity) isAction()       {}
func (SetYear) isAction()       {}
func (SetBeforeYear) isAction() {}
func (SetAfterYear) isAction()  {}
func (SetWeight) isAction()     {}
func (SetWeights) isAction()    {}
func (Refresh) isAction()       {}
func (Loaded) isAction()        {}
func (Failed) isAction()        {}

// Validate rejects input actions carrying values outside the known
// enumerations or negative weights.
func Validate(a Action) error {
	switch a := a.(type) {
	case SetMode:
		if a.Mode != ModeSingle && a.Mode != ModeCompare {
			return eris.Errorf("viewstate: unknown mode %q", a.Mode)
		}
	case SetCity:
		_, err := model.ParseCity(string(a.City))
		return err
	case SetYear:
		_, err := model.ParseYear(string(a.Year))
		return err
	case SetBeforeYear:
		_, err := model.ParseYear(string(a.Year))
		return err
	case SetAfterYear:
		_, err := model.ParseYear(string(a.Year))
		return err
	case SetWeight:
		return model.WeightSet{a.Metric: a.Weight}.Validate()
	case SetWeights:
		return a.Weights.Validate()
	case nil:
		return eris.New("viewstate: nil action")
	}
	return nil
}

// Update returns the state after applying a. It is pure: s is never
// modified and invalid or stale actions return s unchanged.
func Update(s State, a Action) State {
	if Validate(a) != nil {
		return s
	}

	switch a := a.(type) {
	case SetMode:
		if a.Mode == s.Mode {
			return s
		}
		s.Mode = a.Mode
	case SetCity:
		c, _ := model.ParseCity(string(a.City))
		if c == s.City {
			return s
		}
		s.City = c
	case SetYear:
		y, _ := model.ParseYear(string(a.Year))
		if y == s.Year {
			return s
		}
		s.Year = y
	case SetBeforeYear:
		y, _ := model.ParseYear(string(a.Year))
		if y == s.BeforeYear {
			return s
		}
		s.BeforeYear = y
	case SetAfterYear:
		y, _ := model.ParseYear(string(a.Year))
		if y == s.AfterYear {
			return s
		}
		s.AfterYear = y
	case SetWeight:
		m, _ := model.ParseMetric(string(a.Metric))
		if w, ok := s.Weights[m]; ok && w == a.Weight {
			return s
		}
		s.Weights = s.Weights.With(m, a.Weight)
	case SetWeights:
		ws := make(model.WeightSet, len(a.Weights))
		for k, w := range a.Weights {
			m, _ := model.ParseMetric(string(k))
			ws[m] = w
		}
		if sameWeights(s.Weights, ws) {
			return s
		}
		s.Weights = ws
	case Refresh:
	case Loaded:
		if a.Generation != s.Generation {
			return s
		}
		s.Status = StatusReady
		s.Result = a.Result
		s.Err = ""
		return s
	case Failed:
		if a.Generation != s.Generation {
			return s
		}
		s.Status = StatusNoData
		s.Result = nil
		s.Err = "no data available"
		if a.Err != nil {
			s.Err = a.Err.Error()
		}
		return s
	default:
		return s
	}

	return begin(s)
}

// begin opens a new generation for the already-updated inputs. The previous
// result stays visible until the new one lands.
func begin(s State) State {
	s.Generation++
	s.Status = StatusLoading
	s.Err = ""
	return s
}

func sameWeights(a, b model.WeightSet) bool {
	for _, m := range model.Metrics() {
		if a.Get(m) != b.Get(m) {
			return false
		}
	}
	return true
}
