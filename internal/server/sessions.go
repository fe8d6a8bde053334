package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/blockgroup-index/internal/composite"
	"github.com/sells-group/blockgroup-index/internal/model"
	"github.com/sells-group/blockgroup-index/internal/session"
	"github.com/sells-group/blockgroup-index/internal/style"
	"github.com/sells-group/blockgroup-index/internal/viewstate"
)

const maxBodyBytes = 1 << 20

// sessionRequest is the body of POST and PATCH /api/sessions. Omitted
// fields leave the corresponding input unchanged.
type sessionRequest struct {
	Mode       *string            `json:"mode"`
	City       *string            `json:"city"`
	Year       *string            `json:"year"`
	BeforeYear *string            `json:"before_year"`
	AfterYear  *string            `json:"after_year"`
	Weights    map[string]float64 `json:"weights"`
	Refresh    bool               `json:"refresh"`
}

// actions converts the request into validated input actions, in a fixed
// order so that the result does not depend on JSON key order.
func (req sessionRequest) actions() ([]viewstate.Action, error) {
	var out []viewstate.Action
	if req.Mode != nil {
		out = append(out, viewstate.SetMode{Mode: viewstate.Mode(*req.Mode)})
	}
	if req.City != nil {
		c, err := model.ParseCity(*req.City)
		if err != nil {
			return nil, err
		}
		out = append(out, viewstate.SetCity{City: c})
	}
	for _, y := range []struct {
		val    *string
		action func(model.Year) viewstate.Action
	}{
		{req.Year, func(v model.Year) viewstate.Action { return viewstate.SetYear{Year: v} }},
		{req.BeforeYear, func(v model.Year) viewstate.Action { return viewstate.SetBeforeYear{Year: v} }},
		{req.AfterYear, func(v model.Year) viewstate.Action { return viewstate.SetAfterYear{Year: v} }},
	} {
		if y.val == nil {
			continue
		}
		year, err := model.ParseYear(*y.val)
		if err != nil {
			return nil, err
		}
		out = append(out, y.action(year))
	}

	keys := make([]string, 0, len(req.Weights))
	for k := range req.Weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m, err := model.ParseMetric(k)
		if err != nil {
			return nil, err
		}
		out = append(out, viewstate.SetWeight{Metric: m, Weight: req.Weights[k]})
	}

	for _, a := range out {
		if err := viewstate.Validate(a); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type sessionView struct {
	ID     string                     `json:"id"`
	State  viewstate.State            `json:"state"`
	Result *geojson.FeatureCollection `json:"result,omitempty"`
}

func decodeSessionRequest(w http.ResponseWriter, r *http.Request) (sessionRequest, error) {
	var req sessionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, eris.Wrap(err, "server: invalid request body")
	}
	return req, nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSessionRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actions, err := req.actions()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.sessions.Create(actions...)
	switch {
	case errors.Is(err, session.ErrTooManySessions):
		writeError(w, http.StatusTooManyRequests, "too many sessions")
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, "sessions unavailable")
		return
	}

	w.Header().Set("Location", "/api/sessions/"+sess.ID())
	writeJSON(w, http.StatusCreated, sessionView{ID: sess.ID(), State: sess.State()})
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return sess, ok
}

// handleGetSession returns the session state and, once ready, its result.
// With ?wait=true it blocks until the current generation settles.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	ro, err := queryRender(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st := sess.State()
	if wait, _ := strconv.ParseBool(q.Get("wait")); wait {
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.WaitTimeout)
		st, _ = sess.Wait(ctx)
		cancel()
	}

	view := sessionView{ID: sess.ID(), State: st}
	if st.Status == viewstate.StatusReady {
		view.Result = prepare(st.Result, ro.Simplify, ro.Styled, measureFor(st))
	}
	writeJSON(w, http.StatusOK, view)
}

// handlePatchSession applies every field of the body as one change, so a
// multi-field edit starts a single fetch.
func (s *Server) handlePatchSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	req, err := decodeSessionRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actions, err := req.actions()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Refresh {
		actions = append(actions, viewstate.Refresh{})
	}

	st, err := sess.DispatchAll(actions...)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionView{ID: sess.ID(), State: st})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type featureView struct {
	Tooltip style.Tooltip `json:"tooltip"`
	Style   style.Style   `json:"style"`
}

// handleSessionFeature returns the tooltip and the hover or resting style of
// one block group in the session's current result.
func (s *Server) handleSessionFeature(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	hovered, _ := strconv.ParseBool(r.URL.Query().Get("hovered"))

	st := sess.State()
	if st.Result == nil {
		writeNoData(w, r)
		return
	}
	f := findFeature(st.Result, chi.URLParam(r, "geoid"))
	if f == nil {
		writeError(w, http.StatusNotFound, "block group not found")
		return
	}

	m := measureFor(st)
	writeJSON(w, http.StatusOK, featureView{
		Tooltip: style.TooltipFor(f, m),
		Style:   style.StyleFor(f, m, hovered),
	})
}

func findFeature(fc *geojson.FeatureCollection, geoid string) *geojson.Feature {
	for _, f := range fc.Features {
		if id, ok := composite.GEOID(f); ok && id == geoid {
			return f
		}
	}
	return nil
}

func measureFor(st viewstate.State) style.Measure {
	if st.Mode == viewstate.ModeCompare {
		return style.MeasureDiff
	}
	return style.MeasureScore
}
