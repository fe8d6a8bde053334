package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blockgroup-index/internal/export"
	"github.com/sells-group/blockgroup-index/internal/model"
)

// msgNoData is the single user-facing failure for fetch errors and an
// undefined composite score.
const msgNoData = "no data available"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeNoData(w http.ResponseWriter, r *http.Request) {
	if r.Context().Err() != nil {
		// Client went away; nobody is listening.
		return
	}
	writeError(w, http.StatusNotFound, msgNoData)
}

func queryCity(q url.Values, def model.City) (model.City, error) {
	v := q.Get("city")
	if v == "" {
		return def, nil
	}
	return model.ParseCity(v)
}

func queryYear(q url.Values, key string, def model.Year) (model.Year, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	return model.ParseYear(v)
}

// queryWeights starts from def and overrides each metric given as a
// lowercase parameter, e.g. ?idi=40&cdi=0.
func queryWeights(q url.Values, def model.WeightSet) (model.WeightSet, error) {
	ws := def.Clone()
	for _, m := range model.Metrics() {
		v := q.Get(m.Param())
		if v == "" {
			continue
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, eris.Errorf("server: %s must be a number", m.Param())
		}
		ws[m] = w
	}
	if err := ws.Validate(); err != nil {
		return nil, err
	}
	return ws, nil
}

// renderOptions controls how a scored collection is written out.
type renderOptions struct {
	Simplify float64
	Styled   bool
	Format   export.Format
}

func queryRender(q url.Values) (renderOptions, error) {
	var ro renderOptions
	if v := q.Get("simplify"); v != "" {
		tol, err := strconv.ParseFloat(v, 64)
		if err != nil || tol < 0 {
			return ro, eris.New("server: simplify must be a non-negative number")
		}
		ro.Simplify = tol
	}
	if v := q.Get("styled"); v != "" {
		styled, err := strconv.ParseBool(v)
		if err != nil {
			return ro, eris.New("server: styled must be a boolean")
		}
		ro.Styled = styled
	}
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		return ro, err
	}
	ro.Format = format
	return ro, nil
}
