package model

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultWeight is the per-metric weight used when none is supplied.
const DefaultWeight = 25.0

// WeightSet maps each metric to its non-negative weight. Metrics absent from
// the set weigh zero. Weights need not sum to 100.
type WeightSet map[Metric]float64

// DefaultWeights returns an equal weight for every metric.
func DefaultWeights() WeightSet {
	ws := make(WeightSet, len(metrics))
	for _, m := range metrics {
		ws[m] = DefaultWeight
	}
	return ws
}

// Get returns the weight for m, zero if absent.
func (ws WeightSet) Get(m Metric) float64 {
	return ws[m]
}

// Total returns the sum of all weights.
func (ws WeightSet) Total() float64 {
	var sum float64
	for _, m := range metrics {
		sum += ws[m]
	}
	return sum
}

// Clone returns an independent copy of the weight set.
func (ws WeightSet) Clone() WeightSet {
	out := make(WeightSet, len(ws))
	for k, v := range ws {
		out[k] = v
	}
	return out
}

// With returns a copy of the set with m set to w.
func (ws WeightSet) With(m Metric, w float64) WeightSet {
	out := ws.Clone()
	out[m] = w
	return out
}

// Validate checks that every weight names a known metric and is a finite,
// non-negative number.
func (ws WeightSet) Validate() error {
	var errs []string
	keys := make([]string, 0, len(ws))
	for m := range ws {
		keys = append(keys, string(m))
	}
	sort.Strings(keys)

	for _, k := range keys {
		m := Metric(k)
		if _, err := ParseMetric(k); err != nil {
			errs = append(errs, fmt.Sprintf("unknown metric %q", k))
			continue
		}
		w := ws[m]
		if math.IsNaN(w) || math.IsInf(w, 0) {
			errs = append(errs, fmt.Sprintf("%s: weight must be finite", m))
		} else if w < 0 {
			errs = append(errs, fmt.Sprintf("%s: weight must be >= 0, got %g", m, w))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("model: invalid weights: %s", strings.Join(errs, "; "))
	}
	return nil
}

// String renders the set as "IDI=25,LDI=25,..." in canonical metric order.
func (ws WeightSet) String() string {
	parts := make([]string, 0, len(metrics))
	for _, m := range metrics {
		parts = append(parts, fmt.Sprintf("%s=%g", m, ws[m]))
	}
	return strings.Join(parts, ",")
}

// ParseWeights parses "idi=25,ldi=10" into a weight set. Metrics not named
// keep their default weight.
func ParseWeights(s string) (WeightSet, error) {
	return ApplyWeights(DefaultWeights(), s)
}

// ApplyWeights returns a copy of base with the metrics named in
// "idi=25,ldi=10" overridden.
func ApplyWeights(base WeightSet, s string) (WeightSet, error) {
	ws := base.Clone()
	s = strings.TrimSpace(s)
	if s == "" {
		return ws, nil
	}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, eris.Errorf("model: malformed weight %q (want metric=value)", pair)
		}
		m, err := ParseMetric(k)
		if err != nil {
			return nil, err
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "model: weight for %s", m)
		}
		ws[m] = w
	}
	if err := ws.Validate(); err != nil {
		return nil, err
	}
	return ws, nil
}
