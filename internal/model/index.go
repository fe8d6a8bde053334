// Package model defines the cities, metrics, years and weight sets that
// describe a block-group index snapshot.
package model

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Property keys written into and read from GeoJSON feature properties.
const (
	PropGEOID          = "GEOID"
	PropCompositeScore = "compositeScore"
	PropPercentDiff    = "percentDiff"
)

// ErrCityInactive is returned when a reserved city is requested for fetching.
var ErrCityInactive = eris.New("model: city has no published data")

// Metric identifies one pre-computed demographic index layer.
type Metric string

// Supported metrics.
const (
	MetricIDI Metric = "IDI"
	MetricLDI Metric = "LDI"
	MetricPDI Metric = "PDI"
	MetricCDI Metric = "CDI"
)

var metrics = []Metric{MetricIDI, MetricLDI, MetricPDI, MetricCDI}

// Metrics returns all metrics in their canonical order. The first entry is the
// base layer for composite scoring.
func Metrics() []Metric {
	out := make([]Metric, len(metrics))
	copy(out, metrics)
	return out
}

// ParseMetric resolves a metric name case-insensitively.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range metrics {
		if m == known {
			return m, nil
		}
	}
	return "", eris.Errorf("model: unknown metric %q", s)
}

// Param is the lowercase query-parameter form of the metric name.
func (m Metric) Param() string { return strings.ToLower(string(m)) }

// City identifies a metro area by its data-host slug.
type City string

// Supported cities.
const (
	CityAtlanta    City = "atlanta"
	CityNewYork    City = "new_york"
	CityLosAngeles City = "los_angeles"
)

var cities = []City{CityAtlanta, CityNewYork, CityLosAngeles}

// Cities returns every known city, active or reserved.
func Cities() []City {
	out := make([]City, len(cities))
	copy(out, cities)
	return out
}

// ParseCity resolves a city slug. Display names ("New York") are accepted too.
func ParseCity(s string) (City, error) {
	slug := City(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_"))
	for _, known := range cities {
		if slug == known {
			return slug, nil
		}
	}
	return "", eris.Errorf("model: unknown city %q", s)
}

// Active reports whether the data host publishes layers for the city.
func (c City) Active() bool { return c == CityAtlanta }

// DisplayName returns the human-readable city name.
func (c City) DisplayName() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(c), "_", " "))
}

// Year identifies a census vintage.
type Year string

// Supported years.
const (
	Year2013 Year = "2013"
	Year2022 Year = "2022"
)

var years = []Year{Year2013, Year2022}

// Years returns the supported census vintages, oldest first.
func Years() []Year {
	out := make([]Year, len(years))
	copy(out, years)
	return out
}

// ParseYear resolves a year string.
func ParseYear(s string) (Year, error) {
	y := Year(strings.TrimSpace(s))
	for _, known := range years {
		if y == known {
			return y, nil
		}
	}
	return "", eris.Errorf("model: unsupported year %q", s)
}
