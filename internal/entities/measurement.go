// Package entities contains the core domain objects for the water quality collector
package entities

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateKeyLayout is the layout of the top-level keys in the measurements document
const DateKeyLayout = "2006-01-02"

// ReadingKind describes how a spreadsheet cell expressed a measurement
type ReadingKind string

const (
	KindExact     ReadingKind = "exact"      // plain integer count
	KindBelow     ReadingKind = "below"      // "<N", below the detection limit
	KindAbove     ReadingKind = "above"      // ">N", above the upper limit
	KindNotTested ReadingKind = "not_tested" // "NT" or any other text
)

// NotTestedValue is the integer published for a location that was not tested
const NotTestedValue = -1

// Reading is a single cleansed measurement. Value holds the bare magnitude,
// the bound direction is kept in Kind.
type Reading struct {
	Kind  ReadingKind
	Value int
}

// Int returns the integer representation used in the published document.
// Threshold readings collapse to their magnitude and untested readings to -1.
func (r Reading) Int() int {
	if r.Kind == KindNotTested {
		return NotTestedValue
	}
	return r.Value
}

func (r Reading) String() string {
	switch r.Kind {
	case KindBelow:
		return fmt.Sprintf("<%d", r.Value)
	case KindAbove:
		return fmt.Sprintf(">%d", r.Value)
	case KindNotTested:
		return "NT"
	default:
		return fmt.Sprintf("%d", r.Value)
	}
}

// Readings maps a date key to the readings taken at every location on that date
type Readings map[string]map[string]Reading

// Measurements maps a date key to location keys and their integer measurements.
// This is the shape of the published JSON document.
type Measurements map[string]map[string]int

// Measurements projects the readings onto the published integer form
func (r Readings) Measurements() Measurements {
	out := make(Measurements, len(r))
	for date, locations := range r {
		row := make(map[string]int, len(locations))
		for location, reading := range locations {
			row[location] = reading.Int()
		}
		out[date] = row
	}
	return out
}

// Dates returns the date keys in ascending order
func (r Readings) Dates() []string {
	dates := make([]string, 0, len(r))
	for date := range r {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// Dates returns the date keys in ascending order
func (m Measurements) Dates() []string {
	dates := make([]string, 0, len(m))
	for date := range m {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// Equal reports whether two documents hold exactly the same dates, locations and values
func (m Measurements) Equal(other Measurements) bool {
	if len(m) != len(other) {
		return false
	}
	for date, locations := range m {
		otherLocations, ok := other[date]
		if !ok || len(locations) != len(otherLocations) {
			return false
		}
		for location, value := range locations {
			otherValue, ok := otherLocations[location]
			if !ok || value != otherValue {
				return false
			}
		}
	}
	return true
}

// LocationKey turns a location label from the spreadsheet into its slug:
// lower-cased with spaces replaced by hyphens.
func LocationKey(label string) string {
	return strings.ReplaceAll(strings.ToLower(label), " ", "-")
}

// DateKey formats the calendar date of t as YYYY-MM-DD
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}
