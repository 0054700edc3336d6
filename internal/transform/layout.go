// Package transform turns a water quality results workbook into dated,
// per-location measurements.
package transform

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Layout locates the meaningful region of a results sheet. Rows and columns are 1-indexed.
type Layout struct {
	// DateRow holds one sampling date per column, starting at FirstDateCol.
	DateRow      int
	FirstDateCol int
	// LocationCol holds one location label per row over FirstLocationRow..LastLocationRow.
	LocationCol      int
	FirstLocationRow int
	LastLocationRow  int
	// SheetNameContains selects sheets by substring match, ignoring case.
	SheetNameContains string
}

// DefaultLayout returns the layout of the published results workbook:
// dates on row 7 from column G, locations in column C on rows 8 to 18.
func DefaultLayout() Layout {
	return Layout{
		DateRow:           7,
		FirstDateCol:      7, // G
		LocationCol:       3, // C
		FirstLocationRow:  8,
		LastLocationRow:   18,
		SheetNameContains: "results",
	}
}

// Validate checks the layout is internally consistent
func (l Layout) Validate() error {
	switch {
	case l.DateRow < 1:
		return fmt.Errorf("invalid layout: date row must be at least 1, got %d", l.DateRow)
	case l.FirstDateCol < 1:
		return fmt.Errorf("invalid layout: first date column must be at least 1, got %d", l.FirstDateCol)
	case l.LocationCol < 1:
		return fmt.Errorf("invalid layout: location column must be at least 1, got %d", l.LocationCol)
	case l.FirstLocationRow < 1:
		return fmt.Errorf("invalid layout: first location row must be at least 1, got %d", l.FirstLocationRow)
	case l.LastLocationRow < l.FirstLocationRow:
		return fmt.Errorf("invalid layout: last location row %d is before first location row %d",
			l.LastLocationRow, l.FirstLocationRow)
	case l.FirstLocationRow <= l.DateRow:
		return fmt.Errorf("invalid layout: location rows must start below the date row %d", l.DateRow)
	case l.LocationCol >= l.FirstDateCol:
		return fmt.Errorf("invalid layout: location column must be left of the first date column")
	case strings.TrimSpace(l.SheetNameContains) == "":
		return fmt.Errorf("invalid layout: sheet name filter is empty")
	}
	return nil
}

// LocationCount is the number of location rows the layout spans
func (l Layout) LocationCount() int {
	return l.LastLocationRow - l.FirstLocationRow + 1
}

// ColumnNumber converts a column reference such as "G" to its 1-indexed number
func ColumnNumber(name string) (int, error) {
	n, err := excelize.ColumnNameToNumber(strings.TrimSpace(name))
	if err != nil {
		return 0, fmt.Errorf("invalid column %q: %w", name, err)
	}
	return n, nil
}

// CollisionPolicy decides what happens when two sheets define the same date
type CollisionPolicy string

const (
	// CollisionOverwrite replaces the earlier sheet's values for the date entirely.
	CollisionOverwrite CollisionPolicy = "overwrite"
	// CollisionFail rejects the workbook.
	CollisionFail CollisionPolicy = "fail"
)

// ParseCollisionPolicy parses a policy name, the empty string means overwrite
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch CollisionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CollisionOverwrite:
		return CollisionOverwrite, nil
	case CollisionFail:
		return CollisionFail, nil
	default:
		return "", fmt.Errorf("unknown date collision policy %q (must be overwrite or fail)", s)
	}
}

// Options configures a Transformer
type Options struct {
	Layout          Layout
	OnDateCollision CollisionPolicy
}

// DefaultOptions returns the default layout with overwrite-on-collision
func DefaultOptions() Options {
	return Options{
		Layout:          DefaultLayout(),
		OnDateCollision: CollisionOverwrite,
	}
}
