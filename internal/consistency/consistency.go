// Package consistency cross-checks two independently produced measurements documents.
package consistency

import (
	"fmt"
	"os"
	"sort"

	"github.com/abelzeko/maiwar-wq/internal/entities"
)

// MismatchError describes the first difference found between two documents
type MismatchError struct {
	Date     string
	Location string // empty when a whole date is missing
	Left     string
	Right    string
}

func (e *MismatchError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("measurements differ for date %s: %s vs %s", e.Date, e.Left, e.Right)
	}
	return fmt.Sprintf("measurements differ for %s at %s: %s vs %s", e.Location, e.Date, e.Left, e.Right)
}

// Compare returns nil when both documents are structurally identical, otherwise
// a *MismatchError for the first differing date or location in key order.
func Compare(left, right entities.Measurements) error {
	for _, date := range sortedUnion(left, right) {
		l, inLeft := left[date]
		r, inRight := right[date]
		if !inLeft || !inRight {
			return &MismatchError{Date: date, Left: presence(inLeft), Right: presence(inRight)}
		}
		for _, location := range sortedUnion(l, r) {
			lv, inLeft := l[location]
			rv, inRight := r[location]
			if !inLeft || !inRight || lv != rv {
				return &MismatchError{
					Date:     date,
					Location: location,
					Left:     valueOrMissing(lv, inLeft),
					Right:    valueOrMissing(rv, inRight),
				}
			}
		}
	}
	return nil
}

// CompareFiles loads two measurements documents and compares them
func CompareFiles(leftPath, rightPath string) error {
	left, err := readFile(leftPath)
	if err != nil {
		return err
	}
	right, err := readFile(rightPath)
	if err != nil {
		return err
	}
	return Compare(left, right)
}

func readFile(path string) (entities.Measurements, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	m, err := entities.UnmarshalMeasurements(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// sortedUnion returns the keys present in either map, sorted
func sortedUnion[V any](left, right map[string]V) []string {
	seen := make(map[string]struct{}, len(left)+len(right))
	for k := range left {
		seen[k] = struct{}{}
	}
	for k := range right {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "missing"
}

func valueOrMissing(v int, ok bool) string {
	if !ok {
		return "missing"
	}
	return fmt.Sprintf("%d", v)
}
