package transform

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/abelzeko/maiwar-wq/internal/entities"
)

var errEmptyValue = errors.New("empty measurement cell")

// CleanseValue converts one raw measurement cell into a Reading.
//
//   - integers are exact readings
//   - text starting with "<" or ">" is a threshold, e.g. "<1" or ">2,400"
//   - any other text, notably "NT", is not tested
//
// Anything else, including decimals and empty cells, is an error.
func CleanseValue(v any) (entities.Reading, error) {
	switch value := v.(type) {
	case int:
		return entities.Reading{Kind: entities.KindExact, Value: value}, nil
	case int64:
		return entities.Reading{Kind: entities.KindExact, Value: int(value)}, nil
	case string:
		return cleanseText(value)
	case nil:
		return entities.Reading{}, errEmptyValue
	default:
		return entities.Reading{}, fmt.Errorf("unsupported measurement value %v (%T)", v, v)
	}
}

func cleanseText(s string) (entities.Reading, error) {
	var kind entities.ReadingKind
	switch {
	case strings.HasPrefix(s, "<"):
		kind = entities.KindBelow
	case strings.HasPrefix(s, ">"):
		kind = entities.KindAbove
	default:
		return entities.Reading{Kind: entities.KindNotTested, Value: entities.NotTestedValue}, nil
	}

	digits := strings.TrimSpace(strings.ReplaceAll(s[1:], ",", ""))
	if digits == "" || digits[0] == '-' || digits[0] == '+' {
		return entities.Reading{}, fmt.Errorf("invalid threshold value %q", s)
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return entities.Reading{}, fmt.Errorf("invalid threshold value %q: %w", s, err)
	}
	return entities.Reading{Kind: kind, Value: n}, nil
}
