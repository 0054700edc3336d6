package entities

import (
	"encoding/json"
	"fmt"
	"io"
)

// MarshalCanonical serializes the measurements as compact JSON with keys
// sorted lexicographically at every level.
func MarshalCanonical(m Measurements) ([]byte, error) {
	if m == nil {
		m = Measurements{}
	}
	// encoding/json writes map keys in sorted order
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode measurements: %w", err)
	}
	return data, nil
}

// UnmarshalMeasurements parses a measurements document
func UnmarshalMeasurements(data []byte) (Measurements, error) {
	var m Measurements
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode measurements: %w", err)
	}
	return m, nil
}

// DecodeMeasurements reads a measurements document from r
func DecodeMeasurements(r io.Reader) (Measurements, error) {
	var m Measurements
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode measurements: %w", err)
	}
	return m, nil
}
