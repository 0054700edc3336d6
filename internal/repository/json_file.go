package repository

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/abelzeko/maiwar-wq/internal/entities"
)

// JSONFileWriter writes the measurements document to a fixed path
type JSONFileWriter struct {
	path string
}

// NewJSONFileWriter creates a writer for the measurements file
func NewJSONFileWriter(path string) *JSONFileWriter {
	return &JSONFileWriter{path: path}
}

// Path returns the destination file
func (w *JSONFileWriter) Path() string {
	return w.path
}

// Write replaces the file with the canonical JSON encoding of m. The content
// goes to a temporary file in the same directory first, so readers never see a
// partial document.
func (w *JSONFileWriter) Write(m entities.Measurements) error {
	data, err := entities.MarshalCanonical(m)
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".measurements-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write measurements: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync measurements: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close measurements: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", w.path, err)
	}

	log.Printf("Wrote %d dates to %s", len(m), w.path)
	return nil
}

// Read loads the document previously written to the path
func (w *JSONFileWriter) Read() (entities.Measurements, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", w.path, err)
	}
	return entities.UnmarshalMeasurements(data)
}
