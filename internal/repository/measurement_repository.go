// Package repository provides data access implementations
package repository

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/abelzeko/maiwar-wq/internal/entities"
	_ "github.com/mattn/go-sqlite3"
)

// MeasurementRepository archives every reading the collector has published
type MeasurementRepository interface {
	SaveReadings(readings entities.Readings, collectedAt time.Time) error
	GetReadingsByDate(date string) (map[string]entities.Reading, error)
	GetDates() ([]string, error)
	LoadMeasurements() (entities.Measurements, error)
	GetLastCollectedTime() (time.Time, error)
	Close() error
}

// SQLiteMeasurementRepository implements MeasurementRepository using SQLite
type SQLiteMeasurementRepository struct {
	db     *sql.DB
	DBPath string
}

// NewSQLiteMeasurementRepository creates and initializes a new SQLite repository
func NewSQLiteMeasurementRepository(dbPath string) (*SQLiteMeasurementRepository, error) {
	if dbPath == "" {
		dbDir := "data"
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dbPath = filepath.Join(dbDir, "measurements.db")
	}

	log.Printf("Opening database at %s", dbPath)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS measurements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		location TEXT NOT NULL,
		value INTEGER NOT NULL,
		kind TEXT NOT NULL,
		collected_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(date, location)
	);
	CREATE INDEX IF NOT EXISTS idx_date ON measurements(date);
	CREATE INDEX IF NOT EXISTS idx_location ON measurements(location);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteMeasurementRepository{
		db:     db,
		DBPath: dbPath,
	}, nil
}

// Close closes the database connection
func (r *SQLiteMeasurementRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveReadings stores readings, replacing earlier values for the same date and location
func (r *SQLiteMeasurementRepository) SaveReadings(readings entities.Readings, collectedAt time.Time) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO measurements(date, location, value, kind, collected_at)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(date, location) DO UPDATE SET
		value=excluded.value,
		kind=excluded.kind,
		collected_at=excluded.collected_at
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, date := range readings.Dates() {
		for location, reading := range readings[date] {
			if _, err := stmt.Exec(date, location, reading.Value, string(reading.Kind), collectedAt); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to insert reading for %s on %s: %w", location, date, err)
			}
			count++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("Successfully saved %d readings for %d dates", count, len(readings))
	return nil
}

// GetReadingsByDate returns the readings of every location on one date
func (r *SQLiteMeasurementRepository) GetReadingsByDate(date string) (map[string]entities.Reading, error) {
	rows, err := r.db.Query(`
		SELECT location, value, kind
		FROM measurements
		WHERE date = ?
		ORDER BY location`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings for %s: %w", date, err)
	}
	defer rows.Close()

	result := make(map[string]entities.Reading)
	for rows.Next() {
		var (
			location string
			reading  entities.Reading
			kind     string
		)
		if err := rows.Scan(&location, &reading.Value, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		reading.Kind = entities.ReadingKind(kind)
		result[location] = reading
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}

// GetDates returns every archived date in ascending order
func (r *SQLiteMeasurementRepository) GetDates() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT date FROM measurements ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		dates = append(dates, date)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return dates, nil
}

// LoadMeasurements returns the whole archive in the published integer form
func (r *SQLiteMeasurementRepository) LoadMeasurements() (entities.Measurements, error) {
	rows, err := r.db.Query(`SELECT date, location, value, kind FROM measurements`)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	result := make(entities.Measurements)
	for rows.Next() {
		var (
			date, location, kind string
			value                int
		)
		if err := rows.Scan(&date, &location, &value, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if result[date] == nil {
			result[date] = make(map[string]int)
		}
		result[date][location] = entities.Reading{Kind: entities.ReadingKind(kind), Value: value}.Int()
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}

// GetLastCollectedTime returns when the archive was last written, zero if empty
func (r *SQLiteMeasurementRepository) GetLastCollectedTime() (time.Time, error) {
	var timestampStr sql.NullString
	err := r.db.QueryRow("SELECT MAX(collected_at) FROM measurements").Scan(&timestampStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to get last collected time: %w", err)
	}

	if !timestampStr.Valid || timestampStr.String == "" {
		return time.Time{}, nil
	}

	// MAX() loses the column type, so the driver hands back its text encoding
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05",
	}
	var parseErr error
	for _, layout := range layouts {
		var timestamp time.Time
		if timestamp, parseErr = time.Parse(layout, timestampStr.String); parseErr == nil {
			return timestamp, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", timestampStr.String, parseErr)
}
