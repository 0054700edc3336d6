package usecases

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/abelzeko/maiwar-wq/internal/entities"
	"github.com/abelzeko/maiwar-wq/internal/repository"
)

// ArchiveUseCase answers questions about previously collected measurements
type ArchiveUseCase struct {
	repo repository.MeasurementRepository
}

// NewArchiveUseCase creates a new archive use case
func NewArchiveUseCase(repo repository.MeasurementRepository) *ArchiveUseCase {
	return &ArchiveUseCase{repo: repo}
}

// GetDates returns every archived sampling date, oldest first
func (uc *ArchiveUseCase) GetDates() ([]string, error) {
	log.Println("Retrieving list of archived dates")
	return uc.repo.GetDates()
}

// GetReadingsByDate retrieves the readings of every location on a date
func (uc *ArchiveUseCase) GetReadingsByDate(date string) (map[string]entities.Reading, error) {
	log.Printf("Retrieving readings for date: %s", date)
	return uc.repo.GetReadingsByDate(date)
}

// GetLatest returns the most recent sampling date and its readings.
// The date is empty when the archive holds nothing.
func (uc *ArchiveUseCase) GetLatest() (string, map[string]entities.Reading, error) {
	dates, err := uc.repo.GetDates()
	if err != nil {
		return "", nil, err
	}
	if len(dates) == 0 {
		return "", nil, nil
	}
	latest := dates[len(dates)-1]
	readings, err := uc.repo.GetReadingsByDate(latest)
	if err != nil {
		return "", nil, err
	}
	return latest, readings, nil
}

// GetLastCollectedTime returns when the archive was last updated
func (uc *ArchiveUseCase) GetLastCollectedTime() (time.Time, error) {
	return uc.repo.GetLastCollectedTime()
}

// FormatReadings formats one date's readings for display
func FormatReadings(date string, readings map[string]entities.Reading, lastUpdate time.Time) string {
	if len(readings) == 0 {
		return fmt.Sprintf("No measurements available for %s.", date)
	}

	locations := make([]string, 0, len(readings))
	for location := range readings {
		locations = append(locations, location)
	}
	sort.Strings(locations)

	var result strings.Builder
	result.WriteString(fmt.Sprintf("📅 Measurements on %s:\n\n", date))
	for _, location := range locations {
		result.WriteString(fmt.Sprintf("📍 %s: %s\n", location, readings[location]))
	}

	if !lastUpdate.IsZero() {
		result.WriteString(fmt.Sprintf("\n🕒 Last update: %s", lastUpdate.Format("2006-01-02 15:04:05 MST")))
	}
	return result.String()
}
