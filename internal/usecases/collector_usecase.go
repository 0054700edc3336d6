// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/abelzeko/maiwar-wq/internal/entities"
	"github.com/abelzeko/maiwar-wq/internal/integration"
	"github.com/abelzeko/maiwar-wq/internal/observability"
)

// ErrNoMeasurements is returned when the latest workbook yields nothing to publish
var ErrNoMeasurements = errors.New("no measurements found in the latest report")

// Outcome is the result of a successful collection run
type Outcome string

const (
	// OutcomeNoNewData means the latest report matches what is already published
	OutcomeNoNewData Outcome = Outcome(observability.OutcomeNoNewData)
	// OutcomeUpdated means new measurements were written and notified
	OutcomeUpdated Outcome = Outcome(observability.OutcomeUpdated)
)

// SpreadsheetSource provides the bytes of the current results workbook
type SpreadsheetSource interface {
	GetLatestSpreadsheet(ctx context.Context) ([]byte, error)
}

// PublishedSource provides the measurements document that is currently live
type PublishedSource interface {
	FetchPublished(ctx context.Context) (entities.Measurements, error)
}

// WorkbookTransformer turns a workbook into readings
type WorkbookTransformer interface {
	Transform(workbook []byte) (entities.Readings, error)
}

// MeasurementsWriter persists the measurements document for deployment
type MeasurementsWriter interface {
	Write(m entities.Measurements) error
}

// ReadingsArchive keeps a history of every reading collected
type ReadingsArchive interface {
	SaveReadings(readings entities.Readings, collectedAt time.Time) error
}

// CollectorUseCase runs the fetch, transform, compare and publish pipeline
type CollectorUseCase struct {
	source      SpreadsheetSource
	transformer WorkbookTransformer
	published   PublishedSource
	writer      MeasurementsWriter
	metrics     *observability.Metrics

	archive   ReadingsArchive
	notifiers []integration.Notifier
	now       func() time.Time
}

// NewCollectorUseCase creates a new collector use case
func NewCollectorUseCase(source SpreadsheetSource, transformer WorkbookTransformer, published PublishedSource,
	writer MeasurementsWriter, metrics *observability.Metrics) *CollectorUseCase {
	return &CollectorUseCase{
		source:      source,
		transformer: transformer,
		published:   published,
		writer:      writer,
		metrics:     metrics,
		now:         time.Now,
	}
}

// SetArchive enables archiving of every updated set of readings
func (uc *CollectorUseCase) SetArchive(archive ReadingsArchive) {
	uc.archive = archive
}

// AddNotifier registers a notifier that is told about new measurements
func (uc *CollectorUseCase) AddNotifier(n integration.Notifier) {
	uc.notifiers = append(uc.notifiers, n)
}

// Run performs one collection. It only writes the output file when the
// freshly transformed measurements differ from the published ones.
func (uc *CollectorUseCase) Run(ctx context.Context) (Outcome, error) {
	start := uc.now()
	uc.metrics.RunsTotal.Inc()
	defer func() {
		uc.metrics.RunDuration.Observe(uc.now().Sub(start).Seconds())
	}()

	log.Println("Starting water quality collection...")

	workbook, err := uc.source.GetLatestSpreadsheet(ctx)
	if err != nil {
		return uc.fail(observability.StageFetch, fmt.Errorf("failed to fetch latest report: %w", err))
	}
	log.Printf("Downloaded latest report (%d bytes)", len(workbook))

	readings, err := uc.transformer.Transform(workbook)
	if err != nil {
		return uc.fail(observability.StageTransform, fmt.Errorf("failed to transform report: %w", err))
	}
	if len(readings) == 0 {
		return uc.fail(observability.StageEmpty, ErrNoMeasurements)
	}
	measurements := readings.Measurements()
	uc.metrics.DatesCollected.Set(float64(len(measurements)))
	uc.metrics.LocationsCollected.Set(float64(countLocations(measurements)))

	published, err := uc.published.FetchPublished(ctx)
	if err != nil {
		return uc.fail(observability.StagePublished, fmt.Errorf("failed to fetch published measurements: %w", err))
	}

	if measurements.Equal(published) {
		log.Printf("No new measurements: %d dates match the published data", len(measurements))
		uc.metrics.RunOutcomes.WithLabelValues(string(OutcomeNoNewData)).Inc()
		return OutcomeNoNewData, nil
	}
	log.Printf("New measurements: %d dates collected, %d published", len(measurements), len(published))

	if err := uc.writer.Write(measurements); err != nil {
		return uc.fail(observability.StageWrite, fmt.Errorf("failed to write measurements: %w", err))
	}

	if uc.archive != nil {
		if err := uc.archive.SaveReadings(readings, uc.now()); err != nil {
			return uc.fail(observability.StageArchive, fmt.Errorf("failed to archive readings: %w", err))
		}
	}

	uc.notify(ctx)

	uc.metrics.LastUpdate.Set(float64(uc.now().Unix()))
	uc.metrics.RunOutcomes.WithLabelValues(string(OutcomeUpdated)).Inc()
	return OutcomeUpdated, nil
}

func (uc *CollectorUseCase) fail(stage string, err error) (Outcome, error) {
	uc.metrics.StageFailures.WithLabelValues(stage).Inc()
	uc.metrics.RunOutcomes.WithLabelValues(observability.OutcomeFailed).Inc()
	return "", err
}

// notify never fails the run, the measurements are already written
func (uc *CollectorUseCase) notify(ctx context.Context) {
	for _, n := range uc.notifiers {
		if err := n.Notify(ctx, integration.NotificationTitle, integration.NotificationBody); err != nil {
			uc.metrics.NotifyFailures.Inc()
			log.Printf("Warning: failed to send notification: %v", err)
		}
	}
}

func countLocations(m entities.Measurements) int {
	seen := make(map[string]struct{})
	for _, locations := range m {
		for location := range locations {
			seen[location] = struct{}{}
		}
	}
	return len(seen)
}
