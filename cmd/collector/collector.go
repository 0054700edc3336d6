package main

import (
	"log"
	"os"

	"github.com/abelzeko/maiwar-wq/internal/config"
	"github.com/abelzeko/maiwar-wq/internal/integration"
	"github.com/abelzeko/maiwar-wq/internal/observability"
	"github.com/abelzeko/maiwar-wq/internal/repository"
	"github.com/abelzeko/maiwar-wq/internal/transform"
	"github.com/abelzeko/maiwar-wq/internal/usecases"
)

// collector holds the wired use case and whatever must be closed after it
type collector struct {
	useCase *usecases.CollectorUseCase
	archive *repository.SQLiteMeasurementRepository
}

func newCollector(cfg *config.Config, metrics *observability.Metrics) (*collector, error) {
	transformer, err := transform.NewTransformer(cfg.Transform)
	if err != nil {
		return nil, err
	}

	useCase := usecases.NewCollectorUseCase(
		integration.NewReportScraper(cfg.ReportPageURL, cfg.UserAgent),
		transformer,
		integration.NewPublishedClient(cfg.PublishedURL),
		repository.NewJSONFileWriter(cfg.MeasurementsFile),
		metrics,
	)
	c := &collector{useCase: useCase}

	if cfg.ArchiveDB != "" {
		archive, err := repository.NewSQLiteMeasurementRepository(cfg.ArchiveDB)
		if err != nil {
			return nil, err
		}
		c.archive = archive
		useCase.SetArchive(archive)
	}

	useCase.AddNotifier(integration.NewDesktopNotifier(cfg.NotifyCommand))

	if cfg.TelegramChatID != 0 {
		// Get the bot token from environment variable
		botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
		if botToken == "" {
			log.Println("Warning: telegram_chat_id is set but TELEGRAM_BOT_TOKEN is not, Telegram notifications disabled")
		} else if telegram, err := integration.NewTelegramNotifier(botToken, cfg.TelegramChatID); err != nil {
			log.Printf("Warning: failed to initialize Telegram notifier: %v", err)
		} else {
			useCase.AddNotifier(telegram)
		}
	}

	return c, nil
}

// Close releases the archive database, if one is open
func (c *collector) Close() {
	if c.archive == nil {
		return
	}
	if err := c.archive.Close(); err != nil {
		log.Printf("Failed to close archive: %v", err)
	}
}
