package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abelzeko/maiwar-wq/internal/api"
	"github.com/abelzeko/maiwar-wq/internal/config"
	"github.com/abelzeko/maiwar-wq/internal/consistency"
	"github.com/abelzeko/maiwar-wq/internal/entities"
	"github.com/abelzeko/maiwar-wq/internal/observability"
	"github.com/abelzeko/maiwar-wq/internal/repository"
	"github.com/abelzeko/maiwar-wq/internal/transform"
	"github.com/abelzeko/maiwar-wq/internal/usecases"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "collector",
		Short: "Collect Brisbane river water quality measurements",
		Long: `collector downloads the latest water quality results workbook, converts it
to a measurements JSON document and writes it out when it differs from the
published one.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         runCollect,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Settings file path")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run one collection and exit",
			Args:  cobra.NoArgs,
			RunE:  runCollect,
		},
		&cobra.Command{
			Use:   "schedule",
			Short: "Collect now and then on the configured cron schedule",
			Args:  cobra.NoArgs,
			RunE:  runSchedule,
		},
		newTransformCmd(),
		newExportCmd(),
		&cobra.Command{
			Use:   "bot",
			Short: "Answer Telegram queries about archived measurements",
			Args:  cobra.NoArgs,
			RunE:  runBot,
		},
		&cobra.Command{
			Use:   "check <a.json> <b.json>",
			Short: "Check that two measurements files hold the same data",
			Args:  cobra.ExactArgs(2),
			RunE:  runCheck,
		},
	)
	return rootCmd
}

func runCollect(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load settings: %v", err)
		return err
	}

	c, err := newCollector(cfg, observability.NewMetrics())
	if err != nil {
		return err
	}
	defer c.Close()

	outcome, err := c.useCase.Run(cmd.Context())
	if err != nil {
		log.Printf("Collection failed: %v", err)
		return err
	}
	log.Printf("Collection finished: %s", outcome)
	return nil
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load settings: %v", err)
		return err
	}

	c, err := newCollector(cfg, observability.NewMetrics())
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *observability.Server
	if cfg.MetricsAddr != "" {
		srv = observability.NewServer(cfg.MetricsAddr)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	job := func() {
		if outcome, err := c.useCase.Run(ctx); err != nil {
			log.Printf("Scheduled collection failed: %v", err)
		} else {
			log.Printf("Scheduled collection finished: %s", outcome)
		}
	}

	// Run immediately on startup
	job()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Schedule, job); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}
	log.Printf("Collector has been scheduled with %q", cfg.Schedule)
	scheduler.Start()

	<-ctx.Done()
	log.Println("Shutting down")

	// wait for a running collection to finish
	<-scheduler.Stop().Done()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Metrics server shutdown error: %v", err)
		}
	}
	return nil
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load settings: %v", err)
		return err
	}
	if cfg.ArchiveDB == "" {
		return fmt.Errorf("%w: archive_db is required by the bot", config.ErrMissingOption)
	}

	// Get the bot token from environment variable
	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	repo, err := repository.NewSQLiteMeasurementRepository(cfg.ArchiveDB)
	if err != nil {
		return err
	}
	defer repo.Close()

	telegramBot, err := api.NewTelegramBot(botToken, usecases.NewArchiveUseCase(repo))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telegramBot.Start(ctx)
	return nil
}

func newTransformCmd() *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "transform <workbook.xlsx>",
		Short: "Convert a local results workbook to measurements JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(cmd, args[0], outputPath)
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")
	return cmd
}

func runTransform(cmd *cobra.Command, inputPath, outputPath string) error {
	opts, err := config.LoadTransformOptions(configPath)
	if errors.Is(err, config.ErrMissingFile) && !cmd.Flags().Changed("config") {
		opts, err = transform.DefaultOptions(), nil
	}
	if err != nil {
		return err
	}

	workbook, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read workbook: %w", err)
	}

	transformer, err := transform.NewTransformer(opts)
	if err != nil {
		return err
	}
	m, err := transformer.TransformMeasurements(workbook)
	if err != nil {
		return err
	}
	return writeMeasurements(cmd, m, outputPath)
}

func newExportCmd() *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every archived measurement as measurements JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, outputPath)
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")
	return cmd
}

func runExport(cmd *cobra.Command, outputPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.ArchiveDB == "" {
		return fmt.Errorf("%w: archive_db is required to export", config.ErrMissingOption)
	}

	repo, err := repository.NewSQLiteMeasurementRepository(cfg.ArchiveDB)
	if err != nil {
		return err
	}
	defer repo.Close()

	m, err := repo.LoadMeasurements()
	if err != nil {
		return err
	}
	return writeMeasurements(cmd, m, outputPath)
}

// writeMeasurements writes m to outputPath, or to stdout when it is empty
func writeMeasurements(cmd *cobra.Command, m entities.Measurements, outputPath string) error {
	if outputPath != "" {
		return repository.NewJSONFileWriter(outputPath).Write(m)
	}
	data, err := entities.MarshalCanonical(m)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := consistency.CompareFiles(args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s and %s hold the same measurements\n", args[0], args[1])
	return nil
}
