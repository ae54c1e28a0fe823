package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ProductImporter/internal/admission"
	"ProductImporter/internal/config"
	"ProductImporter/internal/domain"
	"ProductImporter/internal/infrastructure/parser"
	"ProductImporter/internal/infrastructure/scheduler"
	"ProductImporter/internal/infrastructure/storage"
	"ProductImporter/internal/infrastructure/telegram"
	"ProductImporter/internal/logging"
	"ProductImporter/internal/normalize"
	"ProductImporter/internal/ports"
	"ProductImporter/internal/scanner"
	"ProductImporter/internal/usecase"
)

// Options tweak a single invocation on top of the loaded configuration.
type Options struct {
	DryRun bool
	// Force runs the import even when import.enabled is false.
	Force bool
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	db         *sql.DB
	repository *storage.Repository
	importer   *usecase.Importer
}

// New opens the catalog database and builds the importer.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.NewWithWriter(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	}

	db, dialect, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	repository := storage.New(db, dialect, cfg.Import.ImportSource).WithLogger(baseLogger)
	if err := repository.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	registry := scanner.NewRegistry(
		parser.NewPriceFullScanner(nil),
		parser.NewCSVScanner(baseLogger.With("component", "scanner.csv")),
		parser.NewHTMLPriceScanner(nil),
	)
	source := parser.NewStrategySource(registry, cfg.Chains, cfg.Sources.Concurrency, baseLogger.With("component", "source"))

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram, nil); tg.Configured() {
		notifier = tg
	}

	importer, err := usecase.NewImporter(usecase.ImporterDeps{
		Source:     source,
		Repository: repository,
		Notifier:   notifier,
		Policy:     normalize.ForStrategy(cfg.Import.NameMatching, cfg.SourceNames()),
		Rules: admission.Rules{
			MinPrice:          cfg.Import.PriceFloor(),
			MinSources:        cfg.Import.MinSources,
			BannedSubstrings:  cfg.Import.BannedSubstrings,
			AllowedCategories: cfg.Import.AllowedCategories,
			CurrencySymbol:    cfg.Import.CurrencySymbol,
		},
		StaleThreshold: cfg.Import.StaleThreshold,
		Apply: ports.ApplyOptions{
			BatchSize:   cfg.Import.BatchSize,
			Concurrency: cfg.Import.ApplyConcurrency,
		},
		DryRun:  opts.DryRun,
		Enabled: cfg.Import.IsEnabled() || opts.Force,
		Logger:  baseLogger.With("component", "importer"),
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		db:         db,
		repository: repository,
		importer:   importer,
	}, nil
}

// Close releases the database handle.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Migrate applies the catalog schema.
func (a *Application) Migrate(ctx context.Context) error {
	return a.repository.Migrate(ctx)
}

// Run performs a single import.
func (a *Application) Run(ctx context.Context) (domain.RunRecord, error) {
	return a.importer.Run(ctx, a.now())
}

// Plan writes the actions the next run would apply, without applying them.
func (a *Application) Plan(ctx context.Context, w io.Writer) error {
	preview, err := a.importer.Preview(ctx, a.now())
	if err != nil {
		return err
	}
	summary := preview.Summary
	summary.AddApplied(preview.Plan.Counts())

	if _, err := io.WriteString(w, preview.Plan.String()); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	_, err = fmt.Fprintf(w, "# %s\n", summary.String())
	return err
}

// LastRun returns the newest recorded run, if any.
func (a *Application) LastRun(ctx context.Context) (*domain.RunRecord, error) {
	return a.repository.LastRun(ctx)
}

// Schedule runs the import every configured interval until SIGINT/SIGTERM or ctx cancellation.
func (a *Application) Schedule(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval, a.cfg.Scheduler.Location())
	jobs := usecase.NewScheduler(driver, a.importer, a.logger.With("component", "scheduler"))
	if err := jobs.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "interval", a.cfg.Scheduler.Interval.String(), "timezone", a.cfg.Scheduler.Location().String())

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return jobs.Stop(stopCtx)
}

func (a *Application) now() time.Time {
	return time.Now().In(a.cfg.Scheduler.Location())
}
