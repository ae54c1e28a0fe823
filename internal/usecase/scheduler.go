package usecase

import (
	"context"
	"log/slog"
	"time"

	"ProductImporter/internal/ports"
)

// Scheduler wires the interval driver with the importer use case.
type Scheduler struct {
	driver   ports.Scheduler
	importer *Importer
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring imports.
func NewScheduler(driver ports.Scheduler, importer *Importer, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, importer: importer, logger: logger}
}

// Start registers the importer with the provided scheduler. Run errors are logged;
// the next tick tries again.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.importer == nil {
		return nil
	}

	job := func(trigger time.Time) {
		record, err := s.importer.Run(ctx, trigger)
		if err != nil && s.logger != nil {
			s.logger.Error("scheduled import failed", "run_id", record.RunID, "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
