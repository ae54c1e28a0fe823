package ports

import (
	"context"
	"time"

	"ProductImporter/internal/domain"
)

// FetchReport is the outcome of one collection pass over every configured chain.
type FetchReport struct {
	Observations []domain.RawObservation
	Failed       []string
}

// ObservationSource pulls raw price observations from all chains.
type ObservationSource interface {
	Fetch(ctx context.Context) (FetchReport, error)
}

// ApplyOptions controls how a plan is written to the catalog.
type ApplyOptions struct {
	BatchSize   int
	Concurrency int
}

// CatalogRepository loads the stored catalog and applies reconciliation plans.
type CatalogRepository interface {
	LoadCatalog(ctx context.Context) ([]domain.StoredProduct, error)
	Apply(ctx context.Context, actions []domain.Action, opts ApplyOptions) (domain.ApplyCounts, error)
	RecordRun(ctx context.Context, run domain.RunRecord) error
}

// Notifier streams run reports to Telegram or other channels.
type Notifier interface {
	PublishReport(ctx context.Context, report string) error
}

// Scheduler controls when imports execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
