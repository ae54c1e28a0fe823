package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ProductImporter/internal/admission"
	"ProductImporter/internal/aggregate"
	"ProductImporter/internal/domain"
	"ProductImporter/internal/logging"
	"ProductImporter/internal/normalize"
	"ProductImporter/internal/ports"
	"ProductImporter/internal/reconcile"
)

// ErrNoObservations fails a run whose chains produced nothing usable.
var ErrNoObservations = errors.New("no valid observations collected")

// ImporterDeps wires all driven adapters and policies into one import run.
type ImporterDeps struct {
	Source         ports.ObservationSource
	Repository     ports.CatalogRepository
	Notifier       ports.Notifier
	Policy         normalize.Policy
	Rules          admission.Rules
	StaleThreshold time.Duration
	Apply          ports.ApplyOptions
	DryRun         bool
	Enabled        bool
	Logger         *slog.Logger
}

// Importer implements the batch import workflow: fetch, aggregate, admit, reconcile, apply.
type Importer struct {
	source         ports.ObservationSource
	repository     ports.CatalogRepository
	notifier       ports.Notifier
	policy         normalize.Policy
	filter         *admission.Filter
	staleThreshold time.Duration
	apply          ports.ApplyOptions
	dryRun         bool
	enabled        bool
	logger         *slog.Logger
	clock          func() time.Time
}

// Preview is a computed but unapplied run.
type Preview struct {
	Plan          *reconcile.Plan
	Summary       domain.RunSummary
	Accepted      int
	FailedSources []string
}

// NewImporter validates the admission rules and constructs the use case.
func NewImporter(deps ImporterDeps) (*Importer, error) {
	filter, err := admission.New(deps.Rules)
	if err != nil {
		return nil, fmt.Errorf("admission rules: %w", err)
	}

	threshold := deps.StaleThreshold
	if threshold <= 0 {
		threshold = reconcile.DefaultStaleThreshold
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	policy := deps.Policy
	if policy == nil {
		policy = normalize.NewTokenPolicy()
	}

	return &Importer{
		source:         deps.Source,
		repository:     deps.Repository,
		notifier:       deps.Notifier,
		policy:         policy,
		filter:         filter,
		staleThreshold: threshold,
		apply:          deps.Apply,
		dryRun:         deps.DryRun,
		enabled:        deps.Enabled,
		logger:         logger,
		clock:          time.Now,
	}, nil
}

// Run executes one import. The returned record is also persisted and announced when
// a repository or notifier is configured; dry runs persist nothing.
func (i *Importer) Run(ctx context.Context, now time.Time) (domain.RunRecord, error) {
	record := domain.RunRecord{StartedAt: now}
	if id, err := uuid.NewV7(); err == nil {
		record.RunID = id.String()
	}

	if !i.enabled {
		i.logger.Info("import disabled, skipping run")
		record.Status = domain.RunSkipped
		return i.finish(ctx, record, nil)
	}

	preview, err := i.Preview(ctx, now)
	record.Summary = preview.Summary
	record.FailedSources = preview.FailedSources
	if err != nil {
		record.Status = domain.RunFailed
		return i.finish(ctx, record, err)
	}

	if i.dryRun {
		record.Status = domain.RunDryRun
		record.Summary.AddApplied(preview.Plan.Counts())
		record.ProductCount = record.Summary.Created + record.Summary.Updated
		i.logger.Info("dry run planned", "actions", len(preview.Plan.Actions), "summary", record.Summary.String())
		return i.finish(ctx, record, nil)
	}

	counts, err := i.repository.Apply(ctx, preview.Plan.Actions, i.apply)
	record.Summary.AddApplied(counts)
	record.ProductCount = record.Summary.Created + record.Summary.Updated
	if err != nil {
		record.Status = domain.RunFailed
		return i.finish(ctx, record, fmt.Errorf("apply plan: %w", err))
	}

	record.Status = domain.RunSuccess
	return i.finish(ctx, record, nil)
}

// Preview computes the reconciliation plan against the current catalog without writing.
func (i *Importer) Preview(ctx context.Context, now time.Time) (Preview, error) {
	var preview Preview
	if i.source == nil {
		return preview, errors.New("observation source is not configured")
	}
	if i.repository == nil {
		return preview, errors.New("catalog repository is not configured")
	}

	report, err := i.source.Fetch(ctx)
	preview.FailedSources = report.Failed
	if err != nil {
		return preview, fmt.Errorf("fetch observations: %w", err)
	}
	i.logger.Debug("observations fetched", "count", len(report.Observations), "failed_sources", len(report.Failed))

	agg := aggregate.Aggregate(report.Observations, i.policy)
	preview.Summary.InvalidObservations = len(agg.Invalid)
	for _, invalid := range agg.Invalid {
		i.logger.Debug("observation dropped", "identifier", invalid.Identifier, "source", invalid.Source, "reason", invalid.Reason)
	}
	if len(agg.Order) == 0 {
		return preview, ErrNoObservations
	}

	candidates, malformed := agg.Candidates()
	preview.Summary.MalformedCandidates = len(malformed)
	for _, m := range malformed {
		i.logger.Warn("candidate isolated", "identifier", m.Identifier, "reason", m.Reason)
	}

	accepted, rejected := i.filter.Admit(candidates)
	preview.Summary.Add(rejected)
	preview.Accepted = len(accepted)
	i.logger.Info("candidates admitted", "candidates", len(candidates), "accepted", len(accepted), "rejected", rejected.Rejected())

	stored, err := i.repository.LoadCatalog(ctx)
	if err != nil {
		return preview, fmt.Errorf("load catalog: %w", err)
	}

	plan, err := reconcile.Reconcile(accepted, reconcile.NewSnapshot(stored), now, i.staleThreshold)
	if err != nil {
		return preview, fmt.Errorf("reconcile: %w", err)
	}
	preview.Plan = plan
	preview.Summary.Inconsistencies = len(plan.Inconsistencies)
	for _, inc := range plan.Inconsistencies {
		i.logger.Warn("catalog inconsistency", "identifier", inc.Identifier, "reason", inc.Reason)
	}

	return preview, nil
}

func (i *Importer) finish(ctx context.Context, record domain.RunRecord, runErr error) (domain.RunRecord, error) {
	record.FinishedAt = i.clock()
	if record.FinishedAt.Before(record.StartedAt) {
		record.FinishedAt = record.StartedAt
	}

	attrs := []any{"status", record.Status, "products", record.ProductCount, "summary", record.Summary.String()}
	if runErr != nil {
		i.logger.Error("import run failed", append(attrs, "error", runErr)...)
	} else {
		i.logger.Info("import run finished", attrs...)
	}

	if record.Status == domain.RunDryRun {
		return record, runErr
	}

	if i.repository != nil {
		if err := i.repository.RecordRun(ctx, record); err != nil {
			i.logger.Error("record run failed", "error", err)
			if runErr == nil {
				runErr = fmt.Errorf("record run: %w", err)
			}
		}
	}

	if i.notifier != nil {
		if err := i.notifier.PublishReport(ctx, buildReportMessage(record)); err != nil {
			i.logger.Warn("publish report failed", "error", err)
		}
	}

	return record, runErr
}

func buildReportMessage(record domain.RunRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product import %s\n", record.Status)
	fmt.Fprintf(&b, "Products imported: %d\n", record.ProductCount)
	fmt.Fprintf(&b, "Created %d, updated %d, archived %d\n", record.Summary.Created, record.Summary.Updated, record.Summary.Archived)
	if rejected := record.Summary.Rejected(); rejected > 0 {
		fmt.Fprintf(&b, "Rejected %d (price %d, pattern %d, sources %d, category %d)\n", rejected,
			record.Summary.RejectedByPrice, record.Summary.RejectedByPattern,
			record.Summary.RejectedBySourceCount, record.Summary.RejectedByCategory)
	}
	if record.Summary.InvalidObservations > 0 || record.Summary.MalformedCandidates > 0 || record.Summary.Inconsistencies > 0 {
		fmt.Fprintf(&b, "Invalid %d, malformed %d, inconsistent %d\n",
			record.Summary.InvalidObservations, record.Summary.MalformedCandidates, record.Summary.Inconsistencies)
	}
	if len(record.FailedSources) > 0 {
		fmt.Fprintf(&b, "Failed chains: %s\n", strings.Join(record.FailedSources, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
