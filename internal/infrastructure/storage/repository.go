package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ProductImporter/internal/domain"
	"ProductImporter/internal/ports"
)

const (
	productsTable  = "products"
	runsTable      = "import_runs"
	defaultBatch   = 500
	statusActive   = "active"
	statusArchived = "archived"
)

var catalogColumns = []string{
	"product_id", "barcode", "name", "price_range", "category", "status", "import_source",
	"current_week_votes", "total_historical_votes", "is_previous_boycott", "previous_boycott_weeks",
	"last_imported_at",
}

var insertColumns = append(append([]string{}, catalogColumns...), "created_at")

// Repository persists the product catalog and import history through squirrel-built SQL.
type Repository struct {
	db           *sql.DB
	dialect      Dialect
	builder      sq.StatementBuilderType
	importSource string
	logger       *slog.Logger
	now          func() time.Time
}

var _ ports.CatalogRepository = (*Repository)(nil)

// New wires an open database. importSource tags the rows this importer owns.
func New(db *sql.DB, dialect Dialect, importSource string) *Repository {
	return &Repository{
		db:           db,
		dialect:      dialect,
		builder:      sq.StatementBuilder.PlaceholderFormat(dialect.placeholders()),
		importSource: importSource,
		now:          time.Now,
	}
}

// WithLogger attaches a logger for batch-level debug output.
func (r *Repository) WithLogger(logger *slog.Logger) *Repository {
	if logger != nil {
		r.logger = logger.With("component", "storage")
	}
	return r
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// LoadCatalog returns every product carrying a barcode, ordered by barcode.
// Rows from other writers are included so the importer never duplicates their barcodes.
func (r *Repository) LoadCatalog(ctx context.Context) ([]domain.StoredProduct, error) {
	query, args, err := r.builder.
		Select(catalogColumns...).
		From(productsTable).
		Where(sq.And{sq.NotEq{"barcode": nil}, sq.NotEq{"barcode": ""}}).
		OrderBy("barcode").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build catalog query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	products := make([]domain.StoredProduct, 0)
	for rows.Next() {
		product, err := r.scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog: %w", err)
	}

	r.debug("catalog loaded", "rows", len(products))
	return products, nil
}

func (r *Repository) scanProduct(rows *sql.Rows) (domain.StoredProduct, error) {
	var (
		productID, barcode          string
		name, priceRange, category  sql.NullString
		status, importSource, weeks sql.NullString
		currentVotes, totalVotes    sql.NullInt64
		previousBoycott             sql.NullBool
		lastImported                sql.NullTime
	)
	if err := rows.Scan(&productID, &barcode, &name, &priceRange, &category, &status, &importSource,
		&currentVotes, &totalVotes, &previousBoycott, &weeks, &lastImported); err != nil {
		return domain.StoredProduct{}, fmt.Errorf("scan product: %w", err)
	}

	previousWeeks := []string{}
	if weeks.Valid && weeks.String != "" {
		if err := json.Unmarshal([]byte(weeks.String), &previousWeeks); err != nil {
			return domain.StoredProduct{}, fmt.Errorf("decode previous_boycott_weeks for %s: %w", barcode, err)
		}
	}

	product := domain.StoredProduct{
		ProductID:      productID,
		Identifier:     barcode,
		Name:           name.String,
		PriceRangeText: priceRange.String,
		Category:       category.String,
		ImportOwned:    importSource.Valid && importSource.String == r.importSource,
		Lifecycle:      domain.ParseLifecycle(status.String),
		Foreign: domain.ForeignFields{
			CurrentWeekVotes:     int(currentVotes.Int64),
			TotalHistoricalVotes: int(totalVotes.Int64),
			IsPreviousBoycott:    previousBoycott.Bool,
			PreviousBoycottWeeks: previousWeeks,
		},
	}
	if lastImported.Valid {
		product.LastImportedAt = lastImported.Time.UTC()
	}
	return product, nil
}

// Apply writes the plan in chunks of at most opts.BatchSize, each chunk in its own
// transaction. Chunks of different classes touch different identifiers, so up to
// opts.Concurrency chunks run at once.
func (r *Repository) Apply(ctx context.Context, actions []domain.Action, opts ports.ApplyOptions) (domain.ApplyCounts, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatch
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		creates  []domain.CreateAction
		updates  []domain.UpdateAction
		archives []domain.ArchiveAction
	)
	for _, action := range actions {
		switch a := action.(type) {
		case domain.CreateAction:
			creates = append(creates, a)
		case domain.UpdateAction:
			updates = append(updates, a)
		case domain.ArchiveAction:
			archives = append(archives, a)
		default:
			return domain.ApplyCounts{}, fmt.Errorf("unknown action %T", action)
		}
	}

	var (
		mu     sync.Mutex
		counts domain.ApplyCounts
	)
	record := func(fn func(*domain.ApplyCounts)) {
		mu.Lock()
		fn(&counts)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, chunk := range chunks(creates, batchSize) {
		g.Go(func() error {
			n, err := r.inTx(gctx, func(tx *sql.Tx) (int, error) { return r.insertProducts(gctx, tx, chunk) })
			if err != nil {
				return err
			}
			record(func(c *domain.ApplyCounts) { c.Created += n })
			return nil
		})
	}
	for _, chunk := range chunks(updates, batchSize) {
		g.Go(func() error {
			n, err := r.inTx(gctx, func(tx *sql.Tx) (int, error) { return r.updateProducts(gctx, tx, chunk) })
			if err != nil {
				return err
			}
			record(func(c *domain.ApplyCounts) { c.Updated += n })
			return nil
		})
	}
	for _, chunk := range chunks(archives, batchSize) {
		g.Go(func() error {
			n, err := r.inTx(gctx, func(tx *sql.Tx) (int, error) { return r.archiveProducts(gctx, tx, chunk) })
			if err != nil {
				return err
			}
			record(func(c *domain.ApplyCounts) { c.Archived += n })
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return counts, err
	}

	r.debug("plan applied", "created", counts.Created, "updated", counts.Updated, "archived", counts.Archived)
	return counts, nil
}

func (r *Repository) inTx(ctx context.Context, fn func(*sql.Tx) (int, error)) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	n, err := fn(tx)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return n, nil
}

func (r *Repository) insertProducts(ctx context.Context, tx *sql.Tx, batch []domain.CreateAction) (int, error) {
	insert := r.builder.Insert(productsTable).Columns(insertColumns...)
	createdAt := r.now().UTC()

	for _, action := range batch {
		productID, err := uuid.NewV7()
		if err != nil {
			return 0, fmt.Errorf("generate product id: %w", err)
		}
		weeks, err := json.Marshal(nonNil(action.Seed.Foreign.PreviousBoycottWeeks))
		if err != nil {
			return 0, fmt.Errorf("encode previous_boycott_weeks: %w", err)
		}
		insert = insert.Values(
			productID.String(),
			action.Product.Identifier,
			action.Product.Name,
			action.Product.PriceRangeText,
			action.Product.Category,
			statusActive,
			r.importSource,
			action.Seed.Foreign.CurrentWeekVotes,
			action.Seed.Foreign.TotalHistoricalVotes,
			action.Seed.Foreign.IsPreviousBoycott,
			string(weeks),
			action.Seed.LastImportedAt.UTC(),
			createdAt,
		)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			ids := make([]string, 0, len(batch))
			for _, action := range batch {
				ids = append(ids, action.Product.Identifier)
			}
			// The driver does not say which row collided, so the whole chunk is named.
			return 0, fmt.Errorf("insert products: %w", errors.Join(&domain.CatalogInconsistencyError{
				Identifier: strings.Join(ids, ","),
				Reason:     "a barcode in this batch is already present in catalog",
			}, err))
		}
		return 0, fmt.Errorf("insert products: %w", err)
	}
	return affected(res, len(batch)), nil
}

func (r *Repository) updateProducts(ctx context.Context, tx *sql.Tx, batch []domain.UpdateAction) (int, error) {
	total := 0
	for _, action := range batch {
		columns := action.Columns()
		if ts, ok := columns[domain.ColumnLastImportedAt].(time.Time); ok {
			columns[domain.ColumnLastImportedAt] = ts.UTC()
		}
		query, args, err := r.builder.
			Update(productsTable).
			SetMap(columns).
			Where(sq.Eq{"barcode": action.Identifier, "import_source": r.importSource}).
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("build update: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("update product %s: %w", action.Identifier, err)
		}
		total += affected(res, 1)
	}
	return total, nil
}

func (r *Repository) archiveProducts(ctx context.Context, tx *sql.Tx, batch []domain.ArchiveAction) (int, error) {
	ids := make([]string, 0, len(batch))
	for _, action := range batch {
		ids = append(ids, action.Identifier)
	}

	query, args, err := r.builder.
		Update(productsTable).
		Set("status", statusArchived).
		Where(sq.Eq{"barcode": ids, "status": statusActive, "import_source": r.importSource}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build archive: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("archive products: %w", err)
	}
	return affected(res, len(batch)), nil
}

// RecordRun appends one row to the run history.
func (r *Repository) RecordRun(ctx context.Context, run domain.RunRecord) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}
	failed, err := json.Marshal(nonNil(run.FailedSources))
	if err != nil {
		return fmt.Errorf("encode failed sources: %w", err)
	}

	runID := run.RunID
	if runID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate run id: %w", err)
		}
		runID = id.String()
	}

	query, args, err := r.builder.
		Insert(runsTable).
		Columns("run_id", "started_at", "finished_at", "status", "product_count", "summary", "failed_sources").
		Values(runID, run.StartedAt.UTC(), run.FinishedAt.UTC(), string(run.Status), run.ProductCount, string(summary), string(failed)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// LastRun returns the most recent run, or nil when no run was recorded yet.
func (r *Repository) LastRun(ctx context.Context) (*domain.RunRecord, error) {
	query, args, err := r.builder.
		Select("run_id", "started_at", "finished_at", "status", "product_count", "summary", "failed_sources").
		From(runsTable).
		OrderBy("started_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build last run query: %w", err)
	}

	var (
		run             domain.RunRecord
		status          string
		summary, failed string
	)
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&run.RunID, &run.StartedAt, &run.FinishedAt, &status, &run.ProductCount, &summary, &failed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}

	run.Status = domain.RunStatus(status)
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()
	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return nil, fmt.Errorf("decode run summary: %w", err)
	}
	if err := json.Unmarshal([]byte(failed), &run.FailedSources); err != nil {
		return nil, fmt.Errorf("decode failed sources: %w", err)
	}
	return &run, nil
}

func chunks[T any](items []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

func affected(res sql.Result, fallback int) int {
	n, err := res.RowsAffected()
	if err != nil {
		return fallback
	}
	return int(n)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func (r *Repository) debug(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
