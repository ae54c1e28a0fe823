package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ProductImporter/internal/config"
	"ProductImporter/internal/domain"
	"ProductImporter/internal/ports"
)

const testSource = "government-price-data"

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func createTestRepo(t *testing.T) (*Repository, *sql.DB) {
	t.Helper()

	ctx := context.Background()
	db, dialect, err := Open(ctx, config.DatabaseConfig{
		Driver: "sqlite3",
		DSN:    filepath.Join(t.TempDir(), "catalog.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := New(db, dialect, testSource)
	repo.now = func() time.Time { return testNow }
	require.NoError(t, repo.Migrate(ctx))
	return repo, db
}

func seedRow(t *testing.T, db *sql.DB, barcode, status, source string, lastImported any) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO products
		(product_id, barcode, name, status, import_source, current_week_votes, total_historical_votes,
		 is_previous_boycott, previous_boycott_weeks, last_imported_at, created_at)
		VALUES (?, ?, ?, ?, ?, 500, 1200, TRUE, '["2026-W05"]', ?, ?)`,
		"pid-"+barcode, barcode, "stored "+barcode, status, source, lastImported, testNow.Add(-52*7*24*time.Hour))
	require.NoError(t, err)
}

func createAction(id, name string) domain.CreateAction {
	return domain.CreateAction{
		Product: domain.CanonicalProduct{
			Identifier:     id,
			Name:           name,
			PriceLow:       decimal.NewFromInt(8),
			PriceHigh:      decimal.NewFromInt(12),
			Sources:        []string{"A", "B"},
			PriceRangeText: "₪8–12",
		},
		Seed: domain.StoredProduct{
			Identifier:     id,
			ImportOwned:    true,
			Lifecycle:      domain.LifecycleActive,
			LastImportedAt: testNow,
			Foreign:        domain.ForeignFields{PreviousBoycottWeeks: []string{}},
		},
	}
}

func TestParseDialect(t *testing.T) {
	t.Parallel()

	d, err := ParseDialect("postgresql")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, d)

	d, err = ParseDialect("sqlite")
	require.NoError(t, err)
	assert.Equal(t, DialectSQLite, d)

	_, err = ParseDialect("mysql")
	assert.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	repo, _ := createTestRepo(t)
	require.NoError(t, repo.Migrate(context.Background()))
}

func TestLoadCatalogMapsRows(t *testing.T) {
	t.Parallel()

	repo, db := createTestRepo(t)
	seedRow(t, db, "222", "boycotted", testSource, testNow.Add(-time.Hour))
	seedRow(t, db, "111", "active", "manual", nil)
	_, err := db.Exec(`INSERT INTO products (product_id, barcode, created_at) VALUES ('no-barcode', NULL, ?)`, testNow)
	require.NoError(t, err)

	catalog, err := repo.LoadCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, catalog, 2)

	manual := catalog[0]
	assert.Equal(t, "111", manual.Identifier)
	assert.False(t, manual.ImportOwned)
	assert.True(t, manual.LastImportedAt.IsZero())

	owned := catalog[1]
	assert.Equal(t, "222", owned.Identifier)
	assert.True(t, owned.ImportOwned)
	assert.Equal(t, domain.LifecycleExempt, owned.Lifecycle)
	assert.True(t, owned.LastImportedAt.Equal(testNow.Add(-time.Hour)))
	assert.Equal(t, domain.ForeignFields{
		CurrentWeekVotes:     500,
		TotalHistoricalVotes: 1200,
		IsPreviousBoycott:    true,
		PreviousBoycottWeeks: []string{"2026-W05"},
	}, owned.Foreign)
}

func TestApplyCreatesUpdatesAndArchives(t *testing.T) {
	t.Parallel()

	repo, db := createTestRepo(t)
	ctx := context.Background()
	seedRow(t, db, "upd", "active", testSource, testNow.Add(-7*24*time.Hour))
	seedRow(t, db, "old", "active", testSource, testNow.Add(-60*24*time.Hour))
	seedRow(t, db, "gone", "archived", testSource, testNow.Add(-60*24*time.Hour))

	actions := []domain.Action{
		createAction("new1", "Milk"),
		createAction("new2", "Eggs"),
		createAction("new3", "Rice"),
		domain.UpdateAction{Identifier: "upd", Fields: domain.ImportFields{
			Name: "Bread", PriceRangeText: "₪10", Category: "Bakery", LastImportedAt: testNow,
		}},
		domain.ArchiveAction{Identifier: "old"},
		domain.ArchiveAction{Identifier: "gone"},
	}

	counts, err := repo.Apply(ctx, actions, ports.ApplyOptions{BatchSize: 2, Concurrency: 3})
	require.NoError(t, err)
	assert.Equal(t, domain.ApplyCounts{Created: 3, Updated: 1, Archived: 1}, counts)

	catalog, err := repo.LoadCatalog(ctx)
	require.NoError(t, err)
	byID := map[string]domain.StoredProduct{}
	for _, p := range catalog {
		byID[p.Identifier] = p
	}

	created := byID["new1"]
	assert.True(t, created.ImportOwned)
	assert.Equal(t, domain.LifecycleActive, created.Lifecycle)
	assert.Equal(t, "₪8–12", created.PriceRangeText)
	assert.Equal(t, domain.ForeignFields{PreviousBoycottWeeks: []string{}}, created.Foreign)
	assert.Len(t, created.ProductID, 36)
	assert.NotEqual(t, byID["new1"].ProductID, byID["new2"].ProductID)

	updated := byID["upd"]
	assert.Equal(t, "Bread", updated.Name)
	assert.Equal(t, "Bakery", updated.Category)
	assert.True(t, updated.LastImportedAt.Equal(testNow))
	assert.Equal(t, 500, updated.Foreign.CurrentWeekVotes, "foreign fields must survive an update")
	assert.True(t, updated.Foreign.IsPreviousBoycott)

	assert.Equal(t, domain.LifecycleArchived, byID["old"].Lifecycle)
	assert.Equal(t, domain.LifecycleArchived, byID["gone"].Lifecycle)
}

func TestApplyNeverTouchesForeignRows(t *testing.T) {
	t.Parallel()

	repo, db := createTestRepo(t)
	ctx := context.Background()
	seedRow(t, db, "manual", "active", "manual", testNow.Add(-60*24*time.Hour))

	counts, err := repo.Apply(ctx, []domain.Action{
		domain.UpdateAction{Identifier: "manual", Fields: domain.ImportFields{Name: "Hijack", LastImportedAt: testNow}},
		domain.ArchiveAction{Identifier: "manual"},
	}, ports.ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.ApplyCounts{}, counts)

	catalog, err := repo.LoadCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	assert.Equal(t, "stored manual", catalog[0].Name)
	assert.Equal(t, domain.LifecycleActive, catalog[0].Lifecycle)
}

func TestApplyDuplicateCreateIsInconsistency(t *testing.T) {
	t.Parallel()

	repo, db := createTestRepo(t)
	seedRow(t, db, "dup", "active", "manual", nil)

	_, err := repo.Apply(context.Background(), []domain.Action{
		createAction("fresh", "Bread"),
		createAction("dup", "Milk"),
	}, ports.ApplyOptions{BatchSize: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCatalogInconsistency))

	var inc *domain.CatalogInconsistencyError
	require.True(t, errors.As(err, &inc))
	assert.Equal(t, "fresh,dup", inc.Identifier)
}

func TestRecordAndReadLastRun(t *testing.T) {
	t.Parallel()

	repo, _ := createTestRepo(t)
	ctx := context.Background()

	last, err := repo.LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, repo.RecordRun(ctx, domain.RunRecord{
		StartedAt:  testNow.Add(-time.Hour),
		FinishedAt: testNow.Add(-time.Hour + time.Minute),
		Status:     domain.RunFailed,
	}))
	require.NoError(t, repo.RecordRun(ctx, domain.RunRecord{
		RunID:         "run-2",
		StartedAt:     testNow,
		FinishedAt:    testNow.Add(time.Minute),
		Status:        domain.RunSuccess,
		ProductCount:  42,
		Summary:       domain.RunSummary{Created: 40, Updated: 2, RejectedByPrice: 7},
		FailedSources: []string{"Victory"},
	}))

	last, err = repo.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "run-2", last.RunID)
	assert.Equal(t, domain.RunSuccess, last.Status)
	assert.Equal(t, 42, last.ProductCount)
	assert.Equal(t, 7, last.Summary.RejectedByPrice)
	assert.Equal(t, []string{"Victory"}, last.FailedSources)
	assert.True(t, last.StartedAt.Equal(testNow))
}

func TestChunks(t *testing.T) {
	t.Parallel()

	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks([]int{1, 2, 3, 4, 5}, 2))
	assert.Empty(t, chunks([]int{}, 3))
}
