package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualDriver struct {
	job     func(time.Time)
	stopped bool
}

func (m *manualDriver) Start(_ context.Context, job func(time.Time)) error {
	m.job = job
	return nil
}

func (m *manualDriver) Stop(context.Context) error {
	m.stopped = true
	return nil
}

func TestSchedulerRunsImporterOnTrigger(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{}
	imp := newTestImporter(t, &fakeSource{}, repo, nil, func(d *ImporterDeps) { d.Enabled = false })
	driver := &manualDriver{}
	s := NewScheduler(driver, imp, nil)

	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, driver.job)

	driver.job(runAt)
	driver.job(runAt.Add(7 * 24 * time.Hour))
	require.Len(t, repo.runs, 2)
	assert.Equal(t, runAt.Add(7*24*time.Hour), repo.runs[1].StartedAt)

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)
}

func TestSchedulerWithoutDriverIsNoop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil, nil)
	assert.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}
