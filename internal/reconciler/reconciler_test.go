package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fernandoirangph/pms-i/internal/planning"
	"github.com/fernandoirangph/pms-i/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	m        sync.Mutex
	projects []*planning.Project
	pairs    []planning.TaskWithLog
	listErr  error

	projectWrites map[int64]status.Status
	taskWrites    map[int64]status.Status
}

func newMockStore() *mockStore {
	return &mockStore{
		projectWrites: make(map[int64]status.Status),
		taskWrites:    make(map[int64]status.Status),
	}
}

func (m *mockStore) Projects(context.Context) ([]*planning.Project, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.projects, nil
}

func (m *mockStore) TasksWithLogs(context.Context) ([]planning.TaskWithLog, error) {
	m.m.Lock()
	defer m.m.Unlock()
	return m.pairs, nil
}

func (m *mockStore) SetProjectStatus(_ context.Context, projectID int64, st status.Status) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.projectWrites[projectID] = st
	return nil
}

func (m *mockStore) SetTaskStatus(_ context.Context, taskID int64, st status.Status) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.taskWrites[taskID] = st
	return nil
}

var sweepNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func newTestReconciler(store *mockStore) *Reconciler {
	r := New(store)
	r.now = func() time.Time { return sweepNow }
	return r
}

func tp(t time.Time) *time.Time { return &t }

func TestSweep_PersistsDriftedProjectStatus(t *testing.T) {
	store := newMockStore()
	store.projects = []*planning.Project{
		{
			// Started yesterday but still stored as not started.
			ID:           1,
			ManualStatus: status.ProjectNotStarted,
			StartDate:    tp(sweepNow.Add(-24 * time.Hour)),
			EndDate:      tp(sweepNow.Add(24 * time.Hour)),
		},
		{
			// Already correct; must not be rewritten.
			ID:           2,
			ManualStatus: status.ProjectInProgress,
			StartDate:    tp(sweepNow.Add(-24 * time.Hour)),
			EndDate:      tp(sweepNow.Add(24 * time.Hour)),
		},
		{
			// No dates; the stored status stands.
			ID:           3,
			ManualStatus: status.ProjectNotStarted,
		},
	}

	r := newTestReconciler(store)
	require.NoError(t, r.Sweep(context.Background()))

	assert.Equal(t, map[int64]status.Status{1: status.ProjectInProgress}, store.projectWrites)
}

func TestSweep_OnHoldProjectIsNeverTouched(t *testing.T) {
	store := newMockStore()
	store.projects = []*planning.Project{
		{
			ID:           1,
			ManualStatus: status.ProjectOnHold,
			StartDate:    tp(sweepNow.Add(-24 * time.Hour)),
			EndDate:      tp(sweepNow.Add(-time.Hour)),
		},
	}

	r := newTestReconciler(store)
	require.NoError(t, r.Sweep(context.Background()))

	assert.Empty(t, store.projectWrites)
}

func TestSweep_PersistsDriftedTaskStatus(t *testing.T) {
	store := newMockStore()
	pending := &planning.Task{ID: 1, ManualStatus: status.TaskPending}
	done := &planning.Task{ID: 2, ManualStatus: status.TaskPending}
	bare := &planning.Task{ID: 3, ManualStatus: status.TaskPending}
	store.pairs = []planning.TaskWithLog{
		{Task: pending, Log: &planning.TimeLog{
			TaskID: 1,
			Start:  tp(sweepNow.Add(-time.Hour)),
			End:    tp(sweepNow.Add(time.Hour)),
		}},
		{Task: done, Log: &planning.TimeLog{
			TaskID: 2,
			Start:  tp(sweepNow.Add(-2 * time.Hour)),
			End:    tp(sweepNow.Add(-time.Hour)),
		}},
		{Task: bare},
	}

	r := newTestReconciler(store)
	require.NoError(t, r.Sweep(context.Background()))

	assert.Equal(t, map[int64]status.Status{
		1: status.TaskInProgress,
		2: status.TaskCompleted,
	}, store.taskWrites)
}

func TestSweep_Idempotent(t *testing.T) {
	store := newMockStore()
	store.projects = []*planning.Project{
		{
			ID:           1,
			ManualStatus: status.ProjectNotStarted,
			StartDate:    tp(sweepNow.Add(-24 * time.Hour)),
		},
	}

	r := newTestReconciler(store)
	require.NoError(t, r.Sweep(context.Background()))
	require.Len(t, store.projectWrites, 1)

	// Simulate the persisted write landing, then sweep again.
	store.projects[0].ManualStatus = store.projectWrites[1]
	store.projectWrites = make(map[int64]status.Status)

	require.NoError(t, r.Sweep(context.Background()))
	assert.Empty(t, store.projectWrites)
}

func TestSweep_PropagatesListError(t *testing.T) {
	store := newMockStore()
	store.listErr = errors.New("database connection error")

	r := newTestReconciler(store)
	assert.Error(t, r.Sweep(context.Background()))
}

func TestStart_RejectsNonPositiveInterval(t *testing.T) {
	r := newTestReconciler(newMockStore())
	assert.Error(t, r.Start(context.Background(), 0))
}
