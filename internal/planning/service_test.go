package planning

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fernandoirangph/pms-i/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	m          sync.Mutex
	nextID     int64
	projects   map[int64]*Project
	tasks      map[int64]*Task
	logs       map[int64]*TimeLog // keyed by task id
	taskStatus map[int64]status.Status
	projStatus map[int64]status.Status
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		nextID:     1,
		projects:   make(map[int64]*Project),
		tasks:      make(map[int64]*Task),
		logs:       make(map[int64]*TimeLog),
		taskStatus: make(map[int64]status.Status),
		projStatus: make(map[int64]status.Status),
	}
}

func (m *mockRepo) GetProject(_ context.Context, id int64) (*Project, error) {
	m.m.Lock()
	defer m.m.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetTask(_ context.Context, id int64) (*Task, error) {
	m.m.Lock()
	defer m.m.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockRepo) TimeLogForTask(_ context.Context, taskID int64) (*TimeLog, error) {
	m.m.Lock()
	defer m.m.Unlock()
	l, ok := m.logs[taskID]
	if !ok {
		return nil, ErrTimeLogNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *mockRepo) UpsertTimeLog(_ context.Context, log *TimeLog) (int64, error) {
	m.m.Lock()
	defer m.m.Unlock()
	cp := *log
	if existing, ok := m.logs[log.TaskID]; ok {
		cp.ID = existing.ID
	} else {
		cp.ID = m.nextID
		m.nextID++
	}
	m.logs[log.TaskID] = &cp
	return cp.ID, nil
}

func (m *mockRepo) DeleteTimeLogForTask(_ context.Context, taskID int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if _, ok := m.logs[taskID]; !ok {
		return ErrTimeLogNotFound
	}
	delete(m.logs, taskID)
	return nil
}

func (m *mockRepo) SetTaskStatus(_ context.Context, taskID int64, st status.Status) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.taskStatus[taskID] = st
	return nil
}

func (m *mockRepo) SetProjectStatus(_ context.Context, projectID int64, st status.Status) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.projStatus[projectID] = st
	return nil
}

func (m *mockRepo) Projects(_ context.Context) ([]*Project, error) {
	m.m.Lock()
	defer m.m.Unlock()
	var out []*Project
	for _, p := range m.projects {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRepo) TasksWithLogs(_ context.Context) ([]TaskWithLog, error) {
	m.m.Lock()
	defer m.m.Unlock()
	var out []TaskWithLog
	for _, t := range m.tasks {
		tc := *t
		pair := TaskWithLog{Task: &tc}
		if l, ok := m.logs[t.ID]; ok {
			lc := *l
			pair.Log = &lc
		}
		out = append(out, pair)
	}
	return out, nil
}

var testNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo)
	svc.now = func() time.Time { return testNow }
	return svc, repo
}

func tp(t time.Time) *time.Time { return &t }

func TestProjectStatus_DerivedFromDates(t *testing.T) {
	svc, repo := newTestService()
	repo.projects[1] = &Project{
		ID:           1,
		ManualStatus: status.ProjectNotStarted,
		StartDate:    tp(testNow.Add(-24 * time.Hour)),
		EndDate:      tp(testNow.Add(24 * time.Hour)),
	}

	st, err := svc.ProjectStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, status.ProjectInProgress, st)
}

func TestProjectStatus_OnHoldSticky(t *testing.T) {
	svc, repo := newTestService()
	repo.projects[1] = &Project{
		ID:           1,
		ManualStatus: status.ProjectOnHold,
		StartDate:    tp(testNow.Add(-24 * time.Hour)),
		EndDate:      tp(testNow.Add(24 * time.Hour)),
	}

	st, err := svc.ProjectStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, status.ProjectOnHold, st)
}

func TestProjectStatus_NotFound(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.ProjectStatus(context.Background(), 9)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

// A task logged from yesterday to tomorrow is in progress no matter
// what its stored status says.
func TestTaskStatus_LogOverridesManual(t *testing.T) {
	svc, repo := newTestService()
	repo.tasks[1] = &Task{ID: 1, ManualStatus: status.TaskPending}
	repo.logs[1] = &TimeLog{
		ID:     1,
		TaskID: 1,
		Start:  tp(testNow.Add(-24 * time.Hour)),
		End:    tp(testNow.Add(24 * time.Hour)),
	}

	st, err := svc.TaskStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, status.TaskInProgress, st)
}

func TestTaskStatus_NoLogFallsBackToManual(t *testing.T) {
	svc, repo := newTestService()
	repo.tasks[1] = &Task{ID: 1, ManualStatus: status.TaskCompleted}

	st, err := svc.TaskStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, status.TaskCompleted, st)
}

func TestLogTime_UpsertsAndCachesDerivedStatus(t *testing.T) {
	svc, repo := newTestService()
	repo.tasks[1] = &Task{ID: 1, ManualStatus: status.TaskPending}
	ctx := context.Background()

	log, err := svc.LogTime(ctx, 1, 7, tp(testNow.Add(-time.Hour)), tp(testNow.Add(time.Hour)), "pairing")
	require.NoError(t, err)
	assert.NotZero(t, log.ID)

	// Persisted derived status is the cache for indexing.
	assert.Equal(t, status.TaskInProgress, repo.taskStatus[1])

	// Re-logging replaces the single log rather than adding another.
	log2, err := svc.LogTime(ctx, 1, 7, tp(testNow.Add(-2*time.Hour)), tp(testNow.Add(-time.Hour)), "done")
	require.NoError(t, err)
	assert.Equal(t, log.ID, log2.ID)
	assert.Equal(t, status.TaskCompleted, repo.taskStatus[1])
}

func TestLogTime_RejectsInvertedWindow(t *testing.T) {
	svc, repo := newTestService()
	repo.tasks[1] = &Task{ID: 1, ManualStatus: status.TaskPending}

	_, err := svc.LogTime(context.Background(), 1, 7, tp(testNow), tp(testNow.Add(-time.Hour)), "")
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestLogTime_TaskNotFound(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.LogTime(context.Background(), 5, 7, nil, nil, "")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestClearTimeLog_RevertsToManual(t *testing.T) {
	svc, repo := newTestService()
	repo.tasks[1] = &Task{ID: 1, ManualStatus: status.TaskPending}
	ctx := context.Background()

	_, err := svc.LogTime(ctx, 1, 7, tp(testNow.Add(-2*time.Hour)), tp(testNow.Add(-time.Hour)), "")
	require.NoError(t, err)
	assert.Equal(t, status.TaskCompleted, repo.taskStatus[1])

	require.NoError(t, svc.ClearTimeLog(ctx, 1))
	assert.Equal(t, status.TaskPending, repo.taskStatus[1])

	st, err := svc.TaskStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, status.TaskPending, st)
}

func TestTaskHours(t *testing.T) {
	svc, repo := newTestService()
	repo.tasks[1] = &Task{ID: 1, ManualStatus: status.TaskPending}
	ctx := context.Background()

	// No log yet.
	hours, err := svc.TaskHours(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, hours)

	_, err = svc.LogTime(ctx, 1, 7, tp(testNow), tp(testNow.Add(90*time.Minute)), "")
	require.NoError(t, err)

	hours, err = svc.TaskHours(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, hours)
	assert.InDelta(t, 1.5, *hours, 0.001)

	// Open-ended log has no duration.
	_, err = svc.LogTime(ctx, 1, 7, tp(testNow), nil, "")
	require.NoError(t, err)

	hours, err = svc.TaskHours(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, hours)
}

func TestHoursSpent_RoundsToTwoDecimals(t *testing.T) {
	log := &TimeLog{
		Start: tp(testNow),
		End:   tp(testNow.Add(100 * time.Minute)),
	}
	hours := log.HoursSpent()
	require.NotNil(t, hours)
	assert.Equal(t, 1.67, *hours)
}
