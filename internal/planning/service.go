package planning

import (
	"context"
	"errors"
	"time"

	"github.com/fernandoirangph/pms-i/internal/status"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrTaskNotFound    = errors.New("task not found")
	ErrTimeLogNotFound = errors.New("time log not found")
	ErrInvalidWindow   = errors.New("time log end precedes start")
)

// Repository is the persistence surface the planning service needs.
// Consumers define this interface, not the sqlite implementation.
type Repository interface {
	GetProject(ctx context.Context, id int64) (*Project, error)
	GetTask(ctx context.Context, id int64) (*Task, error)
	TimeLogForTask(ctx context.Context, taskID int64) (*TimeLog, error)
	UpsertTimeLog(ctx context.Context, log *TimeLog) (int64, error)
	DeleteTimeLogForTask(ctx context.Context, taskID int64) error
	// SetTaskStatus / SetProjectStatus persist a derived status for
	// indexing. The stored value is a cache: reads always recompute.
	SetTaskStatus(ctx context.Context, taskID int64, st status.Status) error
	SetProjectStatus(ctx context.Context, projectID int64, st status.Status) error
	Projects(ctx context.Context) ([]*Project, error)
	TasksWithLogs(ctx context.Context) ([]TaskWithLog, error)
}

// Service exposes effective-status projections and time-log writes.
// Status reads are pure: they derive from the entity's window and the
// clock, never from the stored status column.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ProjectStatus returns the project's effective status at this instant.
func (s *Service) ProjectStatus(ctx context.Context, projectID int64) (status.Status, error) {
	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	return p.EffectiveStatus(s.now()), nil
}

// TaskStatus returns the task's effective status, derived from its
// time log when one exists.
func (s *Service) TaskStatus(ctx context.Context, taskID int64) (status.Status, error) {
	t, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return "", err
	}

	log, err := s.repo.TimeLogForTask(ctx, taskID)
	if err != nil && !errors.Is(err, ErrTimeLogNotFound) {
		return "", err
	}
	return t.EffectiveStatus(log, s.now()), nil
}

// LogTime creates or replaces the task's time log and persists the
// newly derived status as a cache. Either bound may be nil; when both
// are set the end must not precede the start.
func (s *Service) LogTime(ctx context.Context, taskID, userID int64, start, end *time.Time, description string) (*TimeLog, error) {
	if start != nil && end != nil && end.Before(*start) {
		return nil, ErrInvalidWindow
	}

	t, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	log := &TimeLog{
		TaskID:      taskID,
		UserID:      userID,
		Start:       start,
		End:         end,
		Description: description,
	}
	id, err := s.repo.UpsertTimeLog(ctx, log)
	if err != nil {
		return nil, err
	}
	log.ID = id

	// Best effort; the derived status is recomputed on every read
	// regardless.
	derived := t.EffectiveStatus(log, s.now())
	if err := s.repo.SetTaskStatus(ctx, taskID, derived); err != nil {
		return nil, err
	}

	return log, nil
}

// ClearTimeLog removes the task's time log; the effective status
// reverts to the stored one with no transition notification.
func (s *Service) ClearTimeLog(ctx context.Context, taskID int64) error {
	t, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteTimeLogForTask(ctx, taskID); err != nil {
		return err
	}

	return s.repo.SetTaskStatus(ctx, taskID, t.ManualStatus)
}

// TaskHours reports the hours logged on a task, nil when the log is
// missing or open-ended.
func (s *Service) TaskHours(ctx context.Context, taskID int64) (*float64, error) {
	log, err := s.repo.TimeLogForTask(ctx, taskID)
	if errors.Is(err, ErrTimeLogNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return log.HoursSpent(), nil
}
