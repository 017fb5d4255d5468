package planning

import (
	"math"
	"time"

	"github.com/fernandoirangph/pms-i/internal/status"
	"github.com/shopspring/decimal"
)

// Project groups tasks and owns a budget ceiling. Its stored status is
// a fallback: when either date is set, the effective status is derived
// from the dates at read time.
type Project struct {
	ID            int64
	Name          string
	Description   string
	ManualStatus  status.Status
	StartDate     *time.Time
	EndDate       *time.Time
	BudgetCeiling decimal.Decimal // zero means no budget allocated
	CreatedBy     int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *Project) Window() status.Window {
	return status.Window{Start: p.StartDate, End: p.EndDate}
}

// EffectiveStatus is the date-derived status presented to callers. The
// stored field is never authoritative while a date is set.
func (p *Project) EffectiveStatus(now time.Time) status.Status {
	return status.Derive(status.Projects, p.ManualStatus, p.Window(), now)
}

// Task belongs to a project. Its derivation window comes from its
// single optional time log, not from fields of its own.
type Task struct {
	ID             int64
	ProjectID      int64
	Title          string
	Description    string
	ManualStatus   status.Status
	Priority       string
	AssignedUserID *int64
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EffectiveStatus derives the task's status from its time log. A nil
// log, or one with neither bound set, falls back to the stored status.
func (t *Task) EffectiveStatus(log *TimeLog, now time.Time) status.Status {
	w := status.Window{}
	if log != nil {
		w = log.Window()
	}
	return status.Derive(status.Tasks, t.ManualStatus, w, now)
}

// TimeLog records when work on a task started and ended. At most one
// exists per task.
type TimeLog struct {
	ID          int64
	TaskID      int64
	UserID      int64
	Start       *time.Time
	End         *time.Time
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (tl *TimeLog) Window() status.Window {
	return status.Window{Start: tl.Start, End: tl.End}
}

// HoursSpent is the logged duration in hours, rounded to 2 decimals,
// or nil when either bound is missing.
func (tl *TimeLog) HoursSpent() *float64 {
	if tl.Start == nil || tl.End == nil {
		return nil
	}
	hours := tl.End.Sub(*tl.Start).Seconds() / 3600
	rounded := math.Round(hours*100) / 100
	return &rounded
}

// TaskWithLog pairs a task with its time log (nil when none) for bulk
// reads by the reconciler.
type TaskWithLog struct {
	Task *Task
	Log  *TimeLog
}
