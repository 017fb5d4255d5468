package status

import "time"

// Status is the lifecycle state presented to callers. The stored
// ("manual") status is a fallback; whenever a start or end timestamp is
// present the effective status is derived from it instead.
type Status string

// Task statuses.
const (
	TaskPending    Status = "pending"
	TaskInProgress Status = "in_progress"
	TaskCompleted  Status = "completed"
)

// Project statuses.
const (
	ProjectNotStarted Status = "not_started"
	ProjectInProgress Status = "in_progress"
	ProjectOnHold     Status = "on_hold"
	ProjectCompleted  Status = "completed"
	ProjectCancelled  Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// Vocabulary maps the three derived states onto an entity's status
// enum. Paused, when non-empty, names a manual value that date
// derivation never overrides; it stays until the caller changes it or
// clears the timestamps.
type Vocabulary struct {
	NotStarted Status
	InProgress Status
	Completed  Status
	Paused     Status
}

var (
	Tasks = Vocabulary{
		NotStarted: TaskPending,
		InProgress: TaskInProgress,
		Completed:  TaskCompleted,
	}
	Projects = Vocabulary{
		NotStarted: ProjectNotStarted,
		InProgress: ProjectInProgress,
		Completed:  ProjectCompleted,
		Paused:     ProjectOnHold,
	}
)

// Window is the optional start/end pair a status is derived from.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Empty reports whether neither bound is set.
func (w Window) Empty() bool {
	return w.Start == nil && w.End == nil
}

// Derive computes the effective status from the window and the stored
// fallback. It is a pure function of its inputs: same (manual, window,
// now) always yields the same result, and nothing is mutated.
//
// Both bounds are inclusive of "in progress": at now == Start the
// entity has started, at now == End it has not yet completed. A
// zero-width window (Start == End) is in progress exactly at that
// instant.
func Derive(v Vocabulary, manual Status, w Window, now time.Time) Status {
	if v.Paused != "" && manual == v.Paused {
		return manual
	}

	switch {
	case w.Empty():
		return manual
	case w.Start != nil && w.End != nil:
		if now.Before(*w.Start) {
			return v.NotStarted
		}
		if now.After(*w.End) {
			return v.Completed
		}
		return v.InProgress
	case w.Start != nil:
		if now.Before(*w.Start) {
			return v.NotStarted
		}
		return v.InProgress
	default:
		if now.After(*w.End) {
			return v.Completed
		}
		return v.InProgress
	}
}
