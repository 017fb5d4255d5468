package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var base = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func ts(offset time.Duration) *time.Time {
	t := base.Add(offset)
	return &t
}

func TestDerive_NoWindowReturnsManual(t *testing.T) {
	for _, manual := range []Status{TaskPending, TaskInProgress, TaskCompleted} {
		got := Derive(Tasks, manual, Window{}, base)
		assert.Equal(t, manual, got)
	}
}

func TestDerive_BothBounds(t *testing.T) {
	w := Window{Start: ts(-24 * time.Hour), End: ts(24 * time.Hour)}

	tests := []struct {
		name string
		now  time.Time
		want Status
	}{
		{"before start", base.Add(-48 * time.Hour), TaskPending},
		{"inside window", base, TaskInProgress},
		{"after end", base.Add(48 * time.Hour), TaskCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(Tasks, TaskPending, w, tt.now))
		})
	}
}

// Manual status is superseded whenever a timestamp is present: a task
// logged from yesterday to tomorrow is in progress even if it is still
// stored as pending.
func TestDerive_ManualSuperseded(t *testing.T) {
	w := Window{Start: ts(-24 * time.Hour), End: ts(24 * time.Hour)}

	got := Derive(Tasks, TaskPending, w, base)
	assert.Equal(t, TaskInProgress, got)

	got = Derive(Tasks, TaskCompleted, w, base)
	assert.Equal(t, TaskInProgress, got)
}

func TestDerive_OnlyStart(t *testing.T) {
	w := Window{Start: ts(0)}

	assert.Equal(t, TaskPending, Derive(Tasks, TaskCompleted, w, base.Add(-time.Minute)))
	assert.Equal(t, TaskInProgress, Derive(Tasks, TaskCompleted, w, base.Add(time.Minute)))
	// A started task never derives to completed without an end bound.
	assert.Equal(t, TaskInProgress, Derive(Tasks, TaskCompleted, w, base.Add(1000*time.Hour)))
}

func TestDerive_OnlyEnd(t *testing.T) {
	w := Window{End: ts(0)}

	assert.Equal(t, TaskInProgress, Derive(Tasks, TaskPending, w, base.Add(-time.Minute)))
	assert.Equal(t, TaskCompleted, Derive(Tasks, TaskPending, w, base.Add(time.Minute)))
}

// Both bounds are inclusive of in-progress: at exactly now == Start the
// entity has started, at exactly now == End it has not completed yet.
func TestDerive_BoundaryInclusivity(t *testing.T) {
	start := ts(0)
	end := ts(time.Hour)
	w := Window{Start: start, End: end}

	assert.Equal(t, TaskInProgress, Derive(Tasks, TaskPending, w, *start))
	assert.Equal(t, TaskInProgress, Derive(Tasks, TaskPending, w, *end))
}

func TestDerive_ZeroWidthWindow(t *testing.T) {
	w := Window{Start: ts(0), End: ts(0)}

	assert.Equal(t, TaskPending, Derive(Tasks, TaskPending, w, base.Add(-time.Nanosecond)))
	assert.Equal(t, TaskInProgress, Derive(Tasks, TaskPending, w, base))
	assert.Equal(t, TaskCompleted, Derive(Tasks, TaskPending, w, base.Add(time.Nanosecond)))
}

func TestDerive_OnHoldIsSticky(t *testing.T) {
	w := Window{Start: ts(-24 * time.Hour), End: ts(24 * time.Hour)}

	got := Derive(Projects, ProjectOnHold, w, base)
	assert.Equal(t, ProjectOnHold, got)

	// Clearing the window also leaves the manual value in place.
	got = Derive(Projects, ProjectOnHold, Window{}, base)
	assert.Equal(t, ProjectOnHold, got)
}

func TestDerive_ProjectVocabulary(t *testing.T) {
	w := Window{Start: ts(-24 * time.Hour), End: ts(24 * time.Hour)}

	assert.Equal(t, ProjectNotStarted, Derive(Projects, ProjectNotStarted, w, base.Add(-48*time.Hour)))
	assert.Equal(t, ProjectInProgress, Derive(Projects, ProjectNotStarted, w, base))
	assert.Equal(t, ProjectCompleted, Derive(Projects, ProjectNotStarted, w, base.Add(48*time.Hour)))

	// Cancelled is an ordinary manual value: with a window present the
	// derivation wins, without one it is returned unchanged.
	assert.Equal(t, ProjectInProgress, Derive(Projects, ProjectCancelled, w, base))
	assert.Equal(t, ProjectCancelled, Derive(Projects, ProjectCancelled, Window{}, base))
}

func TestDerive_Deterministic(t *testing.T) {
	w := Window{Start: ts(-time.Hour), End: ts(time.Hour)}
	first := Derive(Tasks, TaskPending, w, base)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Derive(Tasks, TaskPending, w, base))
	}
}
