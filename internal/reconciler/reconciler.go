// Package reconciler periodically rewrites stored project and task
// statuses with their derived values. Reads always recompute, so the
// sweep only exists to keep the persisted columns usable for filtering
// and reporting; running it twice in a row is a no-op.
package reconciler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fernandoirangph/pms-i/internal/planning"
	"github.com/fernandoirangph/pms-i/internal/status"
	"github.com/robfig/cron/v3"
)

// Store is the slice of the planning repository the sweep needs.
type Store interface {
	Projects(ctx context.Context) ([]*planning.Project, error)
	TasksWithLogs(ctx context.Context) ([]planning.TaskWithLog, error)
	SetProjectStatus(ctx context.Context, projectID int64, st status.Status) error
	SetTaskStatus(ctx context.Context, taskID int64, st status.Status) error
}

// Reconciler wraps the cron-driven status sweep.
type Reconciler struct {
	store Store
	cron  *cron.Cron
	now   func() time.Time
}

func New(store Store) *Reconciler {
	return &Reconciler{
		store: store,
		cron:  cron.New(),
		now:   time.Now,
	}
}

// Start schedules the sweep at the given interval and runs one sweep
// immediately so a fresh deployment does not wait a full tick.
func (r *Reconciler) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	spec := fmt.Sprintf("@every %ds", int(interval.Seconds()))
	if _, err := r.cron.AddFunc(spec, func() {
		if err := r.Sweep(ctx); err != nil {
			log.Printf("status sweep failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule status sweep: %w", err)
	}

	if err := r.Sweep(ctx); err != nil {
		log.Printf("initial status sweep failed: %v", err)
	}

	r.cron.Start()
	return nil
}

func (r *Reconciler) Stop() {
	stopped := r.cron.Stop()
	<-stopped.Done()
}

// Sweep recomputes every project's and task's derived status and
// persists the ones that drifted. A failure on one row is logged and
// the sweep moves on.
func (r *Reconciler) Sweep(ctx context.Context) error {
	now := r.now()

	projects, err := r.store.Projects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	for _, p := range projects {
		derived := p.EffectiveStatus(now)
		if derived == p.ManualStatus {
			continue
		}
		if err := r.store.SetProjectStatus(ctx, p.ID, derived); err != nil {
			log.Printf("failed to persist status for project %d: %v", p.ID, err)
		}
	}

	pairs, err := r.store.TasksWithLogs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	for _, pair := range pairs {
		derived := pair.Task.EffectiveStatus(pair.Log, now)
		if derived == pair.Task.ManualStatus {
			continue
		}
		if err := r.store.SetTaskStatus(ctx, pair.Task.ID, derived); err != nil {
			log.Printf("failed to persist status for task %d: %v", pair.Task.ID, err)
		}
	}

	return nil
}
