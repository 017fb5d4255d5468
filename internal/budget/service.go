package budget

import (
	"context"
	"strconv"

	"github.com/fernandoirangph/pms-i/pkg/keylock"
	"github.com/shopspring/decimal"
)

// Store is the persistence surface the ledger needs. Consumers define
// this interface, not the sqlite implementation.
type Store interface {
	// ProjectCeiling returns the project's budget ceiling and whether
	// one is allocated. A missing or non-positive ceiling counts as
	// not allocated.
	ProjectCeiling(ctx context.Context, projectID int64) (decimal.Decimal, bool, error)
	// SumLines returns the exact sum of the project's line amounts,
	// excluding excludeLineID when it is non-zero.
	SumLines(ctx context.Context, projectID, excludeLineID int64) (decimal.Decimal, error)
	GetLine(ctx context.Context, lineID int64) (*Line, error)
	InsertLine(ctx context.Context, line *Line) (int64, error)
	UpdateLine(ctx context.Context, line *Line) error
	DeleteLine(ctx context.Context, lineID int64) error
	ListLines(ctx context.Context, projectID int64) ([]*Line, error)
}

// Ledger admits or rejects budget line mutations against the owning
// project's ceiling. The check-then-write for one project runs inside
// a per-project critical section, so two concurrent admissions can
// never jointly overshoot the ceiling. Different projects proceed
// independently.
type Ledger struct {
	store Store
	locks *keylock.KeyedMutex
}

func NewLedger(store Store) *Ledger {
	return &Ledger{
		store: store,
		locks: keylock.New(),
	}
}

func projectKey(projectID int64) string {
	return strconv.FormatInt(projectID, 10)
}

// AddLine creates a new budget line after verifying the project's
// ceiling admits it. Amounts are fixed-point with 2 fractional digits.
func (l *Ledger) AddLine(ctx context.Context, projectID int64, amount decimal.Decimal, description string) (*Line, error) {
	amount = amount.Round(2)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNonPositiveAmount
	}

	key := projectKey(projectID)
	l.locks.Lock(key)
	defer l.locks.Unlock(key)

	ceiling, allocated, err := l.store.ProjectCeiling(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !allocated {
		return nil, ErrNoCeilingSet
	}

	committed, err := l.store.SumLines(ctx, projectID, 0)
	if err != nil {
		return nil, err
	}

	if committed.Add(amount).GreaterThan(ceiling) {
		return nil, &CeilingExceededError{
			ProjectID: projectID,
			Ceiling:   ceiling,
			Committed: committed,
			Requested: amount,
		}
	}

	line := &Line{
		ProjectID:   projectID,
		Amount:      amount,
		Description: description,
	}
	id, err := l.store.InsertLine(ctx, line)
	if err != nil {
		return nil, err
	}
	line.ID = id
	return line, nil
}

// UpdateLine changes a line's amount and/or description. The ceiling
// check recomputes the committed sum excluding the line under edit, so
// shrinking an amount always succeeds and growing one is admitted only
// up to the remaining capacity.
func (l *Ledger) UpdateLine(ctx context.Context, lineID int64, amount *decimal.Decimal, description *string) (*Line, error) {
	line, err := l.store.GetLine(ctx, lineID)
	if err != nil {
		return nil, err
	}

	key := projectKey(line.ProjectID)
	l.locks.Lock(key)
	defer l.locks.Unlock(key)

	// Re-read under the lock; a concurrent update may have landed.
	line, err = l.store.GetLine(ctx, lineID)
	if err != nil {
		return nil, err
	}

	newAmount := line.Amount
	if amount != nil {
		newAmount = amount.Round(2)
		if newAmount.LessThanOrEqual(decimal.Zero) {
			return nil, ErrNonPositiveAmount
		}
	}

	ceiling, allocated, err := l.store.ProjectCeiling(ctx, line.ProjectID)
	if err != nil {
		return nil, err
	}
	if !allocated {
		return nil, ErrNoCeilingSet
	}

	others, err := l.store.SumLines(ctx, line.ProjectID, lineID)
	if err != nil {
		return nil, err
	}

	if others.Add(newAmount).GreaterThan(ceiling) {
		return nil, &CeilingExceededError{
			ProjectID: line.ProjectID,
			Ceiling:   ceiling,
			Committed: others,
			Requested: newAmount,
		}
	}

	line.Amount = newAmount
	if description != nil {
		line.Description = *description
	}
	if err := l.store.UpdateLine(ctx, line); err != nil {
		return nil, err
	}
	return line, nil
}

// RemoveLine deletes a line unconditionally, freeing capacity.
func (l *Ledger) RemoveLine(ctx context.Context, lineID int64) error {
	line, err := l.store.GetLine(ctx, lineID)
	if err != nil {
		return err
	}

	key := projectKey(line.ProjectID)
	l.locks.Lock(key)
	defer l.locks.Unlock(key)

	return l.store.DeleteLine(ctx, lineID)
}

// Lines lists a project's budget lines.
func (l *Ledger) Lines(ctx context.Context, projectID int64) ([]*Line, error) {
	return l.store.ListLines(ctx, projectID)
}

// Remaining returns the project's unallocated budget capacity.
func (l *Ledger) Remaining(ctx context.Context, projectID int64) (decimal.Decimal, error) {
	ceiling, allocated, err := l.store.ProjectCeiling(ctx, projectID)
	if err != nil {
		return decimal.Zero, err
	}
	if !allocated {
		return decimal.Zero, ErrNoCeilingSet
	}
	committed, err := l.store.SumLines(ctx, projectID, 0)
	if err != nil {
		return decimal.Zero, err
	}
	return ceiling.Sub(committed), nil
}
