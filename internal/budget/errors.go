package budget

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrLineNotFound    = errors.New("budget line not found")

	// ErrNoCeilingSet is returned when the project has no budget
	// allocated, so no line can be admitted against it.
	ErrNoCeilingSet = errors.New("no budget allocated for the project")

	ErrNonPositiveAmount = errors.New("budget line amount must be positive")
)

// CeilingExceededError reports a rejected create or update whose amount
// would push the project's committed total past its ceiling.
type CeilingExceededError struct {
	ProjectID int64
	Ceiling   decimal.Decimal
	Committed decimal.Decimal // sum of the other lines
	Requested decimal.Decimal
}

func (e *CeilingExceededError) Error() string {
	return fmt.Sprintf("budget ceiling exceeded for project %d: ceiling %s, committed %s, requested %s",
		e.ProjectID, e.Ceiling, e.Committed, e.Requested)
}
