package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line is a single allocation against a project's budget ceiling. The
// sum of a project's line amounts never exceeds the ceiling; every
// create and update is gated by the ledger before it is persisted.
type Line struct {
	ID          int64
	ProjectID   int64
	Amount      decimal.Decimal
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
