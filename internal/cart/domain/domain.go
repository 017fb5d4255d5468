package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is a user's order-in-progress. At most one open (not checked
// out) cart exists per user; checkout is its terminal transition.
type Cart struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Lines      []Line     `json:"lines"`
	CheckedOut bool       `json:"checked_out"`
	CheckoutAt *time.Time `json:"checkout_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Line is one product in a cart. UnitPrice is snapshotted from the
// product when the line is added (or re-added); quantity updates keep
// the snapshot. LineTotal is always Quantity x UnitPrice.
type Line struct {
	ID        string          `json:"id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	AddedAt   time.Time       `json:"added_at"`
}

// FindLine returns the cart's line for the given product, or nil.
func (c *Cart) FindLine(productID int64) *Line {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i]
		}
	}
	return nil
}

// FindLineByID returns the cart's line with the given id, or nil.
func (c *Cart) FindLineByID(lineID string) *Line {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			return &c.Lines[i]
		}
	}
	return nil
}

// Total is the sum of the cart's line totals.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for i := range c.Lines {
		total = total.Add(c.Lines[i].LineTotal)
	}
	return total
}
