package product

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Stock is the only shared mutable counter
// on it: checkout decrements it, availability checks read it. Price is
// the live price; carts snapshot it at add-time.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	Stock       int
	CreatedAt   time.Time
}
