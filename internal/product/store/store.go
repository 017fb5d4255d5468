package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/fernandoirangph/pms-i/internal/product"
)

var ErrProductNotFound = errors.New("product not found")

// OutOfStockError reports a product with zero stock.
type OutOfStockError struct {
	ProductID int64
	Requested int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("product %d is out of stock (requested %d)", e.ProductID, e.Requested)
}

// InsufficientStockError reports a quantity that exceeds the product's
// available stock. InCart is the quantity already held by the caller's
// cart line, when one exists; MaxAddable is how much could still be
// added on top of it.
type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
	InCart    int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) MaxAddable() int {
	if n := e.Available - e.InCart; n > 0 {
		return n
	}
	return 0
}

// Store is the stock-bearing view of the catalog consumed by the cart
// engine. DecrementStock and ReleaseStock take the full set of
// per-product quantities for one checkout and apply them
// all-or-nothing: a failure on any product leaves every stock level
// untouched.
type Store interface {
	GetProduct(ctx context.Context, id int64) (*product.Product, error)
	DecrementStock(ctx context.Context, quantities map[int64]int) error
	ReleaseStock(ctx context.Context, quantities map[int64]int) error
	SetStock(ctx context.Context, id int64, stock int) error
}
