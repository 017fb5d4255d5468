package cart

import "errors"

var (
	// ErrEmptyCart is returned by checkout when the user has no open
	// cart or the open cart holds no lines.
	ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

	ErrLineNotFound = errors.New("cart line not found in active cart")

	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)
