package repository

import (
	"context"
	"errors"
	"time"

	cart "github.com/fernandoirangph/pms-i/internal/cart/domain"
)

var (
	ErrCartNotFound = errors.New("open cart not found")
	ErrLineNotFound = errors.New("line not found in cart")
)

// Repository defines the interface for cart persistence. Consumers
// define this interface, not the MongoDB implementation.
type Repository interface {
	// OpenCart returns the user's open cart, ErrCartNotFound when none
	// exists.
	OpenCart(ctx context.Context, userID string) (*cart.Cart, error)
	// FindOrCreateOpenCart returns the user's open cart, creating an
	// empty one when missing. The one-open-cart-per-user invariant is
	// enforced by a unique index, not by the caller.
	FindOrCreateOpenCart(ctx context.Context, userID string) (*cart.Cart, error)
	// UpsertLine replaces the open cart's line for the product, or
	// appends it when the product is not in the cart yet.
	UpsertLine(ctx context.Context, userID string, line cart.Line) error
	// SetLine overwrites an existing line identified by its id.
	SetLine(ctx context.Context, userID string, line cart.Line) error
	// RemoveLine deletes a line from the open cart.
	RemoveLine(ctx context.Context, userID, lineID string) error
	// MarkCheckedOut freezes the given lines and flips the open cart
	// to checked out with the given timestamp.
	MarkCheckedOut(ctx context.Context, userID string, at time.Time, lines []cart.Line) (*cart.Cart, error)
	// DeleteOpenCart drops the user's open cart entirely.
	DeleteOpenCart(ctx context.Context, userID string) error
	// StaleOpenCarts lists users whose open cart was last touched
	// before the cutoff, for the abandoned-cart sweep.
	StaleOpenCarts(ctx context.Context, before time.Time) ([]string, error)
}
