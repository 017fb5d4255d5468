package cache

import (
	"context"
	"errors"

	cart "github.com/fernandoirangph/pms-i/internal/cart/domain"
)

type CartCache interface {
	Get(ctx context.Context, userID string) (*cart.Cart, error)
	Set(ctx context.Context, userID string, c *cart.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
