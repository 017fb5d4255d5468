package cart

import "github.com/fernandoirangph/pms-i/internal/cart/domain"

// Cart and Line live in the leaf domain package so the cache and
// repository subpackages can share them without importing this package.
type (
	Cart = domain.Cart
	Line = domain.Line
)
