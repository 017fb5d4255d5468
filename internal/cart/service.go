package cart

import (
	"context"
	"errors"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/fernandoirangph/pms-i/internal/cart/cache"
	"github.com/fernandoirangph/pms-i/internal/cart/repository"
	"github.com/fernandoirangph/pms-i/internal/product/store"
	"github.com/fernandoirangph/pms-i/pkg/keylock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// CheckoutRecorder receives the completed cart after a successful
// checkout, typically to append it to a transaction log for downstream
// consumers. Consumers define this interface.
type CheckoutRecorder interface {
	RecordCheckout(ctx context.Context, c *Cart) error
}

// Service gates cart mutations and checkout against live product
// stock. Stock checks on add/update are advisory; the authoritative
// check-and-decrement happens at checkout, inside per-product critical
// sections. Cart mutations for one user are serialized per user.
type Service struct {
	repo     repository.Repository
	cache    cache.CartCache
	products store.Store
	recorder CheckoutRecorder

	userLocks    *keylock.KeyedMutex
	productLocks *keylock.KeyedMutex
	sfg          singleflight.Group // Prevents cache stampede
}

// NewService builds a cart service. recorder may be nil when no
// transaction log is wired.
func NewService(repo repository.Repository, c cache.CartCache, products store.Store, recorder CheckoutRecorder) *Service {
	return &Service{
		repo:         repo,
		cache:        c,
		products:     products,
		recorder:     recorder,
		userLocks:    keylock.New(),
		productLocks: keylock.New(),
	}
}

func productKey(productID int64) string {
	return strconv.FormatInt(productID, 10)
}

// GetCart returns the user's open cart, or an empty one when none
// exists. Reads go through the cache; concurrent misses for the same
// user collapse into one repository fetch.
func (s *Service) GetCart(ctx context.Context, userID string) (*Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		c, err := s.cache.Get(ctx, userID)
		if err == nil {
			return c, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		c, errGet := s.repo.OpenCart(ctx, userID)
		if errors.Is(errGet, repository.ErrCartNotFound) {
			return &Cart{
				UserID:    userID,
				Lines:     nil,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			if errSet := s.cache.Set(context.Background(), userID, c); errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return c, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*Cart), nil
}

// AddToCart adds quantity units of a product to the user's open cart,
// creating the cart and the line as needed. Adding is additive: an
// existing line's quantity grows by quantity, and the unit price is
// re-snapshotted from the product's live price. The stock check is
// against the new total line quantity; the error reports how much the
// user could still add.
func (s *Service) AddToCart(ctx context.Context, userID string, productID int64, quantity int) (*Line, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	s.userLocks.Lock(userID)
	defer s.userLocks.Unlock(userID)

	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.FindOrCreateOpenCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	inCart := 0
	lineID := uuid.NewString()
	if existing := c.FindLine(productID); existing != nil {
		inCart = existing.Quantity
		lineID = existing.ID
	}

	if p.Stock == 0 {
		return nil, &store.OutOfStockError{ProductID: productID, Requested: quantity}
	}

	newQuantity := inCart + quantity
	if p.Stock < newQuantity {
		return nil, &store.InsufficientStockError{
			ProductID: productID,
			Available: p.Stock,
			Requested: newQuantity,
			InCart:    inCart,
		}
	}

	line := Line{
		ID:        lineID,
		ProductID: productID,
		Quantity:  newQuantity,
		UnitPrice: p.Price,
		LineTotal: p.Price.Mul(intToDec(newQuantity)),
		AddedAt:   time.Now(),
	}

	if err := s.repo.UpsertLine(ctx, userID, line); err != nil {
		return nil, err
	}

	s.invalidateCache(userID)
	return &line, nil
}

// UpdateLineQuantity sets a line's quantity to newQuantity (absolute,
// not additive), re-checking against the product's current stock. The
// unit price snapshot is kept; only an explicit re-add refreshes it.
func (s *Service) UpdateLineQuantity(ctx context.Context, userID, lineID string, newQuantity int) (*Line, error) {
	if newQuantity < 1 {
		return nil, ErrInvalidQuantity
	}

	s.userLocks.Lock(userID)
	defer s.userLocks.Unlock(userID)

	c, err := s.repo.OpenCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, ErrLineNotFound
	}
	if err != nil {
		return nil, err
	}

	line := c.FindLineByID(lineID)
	if line == nil {
		return nil, ErrLineNotFound
	}

	p, err := s.products.GetProduct(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}

	if p.Stock == 0 {
		return nil, &store.OutOfStockError{ProductID: line.ProductID, Requested: newQuantity}
	}
	if p.Stock < newQuantity {
		return nil, &store.InsufficientStockError{
			ProductID: line.ProductID,
			Available: p.Stock,
			Requested: newQuantity,
		}
	}

	line.Quantity = newQuantity
	line.LineTotal = line.UnitPrice.Mul(intToDec(newQuantity))

	if err := s.repo.SetLine(ctx, userID, *line); err != nil {
		return nil, err
	}

	s.invalidateCache(userID)
	return line, nil
}

// RemoveLine drops a line from the user's open cart, unconditionally.
func (s *Service) RemoveLine(ctx context.Context, userID, lineID string) error {
	s.userLocks.Lock(userID)
	defer s.userLocks.Unlock(userID)

	err := s.repo.RemoveLine(ctx, userID, lineID)
	if errors.Is(err, repository.ErrCartNotFound) || errors.Is(err, repository.ErrLineNotFound) {
		return ErrLineNotFound
	}
	if err != nil {
		return err
	}

	s.invalidateCache(userID)
	return nil
}

// ClearCart drops the user's open cart entirely.
func (s *Service) ClearCart(ctx context.Context, userID string) error {
	s.userLocks.Lock(userID)
	defer s.userLocks.Unlock(userID)

	err := s.repo.DeleteOpenCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return err
	}

	s.invalidateCache(userID)
	return nil
}

// Checkout atomically transitions the user's open cart to checked out:
// every line is re-validated against live stock under per-product
// locks, stock is decremented all-or-nothing, line totals are frozen at
// the snapshotted unit price, and the cart is stamped. A failure on any
// line leaves every stock level as it was.
func (s *Service) Checkout(ctx context.Context, userID string) (*Cart, error) {
	s.userLocks.Lock(userID)
	defer s.userLocks.Unlock(userID)

	c, err := s.repo.OpenCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}
	if len(c.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	// Lock products in ascending ID order so two overlapping checkouts
	// cannot deadlock.
	quantities := make(map[int64]int, len(c.Lines))
	for i := range c.Lines {
		quantities[c.Lines[i].ProductID] = c.Lines[i].Quantity
	}
	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		s.productLocks.Lock(productKey(id))
	}
	defer func() {
		for _, id := range ids {
			s.productLocks.Unlock(productKey(id))
		}
	}()

	// Re-validate every line against live stock. Price is sticky, stock
	// is not.
	for i := range c.Lines {
		line := &c.Lines[i]

		p, err := s.products.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if p.Stock == 0 {
			return nil, &store.OutOfStockError{ProductID: line.ProductID, Requested: line.Quantity}
		}
		if p.Stock < line.Quantity {
			return nil, &store.InsufficientStockError{
				ProductID: line.ProductID,
				Available: p.Stock,
				Requested: line.Quantity,
			}
		}

		line.LineTotal = line.UnitPrice.Mul(intToDec(line.Quantity))
	}

	if err := s.products.DecrementStock(ctx, quantities); err != nil {
		return nil, err
	}

	now := time.Now()
	checked, err := s.repo.MarkCheckedOut(ctx, userID, now, c.Lines)
	if err != nil {
		// Compensate: the cart stayed open, so the decrement must not
		// stand.
		if relErr := s.products.ReleaseStock(ctx, quantities); relErr != nil {
			log.Printf("failed to release stock after checkout failure for user %s: %v", userID, relErr)
		}
		return nil, err
	}

	if s.recorder != nil {
		if recErr := s.recorder.RecordCheckout(ctx, checked); recErr != nil {
			// Checkout already committed; the reconciling poller picks
			// the transaction up from the cart store.
			log.Printf("failed to record checkout for cart %s: %v", checked.ID, recErr)
		}
	}

	s.invalidateCache(userID)
	return checked, nil
}

// PruneAbandonedCarts clears open carts untouched since the cutoff and
// reports how many were removed. Each cart is cleared under its user's
// lock, so a sweep never races a live mutation.
func (s *Service) PruneAbandonedCarts(ctx context.Context, before time.Time) (int, error) {
	users, err := s.repo.StaleOpenCarts(ctx, before)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, userID := range users {
		if err := s.ClearCart(ctx, userID); err != nil {
			log.Printf("failed to prune cart for user %s: %v", userID, err)
			continue
		}
		pruned++
	}
	return pruned, nil
}

func intToDec(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

func (s *Service) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}
