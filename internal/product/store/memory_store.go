package store

import (
	"context"
	"sort"
	"sync"

	"github.com/fernandoirangph/pms-i/internal/product"
)

// MemoryStore implements Store with in-memory storage. It backs tests
// and single-process deployments; durable setups use SQLiteStore.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]*product.Product
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{products: make(map[int64]*product.Product)}
}

// Put inserts or replaces a catalog entry.
func (s *MemoryStore) Put(p *product.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.products[p.ID] = &cp
}

func (s *MemoryStore) GetProduct(_ context.Context, id int64) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

// DecrementStock applies one checkout's decrements. First pass
// validates every product against live stock, second pass applies, so
// a rejection leaves nothing decremented.
func (s *MemoryStore) DecrementStock(_ context.Context, quantities map[int64]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range sortedIDs(quantities) {
		qty := quantities[id]
		p, ok := s.products[id]
		if !ok {
			return ErrProductNotFound
		}
		if p.Stock == 0 {
			return &OutOfStockError{ProductID: id, Requested: qty}
		}
		if p.Stock < qty {
			return &InsufficientStockError{ProductID: id, Available: p.Stock, Requested: qty}
		}
	}

	for id, qty := range quantities {
		s.products[id].Stock -= qty
	}
	return nil
}

// ReleaseStock returns previously decremented quantities to the pool.
func (s *MemoryStore) ReleaseStock(_ context.Context, quantities map[int64]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range quantities {
		if _, ok := s.products[id]; !ok {
			return ErrProductNotFound
		}
	}
	for id, qty := range quantities {
		s.products[id].Stock += qty
	}
	return nil
}

func (s *MemoryStore) SetStock(_ context.Context, id int64, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return ErrProductNotFound
	}
	p.Stock = stock
	return nil
}

func sortedIDs(quantities map[int64]int) []int64 {
	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
