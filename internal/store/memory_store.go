package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	perrors "github.com/abgdnv/productapi/internal/errors"
	"github.com/abgdnv/productapi/internal/store/db"
)

// MemStore implements ProductStore using an in-memory map. IDs are never reused.
type MemStore struct {
	mu       sync.RWMutex
	products map[int64]db.Product
	nextID   int64
}

var _ ProductStore = (*MemStore)(nil)

// NewMemStore creates an empty in-memory ProductStore.
func NewMemStore() *MemStore {
	return &MemStore{
		products: make(map[int64]db.Product),
		nextID:   1,
	}
}

func (s *MemStore) FindAll(_ context.Context) ([]db.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]db.Product, 0, len(s.products))
	for _, p := range s.products {
		list = append(list, p)
	}
	slices.SortFunc(list, func(a, b db.Product) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return list, nil
}

func (s *MemStore) FindByID(_ context.Context, id int64) (*db.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, perrors.ErrProductNotFound
	}
	return &p, nil
}

func (s *MemStore) ExistsByID(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.products[id]
	return ok, nil
}

func (s *MemStore) Create(_ context.Context, params db.CreateParams) (*db.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := db.Product{
		ID:            s.nextID,
		Name:          params.Name,
		Description:   params.Description,
		Price:         params.Price,
		StockQuantity: params.StockQuantity,
		CreatedAt:     params.CreatedAt,
	}
	s.nextID++
	s.products[p.ID] = p
	return &p, nil
}

func (s *MemStore) Update(_ context.Context, params db.UpdateParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[params.ID]
	if !ok {
		return perrors.ErrUpdateConflict
	}
	p.Name = params.Name
	p.Description = params.Description
	p.Price = params.Price
	p.StockQuantity = params.StockQuantity
	p.UpdatedAt = params.UpdatedAt
	s.products[p.ID] = p
	return nil
}

func (s *MemStore) DeleteByID(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return perrors.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}
