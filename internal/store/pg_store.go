package store

import (
	"context"
	"errors"
	"fmt"

	perrors "github.com/abgdnv/productapi/internal/errors"
	"github.com/abgdnv/productapi/internal/store/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore implements ProductStore using PostgreSQL as the data store.
type PgStore struct {
	q *db.Queries
}

// NewPgStore creates a new instance of ProductStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{
		q: db.New(dbp),
	}
}

// FindAll retrieves all products in insertion order.
func (p *PgStore) FindAll(ctx context.Context) ([]db.Product, error) {
	products, err := p.q.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find all products: %w", err)
	}
	return products, nil
}

// FindByID retrieves a product by its unique identifier.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) FindByID(ctx context.Context, id int64) (*db.Product, error) {
	product, err := p.q.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return &product, nil
}

func (p *PgStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	exists, err := p.q.ExistsByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to check product existence: %w", err)
	}
	return exists, nil
}

// Create adds a new product to the system.
// Returns an error if the product cannot be created.
func (p *PgStore) Create(ctx context.Context, params db.CreateParams) (*db.Product, error) {
	product, err := p.q.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return &product, nil
}

// Update modifies an existing product's details.
// Returns ErrUpdateConflict if the row disappeared before the write.
func (p *PgStore) Update(ctx context.Context, params db.UpdateParams) error {
	count, err := p.q.Update(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if count == 0 {
		return perrors.ErrUpdateConflict
	}
	return nil
}

// DeleteByID removes a product by its unique identifier.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) DeleteByID(ctx context.Context, id int64) error {
	count, err := p.q.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete product by ID: %w", err)
	}
	if count == 0 {
		return perrors.ErrProductNotFound
	}
	return nil
}
