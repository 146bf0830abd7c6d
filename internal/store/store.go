// Package store provides an interface for product storage operations.
package store

import (
	"context"

	"github.com/abgdnv/productapi/internal/store/db"
)

// ProductStore is an interface for product storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, database).
type ProductStore interface {
	// FindAll returns all products ordered by ID.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context) ([]db.Product, error)

	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id int64) (*db.Product, error)

	// ExistsByID reports whether a product with the given ID is present.
	ExistsByID(ctx context.Context, id int64) (bool, error)

	// Create inserts a new product and returns it with the generated ID.
	Create(ctx context.Context, params db.CreateParams) (*db.Product, error)

	// Update overwrites an existing product's fields.
	// Returns ErrUpdateConflict if no row was written.
	Update(ctx context.Context, params db.UpdateParams) error

	// DeleteByID removes a product by its ID.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id int64) error
}
