// Package service provides the implementation of product-related business logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	perrors "github.com/abgdnv/productapi/internal/errors"
	"github.com/abgdnv/productapi/internal/store"
	"github.com/abgdnv/productapi/internal/store/db"
	"github.com/abgdnv/productapi/pkg/messaging"
	"github.com/abgdnv/productapi/pkg/messaging/events"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// ProductService defines the methods for managing products.
// It abstracts the underlying business logic and data access.
type ProductService interface {
	// FindAll returns all products in insertion order.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context) ([]ProductDto, error)

	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id int64) (*ProductDto, error)

	// Create validates and stores a new product.
	Create(ctx context.Context, input ProductInput) (*ProductDto, error)

	// Update overwrites every writable field of the product with the given ID.
	// Returns ErrIDMismatch if input.ID differs from id, ErrProductNotFound if no product exists.
	Update(ctx context.Context, id int64, input ProductInput) error

	// DeleteByID removes a product by its ID.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id int64) error
}

// Service implements ProductService and provides methods to manage products.
type Service struct {
	repository store.ProductStore
	publisher  messaging.Publisher
	validate   *validator.Validate
	logger     *slog.Logger
	now        func() time.Time

	createdCounter metric.Int64Counter
	updatedCounter metric.Int64Counter
	deletedCounter metric.Int64Counter
}

// NewService creates a new instance of ProductService with the provided repository.
func NewService(repo store.ProductStore, publisher messaging.Publisher, logger *slog.Logger) *Service {
	meter := otel.Meter("product-service")
	return &Service{
		repository:     repo,
		publisher:      publisher,
		validate:       validator.New(),
		logger:         logger.With("component", "service"),
		now:            time.Now,
		createdCounter: mustCounter(meter, "products_created", "Total number of created products"),
		updatedCounter: mustCounter(meter, "products_updated", "Total number of updated products"),
		deletedCounter: mustCounter(meter, "products_deleted", "Total number of deleted products"),
	}
}

func mustCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		panic(fmt.Sprintf("failed to create %s counter: %v", name, err))
	}
	return counter
}

// ProductInput is the writable part of a product as received from clients.
// ID is only compared against the path on update.
type ProductInput struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"        validate:"required,max=100"`
	Description *string          `json:"description" validate:"omitempty,max=500"`
	Price       *decimal.Decimal `json:"price"       validate:"required"`
	Stock       *int32           `json:"stock"       validate:"required"`
}

// ProductDto represents the data transfer object for a product.
type ProductDto struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int32           `json:"stock"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   *time.Time      `json:"updatedAt"`
}

// FindAll retrieves a list of all products and returns them as ProductDTOs.
func (s *Service) FindAll(ctx context.Context) ([]ProductDto, error) {
	products, err := s.repository.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch products: %w", perrors.ErrStorage, err)
	}
	productDTOs := make([]ProductDto, len(products))
	for i, item := range products {
		productDTOs[i] = *toDto(&item)
	}
	return productDTOs, nil
}

// FindByID retrieves a product by its ID and returns it as a ProductDto.
// Returns ErrProductNotFound if no product exists with the given ID.
func (s *Service) FindByID(ctx context.Context, id int64) (*ProductDto, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDto(product), nil
}

// Create creates a new product and returns it as a ProductDto.
func (s *Service) Create(ctx context.Context, input ProductInput) (*ProductDto, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	p, err := s.repository.Create(ctx, db.CreateParams{
		Name:          input.Name,
		Description:   input.Description,
		Price:         *input.Price,
		StockQuantity: *input.Stock,
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create product: %w", perrors.ErrStorage, err)
	}

	s.publish(ctx, events.ProductCreatedEvent{Product: snapshot(p), CreatedAt: p.CreatedAt})
	s.createdCounter.Add(ctx, 1)
	return toDto(p), nil
}

// Update overwrites name, description, price and stock of an existing product.
// A row that vanishes between the read and the write is reported as ErrProductNotFound.
func (s *Service) Update(ctx context.Context, id int64, input ProductInput) error {
	if input.ID != id {
		return fmt.Errorf("path ID %d, body ID %d: %w", id, input.ID, perrors.ErrIDMismatch)
	}
	if err := s.validateInput(input); err != nil {
		return err
	}

	existing, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	updatedAt := s.now().UTC()
	params := db.UpdateParams{
		ID:            existing.ID,
		Name:          input.Name,
		Description:   input.Description,
		Price:         *input.Price,
		StockQuantity: *input.Stock,
		UpdatedAt:     &updatedAt,
	}
	if err := s.repository.Update(ctx, params); err != nil {
		if !errors.Is(err, perrors.ErrUpdateConflict) {
			return fmt.Errorf("%w: failed to update product with ID %d: %w", perrors.ErrStorage, id, err)
		}
		exists, existsErr := s.repository.ExistsByID(ctx, id)
		if existsErr != nil {
			return fmt.Errorf("%w: failed to re-check product with ID %d: %w", perrors.ErrStorage, id, existsErr)
		}
		if !exists {
			s.logger.WarnContext(ctx, "Product deleted while being updated", "ID", id)
			return fmt.Errorf("product with ID %d: %w", id, perrors.ErrProductNotFound)
		}
		return fmt.Errorf("%w: product with ID %d: %w", perrors.ErrStorage, id, err)
	}

	s.publish(ctx, events.ProductUpdatedEvent{
		Product: events.ProductSnapshot{
			ID:          id,
			Name:        params.Name,
			Description: params.Description,
			Price:       params.Price,
			Stock:       params.StockQuantity,
		},
		UpdatedAt: updatedAt,
	})
	s.updatedCounter.Add(ctx, 1)
	return nil
}

// DeleteByID deletes a product by its ID.
// Returns ErrProductNotFound if no product exists with the given ID.
func (s *Service) DeleteByID(ctx context.Context, id int64) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	if err := s.repository.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, perrors.ErrProductNotFound) {
			return fmt.Errorf("product with ID %d: %w", id, err)
		}
		return fmt.Errorf("%w: failed to delete product with ID %d: %w", perrors.ErrStorage, id, err)
	}

	s.publish(ctx, events.ProductDeletedEvent{ProductID: id, DeletedAt: s.now().UTC()})
	s.deletedCounter.Add(ctx, 1)
	return nil
}

// find loads a product, keeping ErrProductNotFound distinct from store failures.
func (s *Service) find(ctx context.Context, id int64) (*db.Product, error) {
	product, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, perrors.ErrProductNotFound) {
			return nil, fmt.Errorf("product with ID %d: %w", id, err)
		}
		return nil, fmt.Errorf("%w: failed to fetch product by ID %d: %w", perrors.ErrStorage, id, err)
	}
	return product, nil
}

func (s *Service) validateInput(input ProductInput) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("failed to validate product: %w", err)
	}
	fields := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		// fieldErr.Tag() returns "required", "max", etc.
		fields[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
	}
	return &perrors.ValidationError{Fields: fields}
}

// publish sends an event; a broker failure never fails the operation.
func (s *Service) publish(ctx context.Context, event messaging.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event", "subject", event.Subject(), "error", err)
	}
}

func snapshot(p *db.Product) events.ProductSnapshot {
	return events.ProductSnapshot{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.StockQuantity,
	}
}

// toDto converts a db.Product to a ProductDto.
func toDto(product *db.Product) *ProductDto {
	return &ProductDto{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		Stock:       product.StockQuantity,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
}
