// Package rest provides HTTP handlers for product-related operations.
package rest

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	perrors "github.com/abgdnv/productapi/internal/errors"
	"github.com/abgdnv/productapi/internal/service"
	"github.com/abgdnv/productapi/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func init() {
	// prices travel as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

type Handler struct {
	service service.ProductService
	logger  *slog.Logger
}

// NewHandler creates a new instance of Handler with the provided service.
func NewHandler(service service.ProductService, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes for the product service.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.FindAll)
		r.Post("/", h.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.FindByID)
			r.Put("/", h.Update)
			r.Delete("/", h.DeleteByID)
		})
	})

	r.Get("/healthz", h.HealthCheck)
}

// FindAll retrieves a list of all products.
func (h *Handler) FindAll(w http.ResponseWriter, r *http.Request) {
	h.logger.DebugContext(r.Context(), "Received request to find all products")
	list, err := h.service.FindAll(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Error retrieving product list", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Failed to fetch products")
		return
	}
	h.logger.DebugContext(r.Context(), "Successfully retrieved product list", "count", len(list))
	web.RespondJSON(w, h.logger, http.StatusOK, list)
}

// FindByID retrieves a product by its ID.
func (h *Handler) FindByID(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}

	h.logger.DebugContext(r.Context(), "Received request to find product by ID", "ID", id)
	found, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		h.respondFailure(w, r, "retrieve", id, err)
		return
	}
	h.logger.DebugContext(r.Context(), "Successfully retrieved product", "ID", found.ID, "Name", found.Name)
	web.RespondJSON(w, h.logger, http.StatusOK, found)
}

// Create handles the creation of a new product.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.ProductInput
	if err := web.DecodeJSON(r, &input); err != nil {
		h.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.logger.DebugContext(r.Context(), "Received request to create product", "Name", input.Name)

	created, err := h.service.Create(r.Context(), input)
	if err != nil {
		var validationErr *perrors.ValidationError
		if errors.As(err, &validationErr) {
			h.logger.WarnContext(r.Context(), "Validation errors occurred", "errors", validationErr.Fields)
			web.RespondValidationErrors(w, h.logger, validationErr.Fields)
			return
		}
		h.logger.ErrorContext(r.Context(), "Error creating product", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Failed to create product")
		return
	}
	h.logger.InfoContext(r.Context(), "Product created successfully", "ID", created.ID, "Name", created.Name)
	w.Header().Set("Location", fmt.Sprintf("/products/%d", created.ID))
	web.RespondJSON(w, h.logger, http.StatusCreated, created)
}

// Update overwrites a product. The body ID must match the path ID.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	h.logger.DebugContext(r.Context(), "Received request to update product", "ID", id)
	var input service.ProductInput
	if err := web.DecodeJSON(r, &input); err != nil {
		h.logger.WarnContext(r.Context(), "Error decoding request body", "ID", id, "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.Update(r.Context(), id, input); err != nil {
		h.respondFailure(w, r, "update", id, err)
		return
	}
	h.logger.InfoContext(r.Context(), "Product updated successfully", "ID", id)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteByID deletes a product by its ID.
func (h *Handler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	h.logger.DebugContext(r.Context(), "Received request to delete product", "ID", id)
	if err := h.service.DeleteByID(r.Context(), id); err != nil {
		h.respondFailure(w, r, "delete", id, err)
		return
	}
	h.logger.InfoContext(r.Context(), "Product deleted successfully", "ID", id)
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// respondFailure logs err with the operation and product ID and maps it to a status code.
// Storage details never reach the client.
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, op string, id int64, err error) {
	var validationErr *perrors.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.logger.WarnContext(r.Context(), "Validation errors occurred", "op", op, "ID", id, "errors", validationErr.Fields)
		web.RespondValidationErrors(w, h.logger, validationErr.Fields)
	case errors.Is(err, perrors.ErrIDMismatch):
		h.logger.WarnContext(r.Context(), "Product ID mismatch", "op", op, "ID", id, "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, fmt.Sprintf("Product ID in body does not match ID %d in path", id))
	case errors.Is(err, perrors.ErrProductNotFound):
		h.logger.WarnContext(r.Context(), "Product not found", "op", op, "ID", id)
		web.RespondError(w, h.logger, http.StatusNotFound, fmt.Sprintf("Product with ID %d not found", id))
	default:
		h.logger.ErrorContext(r.Context(), "Product operation failed", "op", op, "ID", id, "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, fmt.Sprintf("Failed to %s product with ID %d", op, id))
	}
}
