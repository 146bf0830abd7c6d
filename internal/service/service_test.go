package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	perrors "github.com/abgdnv/productapi/internal/errors"
	"github.com/abgdnv/productapi/internal/store/db"
	"github.com/abgdnv/productapi/pkg/messaging"
	"github.com/abgdnv/productapi/pkg/messaging/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProductStore is a mock implementation of the ProductStore interface
type mockProductStore struct {
	products  []db.Product
	product   *db.Product
	findErr   error
	createErr error
	updateErr error
	deleteErr error
	exists    bool
	existsErr error

	created      *db.CreateParams
	updated      *db.UpdateParams
	deletedID    int64
	existsCalled bool
}

func (m *mockProductStore) FindAll(_ context.Context) ([]db.Product, error) {
	return m.products, m.findErr
}

func (m *mockProductStore) FindByID(_ context.Context, _ int64) (*db.Product, error) {
	return m.product, m.findErr
}

func (m *mockProductStore) ExistsByID(_ context.Context, _ int64) (bool, error) {
	m.existsCalled = true
	return m.exists, m.existsErr
}

func (m *mockProductStore) Create(_ context.Context, params db.CreateParams) (*db.Product, error) {
	m.created = &params
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &db.Product{
		ID:            1,
		Name:          params.Name,
		Description:   params.Description,
		Price:         params.Price,
		StockQuantity: params.StockQuantity,
		CreatedAt:     params.CreatedAt,
	}, nil
}

func (m *mockProductStore) Update(_ context.Context, params db.UpdateParams) error {
	m.updated = &params
	return m.updateErr
}

func (m *mockProductStore) DeleteByID(_ context.Context, id int64) error {
	m.deletedID = id
	return m.deleteErr
}

// mockPublisher records published events
type mockPublisher struct {
	events []messaging.Event
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, event messaging.Event) error {
	m.events = append(m.events, event)
	return m.err
}

var fixedNow = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store *mockProductStore, publisher *mockPublisher) *Service {
	s := NewService(store, publisher, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return fixedNow }
	return s
}

func ptr[T any](v T) *T {
	return &v
}

func validInput(id int64) ProductInput {
	return ProductInput{
		ID:    id,
		Name:  "Widget",
		Price: ptr(decimal.RequireFromString("9.99")),
		Stock: ptr(int32(5)),
	}
}

func Test_ProductService_FindAll(t *testing.T) {
	storeErr := errors.New("connection refused")
	testCases := []struct {
		name        string
		mockStore   *mockProductStore
		expectedLen int
		expectError error
	}{
		{
			name: "Success - products found",
			mockStore: &mockProductStore{
				products: []db.Product{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}},
			},
			expectedLen: 2,
		},
		{
			name:        "Success - empty store",
			mockStore:   &mockProductStore{products: []db.Product{}},
			expectedLen: 0,
		},
		{
			name:        "Error - storage failure",
			mockStore:   &mockProductStore{findErr: storeErr},
			expectError: perrors.ErrStorage,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			svc := newTestService(tc.mockStore, &mockPublisher{})

			// when
			products, err := svc.FindAll(context.Background())

			// then
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
				assert.Nil(t, products)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, products)
			assert.Len(t, products, tc.expectedLen)
		})
	}
}

func Test_ProductService_FindByID(t *testing.T) {
	testCases := []struct {
		name        string
		mockStore   *mockProductStore
		expected    *ProductDto
		expectError error
	}{
		{
			name: "Success - product found",
			mockStore: &mockProductStore{
				product: &db.Product{ID: 7, Name: "Toy", StockQuantity: 2, CreatedAt: fixedNow},
			},
			expected: &ProductDto{ID: 7, Name: "Toy", Stock: 2, CreatedAt: fixedNow},
		},
		{
			name:        "Error - product not found",
			mockStore:   &mockProductStore{findErr: perrors.ErrProductNotFound},
			expectError: perrors.ErrProductNotFound,
		},
		{
			name:        "Error - storage failure",
			mockStore:   &mockProductStore{findErr: errors.New("timeout")},
			expectError: perrors.ErrStorage,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			svc := newTestService(tc.mockStore, &mockPublisher{})

			// when
			found, err := svc.FindByID(context.Background(), 7)

			// then
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
				assert.Nil(t, found)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, found)
		})
	}
}

func Test_ProductService_FindByID_StorageErrorIsNotNotFound(t *testing.T) {
	svc := newTestService(&mockProductStore{findErr: errors.New("timeout")}, &mockPublisher{})

	_, err := svc.FindByID(context.Background(), 1)

	assert.NotErrorIs(t, err, perrors.ErrProductNotFound)
}

func Test_ProductService_Create(t *testing.T) {
	t.Run("Success - timestamps and event", func(t *testing.T) {
		// given
		store := &mockProductStore{}
		publisher := &mockPublisher{}
		svc := newTestService(store, publisher)
		input := validInput(0)
		input.Description = ptr("A small widget")

		// when
		created, err := svc.Create(context.Background(), input)

		// then
		require.NoError(t, err)
		assert.Equal(t, int64(1), created.ID)
		assert.Equal(t, "Widget", created.Name)
		assert.Equal(t, "A small widget", *created.Description)
		assert.True(t, decimal.RequireFromString("9.99").Equal(created.Price))
		assert.Equal(t, int32(5), created.Stock)
		assert.Equal(t, fixedNow, created.CreatedAt)
		assert.Nil(t, created.UpdatedAt)

		require.NotNil(t, store.created)
		assert.Equal(t, fixedNow, store.created.CreatedAt)

		require.Len(t, publisher.events, 1)
		event, ok := publisher.events[0].(events.ProductCreatedEvent)
		require.True(t, ok)
		assert.Equal(t, int64(1), event.Product.ID)
	})

	t.Run("Success - client supplied ID is ignored", func(t *testing.T) {
		store := &mockProductStore{}
		svc := newTestService(store, &mockPublisher{})

		created, err := svc.Create(context.Background(), validInput(99))

		require.NoError(t, err)
		assert.Equal(t, int64(1), created.ID)
	})

	t.Run("Success - publish failure does not fail create", func(t *testing.T) {
		svc := newTestService(&mockProductStore{}, &mockPublisher{err: errors.New("broker down")})

		created, err := svc.Create(context.Background(), validInput(0))

		require.NoError(t, err)
		assert.NotNil(t, created)
	})

	t.Run("Error - storage failure", func(t *testing.T) {
		publisher := &mockPublisher{}
		svc := newTestService(&mockProductStore{createErr: errors.New("disk full")}, publisher)

		created, err := svc.Create(context.Background(), validInput(0))

		assert.ErrorIs(t, err, perrors.ErrStorage)
		assert.Nil(t, created)
		assert.Empty(t, publisher.events)
	})
}

func Test_ProductService_Create_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*ProductInput)
		field  string
		rule   string
	}{
		{
			name:   "missing name",
			mutate: func(in *ProductInput) { in.Name = "" },
			field:  "Name",
			rule:   "failed on rule: required",
		},
		{
			name:   "name too long",
			mutate: func(in *ProductInput) { in.Name = string(make([]byte, 101)) },
			field:  "Name",
			rule:   "failed on rule: max",
		},
		{
			name:   "description too long",
			mutate: func(in *ProductInput) { in.Description = ptr(string(make([]byte, 501))) },
			field:  "Description",
			rule:   "failed on rule: max",
		},
		{
			name:   "missing price",
			mutate: func(in *ProductInput) { in.Price = nil },
			field:  "Price",
			rule:   "failed on rule: required",
		},
		{
			name:   "missing stock",
			mutate: func(in *ProductInput) { in.Stock = nil },
			field:  "Stock",
			rule:   "failed on rule: required",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			store := &mockProductStore{}
			svc := newTestService(store, &mockPublisher{})
			input := validInput(0)
			tc.mutate(&input)

			// when
			_, err := svc.Create(context.Background(), input)

			// then
			var validationErr *perrors.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.rule, validationErr.Fields[tc.field])
			assert.Nil(t, store.created, "store must not be called")
		})
	}
}

func Test_ProductService_Create_ZeroStockIsValid(t *testing.T) {
	svc := newTestService(&mockProductStore{}, &mockPublisher{})
	input := validInput(0)
	input.Stock = ptr(int32(0))
	input.Price = ptr(decimal.Zero)

	_, err := svc.Create(context.Background(), input)

	assert.NoError(t, err)
}

func Test_ProductService_Update(t *testing.T) {
	existing := &db.Product{ID: 3, Name: "Widget", Price: decimal.RequireFromString("9.99"), StockQuantity: 5, CreatedAt: fixedNow.Add(-time.Hour)}

	testCases := []struct {
		name          string
		mockStore     *mockProductStore
		pathID        int64
		input         ProductInput
		expectError   error
		expectUpdate  bool
		expectExists  bool
		expectedEvent bool
	}{
		{
			name:          "Success - fields overwritten",
			mockStore:     &mockProductStore{product: existing},
			pathID:        3,
			input:         validInput(3),
			expectUpdate:  true,
			expectedEvent: true,
		},
		{
			name:        "Error - ID mismatch wins over missing product",
			mockStore:   &mockProductStore{findErr: perrors.ErrProductNotFound},
			pathID:      3,
			input:       validInput(4),
			expectError: perrors.ErrIDMismatch,
		},
		{
			name:        "Error - ID mismatch wins over invalid body",
			mockStore:   &mockProductStore{product: existing},
			pathID:      3,
			input:       ProductInput{ID: 4},
			expectError: perrors.ErrIDMismatch,
		},
		{
			name:        "Error - product not found",
			mockStore:   &mockProductStore{findErr: perrors.ErrProductNotFound},
			pathID:      3,
			input:       validInput(3),
			expectError: perrors.ErrProductNotFound,
		},
		{
			name:        "Error - storage failure on read",
			mockStore:   &mockProductStore{findErr: errors.New("timeout")},
			pathID:      3,
			input:       validInput(3),
			expectError: perrors.ErrStorage,
		},
		{
			name:         "Error - storage failure on write",
			mockStore:    &mockProductStore{product: existing, updateErr: errors.New("timeout")},
			pathID:       3,
			input:        validInput(3),
			expectError:  perrors.ErrStorage,
			expectUpdate: true,
		},
		{
			name:         "Error - deleted between read and write",
			mockStore:    &mockProductStore{product: existing, updateErr: perrors.ErrUpdateConflict, exists: false},
			pathID:       3,
			input:        validInput(3),
			expectError:  perrors.ErrProductNotFound,
			expectUpdate: true,
			expectExists: true,
		},
		{
			name:         "Error - conflict on a row that still exists",
			mockStore:    &mockProductStore{product: existing, updateErr: perrors.ErrUpdateConflict, exists: true},
			pathID:       3,
			input:        validInput(3),
			expectError:  perrors.ErrStorage,
			expectUpdate: true,
			expectExists: true,
		},
		{
			name:         "Error - existence probe fails",
			mockStore:    &mockProductStore{product: existing, updateErr: perrors.ErrUpdateConflict, existsErr: errors.New("timeout")},
			pathID:       3,
			input:        validInput(3),
			expectError:  perrors.ErrStorage,
			expectUpdate: true,
			expectExists: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			publisher := &mockPublisher{}
			svc := newTestService(tc.mockStore, publisher)

			// when
			err := svc.Update(context.Background(), tc.pathID, tc.input)

			// then
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.expectUpdate, tc.mockStore.updated != nil)
			assert.Equal(t, tc.expectExists, tc.mockStore.existsCalled)
			if tc.expectedEvent {
				require.Len(t, publisher.events, 1)
				assert.IsType(t, events.ProductUpdatedEvent{}, publisher.events[0])
			} else {
				assert.Empty(t, publisher.events)
			}
		})
	}
}

func Test_ProductService_Update_WritesAllFields(t *testing.T) {
	// given
	store := &mockProductStore{product: &db.Product{ID: 3, Name: "Widget", Description: ptr("old")}}
	svc := newTestService(store, &mockPublisher{})
	input := ProductInput{ID: 3, Name: "Widget2", Price: ptr(decimal.RequireFromString("12.0")), Stock: ptr(int32(3))}

	// when
	err := svc.Update(context.Background(), 3, input)

	// then
	require.NoError(t, err)
	require.NotNil(t, store.updated)
	assert.Equal(t, int64(3), store.updated.ID)
	assert.Equal(t, "Widget2", store.updated.Name)
	assert.Nil(t, store.updated.Description, "description is overwritten, not merged")
	assert.Equal(t, "12", store.updated.Price.String())
	assert.Equal(t, int32(3), store.updated.StockQuantity)
	require.NotNil(t, store.updated.UpdatedAt)
	assert.Equal(t, fixedNow, *store.updated.UpdatedAt)
}

func Test_ProductService_Update_Validation(t *testing.T) {
	store := &mockProductStore{product: &db.Product{ID: 3}}
	svc := newTestService(store, &mockPublisher{})
	input := validInput(3)
	input.Name = ""

	err := svc.Update(context.Background(), 3, input)

	var validationErr *perrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "Name")
	assert.Nil(t, store.updated)
}

func Test_ProductService_DeleteByID(t *testing.T) {
	testCases := []struct {
		name          string
		mockStore     *mockProductStore
		expectError   error
		expectDeleted bool
	}{
		{
			name:          "Success - product deleted",
			mockStore:     &mockProductStore{product: &db.Product{ID: 5}},
			expectDeleted: true,
		},
		{
			name:        "Error - product not found",
			mockStore:   &mockProductStore{findErr: perrors.ErrProductNotFound},
			expectError: perrors.ErrProductNotFound,
		},
		{
			name:          "Error - removed concurrently",
			mockStore:     &mockProductStore{product: &db.Product{ID: 5}, deleteErr: perrors.ErrProductNotFound},
			expectError:   perrors.ErrProductNotFound,
			expectDeleted: true,
		},
		{
			name:          "Error - storage failure",
			mockStore:     &mockProductStore{product: &db.Product{ID: 5}, deleteErr: errors.New("timeout")},
			expectError:   perrors.ErrStorage,
			expectDeleted: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			publisher := &mockPublisher{}
			svc := newTestService(tc.mockStore, publisher)

			// when
			err := svc.DeleteByID(context.Background(), 5)

			// then
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
				assert.Empty(t, publisher.events)
			} else {
				require.NoError(t, err)
				require.Len(t, publisher.events, 1)
				assert.Equal(t, events.ProductDeletedEvent{ProductID: 5, DeletedAt: fixedNow}, publisher.events[0])
			}
			if tc.expectDeleted {
				assert.Equal(t, int64(5), tc.mockStore.deletedID)
			} else {
				assert.Zero(t, tc.mockStore.deletedID)
			}
		})
	}
}
