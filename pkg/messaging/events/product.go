// Package events contains the payloads published on product lifecycle changes.
package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/productapi/pkg/messaging"
	"github.com/shopspring/decimal"
)

// ProductSnapshot is the product state carried by created and updated events.
type ProductSnapshot struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int32           `json:"stock"`
}

type ProductCreatedEvent struct {
	Product   ProductSnapshot `json:"product"`
	CreatedAt time.Time       `json:"created_at"`
}

func (e ProductCreatedEvent) Subject() string {
	return messaging.ProductsCreatedSubject
}

func (e ProductCreatedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

type ProductUpdatedEvent struct {
	Product   ProductSnapshot `json:"product"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (e ProductUpdatedEvent) Subject() string {
	return messaging.ProductsUpdatedSubject
}

func (e ProductUpdatedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

type ProductDeletedEvent struct {
	ProductID int64     `json:"product_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

func (e ProductDeletedEvent) Subject() string {
	return messaging.ProductsDeletedSubject
}

func (e ProductDeletedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
