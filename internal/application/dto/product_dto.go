package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateProductRequest alta de un producto en el catálogo. ID opcional (se genera si falta).
type CreateProductRequest struct {
	ID          string          `json:"id,omitempty" validate:"omitempty,max=64"`
	SKU         string          `json:"sku" validate:"required,min=1,max=100"`
	Name        string          `json:"name" validate:"required,min=1,max=200"`
	DefaultCost decimal.Decimal `json:"default_cost"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	ID          string          `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	DefaultCost decimal.Decimal `json:"default_cost"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
