package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product identidad del catálogo. No guarda estado del libro de inventario:
// DefaultCost solo sirve para prellenar formularios.
type Product struct {
	ID          string
	SKU         string
	Name        string
	DefaultCost decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
