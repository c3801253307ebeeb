package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockBalance saldo actual por producto (cantidad y costo promedio ponderado).
// Derivado de los movimientos; solo lo escribe el coordinador de transacciones.
type StockBalance struct {
	ProductID         string
	QuantityAvailable decimal.Decimal
	AverageCost       decimal.Decimal
	LastMovementDate  time.Time
	LastUpdated       time.Time
}

// StockValue valor del inventario a costo promedio.
func (b *StockBalance) StockValue() decimal.Decimal {
	return b.QuantityAvailable.Mul(b.AverageCost)
}
