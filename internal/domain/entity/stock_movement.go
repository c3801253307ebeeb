package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction sentido del movimiento. La cantidad siempre es positiva; el signo lo da Direction.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Inverse devuelve el sentido contrario (usado por las reversiones).
func (d Direction) Inverse() Direction {
	if d == DirectionIn {
		return DirectionOut
	}
	return DirectionIn
}

func (d Direction) Valid() bool { return d == DirectionIn || d == DirectionOut }

// Source flujo de negocio que originó el movimiento.
type Source string

const (
	SourcePurchase    Source = "purchase"
	SourceSaleLocal   Source = "sale_local"
	SourceSaleExport  Source = "sale_export"
	SourceManualEntry Source = "manual_entry"
	SourceReversal    Source = "reversal"
)

// Direction deriva el sentido a partir del origen. Las reversiones no tienen sentido
// propio: dependen del documento original, por eso ok=false.
func (s Source) Direction() (d Direction, ok bool) {
	switch s {
	case SourceSaleLocal, SourceSaleExport:
		return DirectionOut, true
	case SourcePurchase, SourceManualEntry:
		return DirectionIn, true
	}
	return "", false
}

// ReferenceType tipo de documento al que se puede rastrear un movimiento.
type ReferenceType string

const (
	ReferenceDeliveryNote  ReferenceType = "delivery_note"
	ReferencePurchaseOrder ReferenceType = "purchase_order"
	ReferenceStockEntry    ReferenceType = "stock_entry"
	ReferenceCancellation  ReferenceType = "cancellation"
)

func (r ReferenceType) Valid() bool {
	switch r {
	case ReferenceDeliveryNote, ReferencePurchaseOrder, ReferenceStockEntry, ReferenceCancellation:
		return true
	}
	return false
}

// StockMovement registro inmutable del libro de movimientos.
// Nunca se actualiza ni se borra; las correcciones son movimientos compensatorios.
type StockMovement struct {
	ID            string
	ProductID     string
	Direction     Direction
	Source        Source
	ReferenceType ReferenceType
	ReferenceID   string
	// Documento original cuando Source = reversal.
	OriginalReferenceType ReferenceType
	OriginalReferenceID   string
	Quantity              decimal.Decimal
	UnitCost              decimal.Decimal
	TotalCost             decimal.Decimal
	QuantityAfter         decimal.Decimal
	AverageCostAfter      decimal.Decimal
	MovementDate          time.Time
	Notes                 string
	CreatedAt             time.Time
	CreatedBy             string
}

// SignedQuantity cantidad con signo según Direction.
func (m *StockMovement) SignedQuantity() decimal.Decimal {
	if m.Direction == DirectionOut {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// IsReversal indica si el movimiento compensa a otro documento.
func (m *StockMovement) IsReversal() bool {
	return m.Source == SourceReversal
}
