package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockDocument documento de negocio que se persiste en la misma transacción que su efecto
// en inventario (entradas manuales y cancelaciones).
type StockDocument struct {
	ID            string
	ReferenceType ReferenceType
	Source        Source
	// Documento cancelado, solo para ReferenceCancellation.
	OriginalReferenceType ReferenceType
	OriginalReferenceID   string
	DocumentDate          time.Time
	Notes                 string
	Lines                 []StockDocumentLine
	CreatedAt             time.Time
	CreatedBy             string
}

// StockDocumentLine línea del documento.
type StockDocumentLine struct {
	LineNo    int
	ProductID string
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
}
