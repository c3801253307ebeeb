package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockLineRequest línea de un documento que afecta inventario.
type StockLineRequest struct {
	ProductID string           `json:"product_id" validate:"required,max=64"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitCost  *decimal.Decimal `json:"unit_cost,omitempty"`
}

// ApplyStockMovementRequest body para POST /api/stock/movements.
type ApplyStockMovementRequest struct {
	Lines         []StockLineRequest `json:"lines" validate:"required,min=1,dive"`
	Source        string             `json:"source" validate:"required,oneof=purchase sale_local sale_export manual_entry"`
	ReferenceType string             `json:"reference_type" validate:"required,oneof=delivery_note purchase_order stock_entry"`
	ReferenceID   string             `json:"reference_id" validate:"required,max=64"`
	MovementDate  *time.Time         `json:"movement_date,omitempty"`
	Notes         string             `json:"notes,omitempty" validate:"max=500"`
}

// ReversalLineRequest cantidad a cancelar de un producto.
type ReversalLineRequest struct {
	ProductID string          `json:"product_id" validate:"required,max=64"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// ReverseStockMovementRequest body para POST /api/stock/reversals. Sin lines = cancelación total.
type ReverseStockMovementRequest struct {
	ReferenceType  string                `json:"reference_type" validate:"required,oneof=delivery_note purchase_order stock_entry"`
	ReferenceID    string                `json:"reference_id" validate:"required,max=64"`
	Lines          []ReversalLineRequest `json:"lines,omitempty" validate:"omitempty,dive"`
	CancellationID string                `json:"cancellation_id,omitempty" validate:"omitempty,max=64"`
	MovementDate   *time.Time            `json:"movement_date,omitempty"`
	Notes          string                `json:"notes,omitempty" validate:"max=500"`
}

// CreateStockEntryRequest body para POST /api/stock/entries (entrada manual de inventario).
type CreateStockEntryRequest struct {
	EntryID      string             `json:"entry_id,omitempty" validate:"omitempty,max=64"`
	Lines        []StockLineRequest `json:"lines" validate:"required,min=1,dive"`
	MovementDate *time.Time         `json:"movement_date,omitempty"`
	Notes        string             `json:"notes,omitempty" validate:"max=500"`
}

// MovementResultResponse respuesta de aplicar o revertir un documento.
type MovementResultResponse struct {
	ReferenceType string   `json:"reference_type"`
	ReferenceID   string   `json:"reference_id"`
	MovementIDs   []string `json:"movement_ids"`
}

// StockBalanceResponse saldo de un producto.
type StockBalanceResponse struct {
	ProductID         string          `json:"product_id"`
	QuantityAvailable decimal.Decimal `json:"quantity_available"`
	AverageCost       decimal.Decimal `json:"average_cost"`
	StockValue        decimal.Decimal `json:"stock_value"`
	LastMovementDate  time.Time       `json:"last_movement_date"`
	LastUpdated       time.Time       `json:"last_updated"`
}

// StockMovementResponse movimiento del libro (vista kardex).
type StockMovementResponse struct {
	ID                    string          `json:"id"`
	ProductID             string          `json:"product_id"`
	Direction             string          `json:"direction"`
	Source                string          `json:"source"`
	ReferenceType         string          `json:"reference_type"`
	ReferenceID           string          `json:"reference_id"`
	OriginalReferenceType string          `json:"original_reference_type,omitempty"`
	OriginalReferenceID   string          `json:"original_reference_id,omitempty"`
	Quantity              decimal.Decimal `json:"quantity"`
	UnitCost              decimal.Decimal `json:"unit_cost"`
	TotalCost             decimal.Decimal `json:"total_cost"`
	QuantityAfter         decimal.Decimal `json:"quantity_after"`
	AverageCostAfter      decimal.Decimal `json:"average_cost_after"`
	MovementDate          time.Time       `json:"movement_date"`
	Notes                 string          `json:"notes,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	CreatedBy             string          `json:"created_by,omitempty"`
}

// ReconciliationResponse resultado de conciliar saldo contra libro.
type ReconciliationResponse struct {
	ProductID         string          `json:"product_id"`
	QuantityAvailable decimal.Decimal `json:"quantity_available"`
	LedgerQuantity    decimal.Decimal `json:"ledger_quantity"`
	Difference        decimal.Decimal `json:"difference"`
	Consistent        bool            `json:"consistent"`
}

// MovementListResponse página del kardex.
type MovementListResponse struct {
	Items []StockMovementResponse `json:"items"`
	Page  PageResponse            `json:"page"`
}
