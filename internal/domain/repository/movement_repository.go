package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// MovementRepository define el puerto del libro de movimientos (solo inserción y lectura).
type MovementRepository interface {
	// Append inserta un movimiento inmutable. Devuelve *domain.DuplicateReferenceError si ya
	// existe uno con el mismo (reference_type, reference_id, product_id, direction).
	Append(ctx context.Context, movement *entity.StockMovement) error
	GetByID(ctx context.Context, id string) (*entity.StockMovement, error)
	ListByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error)
	ListByReference(ctx context.Context, referenceType entity.ReferenceType, referenceID string) ([]*entity.StockMovement, error)
	// ListReversalsOf devuelve las reversiones ya registradas contra el documento original.
	ListReversalsOf(ctx context.Context, originalType entity.ReferenceType, originalID string) ([]*entity.StockMovement, error)
	// SignedQuantitySum suma con signo de todos los movimientos del producto (conciliación).
	SignedQuantitySum(ctx context.Context, productID string) (decimal.Decimal, error)
}
