package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// DocumentRepository persiste los documentos de inventario (entradas manuales, cancelaciones)
// dentro de la misma transacción que su efecto en stock.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.StockDocument) error
	GetByID(ctx context.Context, id string) (*entity.StockDocument, error)
}
