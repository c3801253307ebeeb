package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// BalanceRepository define el puerto para leer y escribir el saldo por producto.
// GetForUpdate, EnsureExists y Upsert solo son válidos dentro de la transacción del coordinador.
type BalanceRepository interface {
	Get(ctx context.Context, productID string) (*entity.StockBalance, error)
	// GetForUpdate bloquea la fila del producto (SELECT FOR UPDATE). exists=false si el
	// producto nunca tuvo stock; en ese caso no se toma bloqueo.
	GetForUpdate(ctx context.Context, productID string) (balance *entity.StockBalance, exists bool, err error)
	// EnsureExists crea la fila en cero si no existe, para que GetForUpdate pueda bloquearla.
	// Se usa antes de una entrada.
	EnsureExists(ctx context.Context, productID string) error
	Upsert(ctx context.Context, balance *entity.StockBalance) error
	List(ctx context.Context, limit, offset int) ([]*entity.StockBalance, error)
}
