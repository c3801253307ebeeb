package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// LedgerQueryUseCase lecturas de auditoría: saldo y movimientos. No toma bloqueos.
type LedgerQueryUseCase struct {
	balanceRepo  repository.BalanceRepository
	movementRepo repository.MovementRepository
}

// NewLedgerQueryUseCase construye el caso de uso.
func NewLedgerQueryUseCase(balanceRepo repository.BalanceRepository, movementRepo repository.MovementRepository) *LedgerQueryUseCase {
	return &LedgerQueryUseCase{balanceRepo: balanceRepo, movementRepo: movementRepo}
}

// GetBalance saldo actual del producto.
func (uc *LedgerQueryUseCase) GetBalance(ctx context.Context, productID string) (*entity.StockBalance, error) {
	if productID == "" {
		return nil, domain.Invalid("product_id", "requerido")
	}
	bal, err := uc.balanceRepo.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return nil, fmt.Errorf("saldo de %s: %w", productID, domain.ErrNotFound)
	}
	return bal, nil
}

// ListByProduct kardex del producto, más reciente primero.
func (uc *LedgerQueryUseCase) ListByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error) {
	if productID == "" {
		return nil, domain.Invalid("product_id", "requerido")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return uc.movementRepo.ListByProduct(ctx, productID, from, to, limit, offset)
}

// ListByReference movimientos de un documento, incluidas sus reversiones.
func (uc *LedgerQueryUseCase) ListByReference(ctx context.Context, refType entity.ReferenceType, refID string) ([]*entity.StockMovement, error) {
	if !refType.Valid() {
		return nil, domain.Invalid("reference_type", "desconocido")
	}
	if refID == "" {
		return nil, domain.Invalid("reference_id", "requerido")
	}
	movs, err := uc.movementRepo.ListByReference(ctx, refType, refID)
	if err != nil {
		return nil, err
	}
	if refType == entity.ReferenceCancellation {
		return movs, nil
	}
	reversals, err := uc.movementRepo.ListReversalsOf(ctx, refType, refID)
	if err != nil {
		return nil, err
	}
	return append(movs, reversals...), nil
}
