package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

// Reconciliation compara el saldo materializado con la suma con signo del libro.
type Reconciliation struct {
	ProductID         string
	QuantityAvailable decimal.Decimal
	LedgerQuantity    decimal.Decimal
}

// Difference saldo - libro; cero cuando son consistentes.
func (r Reconciliation) Difference() decimal.Decimal {
	return r.QuantityAvailable.Sub(r.LedgerQuantity)
}

func (r Reconciliation) Consistent() bool { return r.Difference().IsZero() }

// ReconcileUseCase verifica el invariante de conciliación sin modificar nada.
// Saldo y libro se leen en la misma foto para no reportar diferencias por commits intermedios.
type ReconcileUseCase struct {
	reader   SnapshotReader
	pageSize int
}

// NewReconcileUseCase construye el caso de uso.
func NewReconcileUseCase(reader SnapshotReader) *ReconcileUseCase {
	return &ReconcileUseCase{reader: reader, pageSize: 200}
}

// Check concilia un producto.
func (uc *ReconcileUseCase) Check(ctx context.Context, productID string) (*Reconciliation, error) {
	var out *Reconciliation
	err := uc.reader.ReadSnapshot(ctx, func(ctx context.Context, repos TxRepos) error {
		bal, err := repos.Balances.Get(ctx, productID)
		if err != nil {
			return err
		}
		sum, err := repos.Movements.SignedQuantitySum(ctx, productID)
		if err != nil {
			return err
		}
		r := &Reconciliation{ProductID: productID, LedgerQuantity: sum}
		if bal == nil {
			if sum.IsZero() {
				return fmt.Errorf("producto %s sin saldo ni movimientos: %w", productID, domain.ErrNotFound)
			}
			out = r
			return nil
		}
		r.QuantityAvailable = bal.QuantityAvailable
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CheckAll recorre todos los saldos y devuelve solo los inconsistentes.
func (uc *ReconcileUseCase) CheckAll(ctx context.Context) ([]Reconciliation, error) {
	var out []Reconciliation
	err := uc.reader.ReadSnapshot(ctx, func(ctx context.Context, repos TxRepos) error {
		for offset := 0; ; offset += uc.pageSize {
			page, err := repos.Balances.List(ctx, uc.pageSize, offset)
			if err != nil {
				return err
			}
			for _, bal := range page {
				sum, err := repos.Movements.SignedQuantitySum(ctx, bal.ProductID)
				if err != nil {
					return err
				}
				r := Reconciliation{ProductID: bal.ProductID, QuantityAvailable: bal.QuantityAvailable, LedgerQuantity: sum}
				if !r.Consistent() {
					out = append(out, r)
				}
			}
			if len(page) < uc.pageSize {
				return nil
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
