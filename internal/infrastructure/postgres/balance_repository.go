package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.BalanceRepository = (*BalanceRepo)(nil)

// BalanceRepo implementación de BalanceRepository sobre la tabla stock_balances (usable con pool o tx).
type BalanceRepo struct {
	q Querier
}

// NewBalanceRepository construye el adaptador de saldos. Pasar pool o tx (Querier).
func NewBalanceRepository(q Querier) *BalanceRepo {
	return &BalanceRepo{q: q}
}

const balanceColumns = `product_id, quantity_available, average_cost, last_movement_date, last_updated`

func scanBalance(row pgx.Row) (*entity.StockBalance, error) {
	var b entity.StockBalance
	var lastMovement *time.Time
	if err := row.Scan(&b.ProductID, &b.QuantityAvailable, &b.AverageCost, &lastMovement, &b.LastUpdated); err != nil {
		return nil, err
	}
	if lastMovement != nil {
		b.LastMovementDate = *lastMovement
	}
	return &b, nil
}

// Get obtiene el saldo sin bloquear. nil si el producto nunca tuvo stock.
func (r *BalanceRepo) Get(ctx context.Context, productID string) (*entity.StockBalance, error) {
	b, err := scanBalance(r.q.QueryRow(ctx,
		`SELECT `+balanceColumns+` FROM stock_balances WHERE product_id = $1`, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// GetForUpdate obtiene el saldo y bloquea la fila para update (SELECT FOR UPDATE).
func (r *BalanceRepo) GetForUpdate(ctx context.Context, productID string) (*entity.StockBalance, bool, error) {
	b, err := scanBalance(r.q.QueryRow(ctx,
		`SELECT `+balanceColumns+` FROM stock_balances WHERE product_id = $1 FOR UPDATE`, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get balance for update: %w", err)
	}
	return b, true, nil
}

// EnsureExists inserta la fila en cero si falta. Dos transacciones que crean el mismo saldo
// se serializan en el índice primario: la segunda espera al commit de la primera.
func (r *BalanceRepo) EnsureExists(ctx context.Context, productID string) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO stock_balances (product_id, quantity_available, average_cost, last_updated)
		VALUES ($1, 0, 0, now())
		ON CONFLICT (product_id) DO NOTHING`, productID)
	if err != nil {
		return fmt.Errorf("ensure balance: %w", err)
	}
	return nil
}

// Upsert inserta o actualiza cantidad y costo promedio del producto.
func (r *BalanceRepo) Upsert(ctx context.Context, b *entity.StockBalance) error {
	var lastMovement *time.Time
	if !b.LastMovementDate.IsZero() {
		lastMovement = &b.LastMovementDate
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO stock_balances (product_id, quantity_available, average_cost, last_movement_date, last_updated)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (product_id)
		DO UPDATE SET quantity_available = EXCLUDED.quantity_available,
		              average_cost = EXCLUDED.average_cost,
		              last_movement_date = EXCLUDED.last_movement_date,
		              last_updated = now()`,
		b.ProductID, b.QuantityAvailable, b.AverageCost, lastMovement)
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}

// List saldos paginados por product_id.
func (r *BalanceRepo) List(ctx context.Context, limit, offset int) ([]*entity.StockBalance, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+balanceColumns+` FROM stock_balances ORDER BY product_id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()
	var list []*entity.StockBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		list = append(list, b)
	}
	return list, rows.Err()
}
