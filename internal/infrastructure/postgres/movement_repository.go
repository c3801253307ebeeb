package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo libro de movimientos sobre stock_movements. Solo INSERT y SELECT; un trigger
// en la tabla rechaza UPDATE y DELETE.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador del libro. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

const movementColumns = `id, product_id, direction, source, reference_type, reference_id,
	original_reference_type, original_reference_id, quantity, unit_cost, total_cost,
	quantity_after, average_cost_after, movement_date, notes, created_at, created_by`

func scanMovement(row pgx.Row) (*entity.StockMovement, error) {
	var m entity.StockMovement
	var origType, origID, notes, createdBy *string
	err := row.Scan(&m.ID, &m.ProductID, &m.Direction, &m.Source, &m.ReferenceType, &m.ReferenceID,
		&origType, &origID, &m.Quantity, &m.UnitCost, &m.TotalCost,
		&m.QuantityAfter, &m.AverageCostAfter, &m.MovementDate, &notes, &m.CreatedAt, &createdBy)
	if err != nil {
		return nil, err
	}
	if origType != nil {
		m.OriginalReferenceType = entity.ReferenceType(*origType)
	}
	if origID != nil {
		m.OriginalReferenceID = *origID
	}
	if notes != nil {
		m.Notes = *notes
	}
	if createdBy != nil {
		m.CreatedBy = *createdBy
	}
	return &m, nil
}

func collectMovements(rows pgx.Rows) ([]*entity.StockMovement, error) {
	defer rows.Close()
	var list []*entity.StockMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Append inserta un movimiento. La violación del índice único de referencia se traduce a
// *domain.DuplicateReferenceError.
func (r *MovementRepo) Append(ctx context.Context, m *entity.StockMovement) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO stock_movements (`+movementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		m.ID, m.ProductID, string(m.Direction), string(m.Source), string(m.ReferenceType), m.ReferenceID,
		nullIfEmpty(string(m.OriginalReferenceType)), nullIfEmpty(m.OriginalReferenceID),
		m.Quantity, m.UnitCost, m.TotalCost, m.QuantityAfter, m.AverageCostAfter,
		m.MovementDate, nullIfEmpty(m.Notes), m.CreatedAt, nullIfEmpty(m.CreatedBy),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.DuplicateReferenceError{ReferenceType: string(m.ReferenceType), ReferenceID: m.ReferenceID}
		}
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// GetByID obtiene un movimiento por ID.
func (r *MovementRepo) GetByID(ctx context.Context, id string) (*entity.StockMovement, error) {
	m, err := scanMovement(r.q.QueryRow(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	return m, nil
}

// ListByProduct kardex del producto, más reciente primero, con rango de fechas opcional.
func (r *MovementRepo) ListByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+movementColumns+` FROM stock_movements
		WHERE product_id = $1
		  AND ($2::timestamptz IS NULL OR movement_date >= $2)
		  AND ($3::timestamptz IS NULL OR movement_date <= $3)
		ORDER BY movement_date DESC, seq DESC
		LIMIT $4 OFFSET $5`,
		productID, from, to, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list movements by product: %w", err)
	}
	return collectMovements(rows)
}

// ListByReference movimientos del documento en orden de inserción.
func (r *MovementRepo) ListByReference(ctx context.Context, refType entity.ReferenceType, refID string) ([]*entity.StockMovement, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+movementColumns+` FROM stock_movements
		WHERE reference_type = $1 AND reference_id = $2
		ORDER BY seq`, string(refType), refID)
	if err != nil {
		return nil, fmt.Errorf("list movements by reference: %w", err)
	}
	return collectMovements(rows)
}

// ListReversalsOf reversiones registradas contra el documento original.
func (r *MovementRepo) ListReversalsOf(ctx context.Context, originalType entity.ReferenceType, originalID string) ([]*entity.StockMovement, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+movementColumns+` FROM stock_movements
		WHERE source = 'reversal' AND original_reference_type = $1 AND original_reference_id = $2
		ORDER BY seq`, string(originalType), originalID)
	if err != nil {
		return nil, fmt.Errorf("list reversals: %w", err)
	}
	return collectMovements(rows)
}

// SignedQuantitySum suma IN - OUT del producto.
func (r *MovementRepo) SignedQuantitySum(ctx context.Context, productID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'IN' THEN quantity ELSE -quantity END), 0)
		FROM stock_movements WHERE product_id = $1`, productID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum movements: %w", err)
	}
	return sum, nil
}
