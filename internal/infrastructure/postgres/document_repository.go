package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo cabecera y líneas de entradas manuales y cancelaciones.
type DocumentRepo struct {
	q Querier
}

// NewDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDocumentRepository(q Querier) *DocumentRepo {
	return &DocumentRepo{q: q}
}

// Create inserta cabecera y líneas. Debe llamarse dentro de la tx que aplica el efecto en stock.
func (r *DocumentRepo) Create(ctx context.Context, doc *entity.StockDocument) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO stock_documents (id, reference_type, source, original_reference_type, original_reference_id,
			document_date, notes, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID, string(doc.ReferenceType), string(doc.Source),
		nullIfEmpty(string(doc.OriginalReferenceType)), nullIfEmpty(doc.OriginalReferenceID),
		doc.DocumentDate, nullIfEmpty(doc.Notes), doc.CreatedAt, nullIfEmpty(doc.CreatedBy),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("documento %s/%s: %w", doc.ReferenceType, doc.ID, domain.ErrConflict)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	for _, l := range doc.Lines {
		_, err := r.q.Exec(ctx, `
			INSERT INTO stock_document_lines (reference_type, document_id, line_no, product_id, quantity, unit_cost)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			string(doc.ReferenceType), doc.ID, l.LineNo, l.ProductID, l.Quantity, l.UnitCost,
		)
		if err != nil {
			return fmt.Errorf("insert document line %d: %w", l.LineNo, err)
		}
	}
	return nil
}

// GetByID obtiene el documento con sus líneas. nil si no existe.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.StockDocument, error) {
	var d entity.StockDocument
	var origType, origID, notes, createdBy *string
	err := r.q.QueryRow(ctx, `
		SELECT id, reference_type, source, original_reference_type, original_reference_id,
			document_date, notes, created_at, created_by
		FROM stock_documents WHERE id = $1
		ORDER BY created_at LIMIT 1`, id,
	).Scan(&d.ID, &d.ReferenceType, &d.Source, &origType, &origID, &d.DocumentDate, &notes, &d.CreatedAt, &createdBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	if origType != nil {
		d.OriginalReferenceType = entity.ReferenceType(*origType)
	}
	if origID != nil {
		d.OriginalReferenceID = *origID
	}
	if notes != nil {
		d.Notes = *notes
	}
	if createdBy != nil {
		d.CreatedBy = *createdBy
	}

	rows, err := r.q.Query(ctx, `
		SELECT line_no, product_id, quantity, unit_cost
		FROM stock_document_lines
		WHERE reference_type = $1 AND document_id = $2
		ORDER BY line_no`, string(d.ReferenceType), d.ID)
	if err != nil {
		return nil, fmt.Errorf("list document lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l entity.StockDocumentLine
		if err := rows.Scan(&l.LineNo, &l.ProductID, &l.Quantity, &l.UnitCost); err != nil {
			return nil, fmt.Errorf("scan document line: %w", err)
		}
		d.Lines = append(d.Lines, l)
	}
	return &d, rows.Err()
}
