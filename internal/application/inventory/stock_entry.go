package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockEntryUseCase entrada manual de inventario: guarda el documento y su efecto en stock
// en una sola transacción.
type StockEntryUseCase struct {
	ledger *StockLedgerUseCase
	now    func() time.Time
}

// NewStockEntryUseCase construye el caso de uso.
func NewStockEntryUseCase(ledger *StockLedgerUseCase) *StockEntryUseCase {
	return &StockEntryUseCase{ledger: ledger, now: time.Now}
}

// Create registra la entrada. Si EntryID viene vacío se genera uno; reenviar el mismo
// EntryID devuelve DuplicateReferenceError sin duplicar cantidades.
func (uc *StockEntryUseCase) Create(ctx context.Context, userID string, in dto.CreateStockEntryRequest) (*entity.StockDocument, []string, error) {
	if err := dto.Validate(in); err != nil {
		return nil, nil, err
	}
	entryID := in.EntryID
	if entryID == "" {
		entryID = uuid.New().String()
	}
	date := uc.now()
	if in.MovementDate != nil {
		date = *in.MovementDate
	}

	doc := &entity.StockDocument{
		ID:            entryID,
		ReferenceType: entity.ReferenceStockEntry,
		Source:        entity.SourceManualEntry,
		DocumentDate:  date,
		Notes:         in.Notes,
		CreatedAt:     uc.now(),
		CreatedBy:     userID,
	}
	res, err := uc.ledger.ApplyStockMovement(ctx, ApplyCommand{
		Lines:         toStockLines(in.Lines),
		Source:        entity.SourceManualEntry,
		ReferenceType: entity.ReferenceStockEntry,
		ReferenceID:   entryID,
		MovementDate:  date,
		Notes:         in.Notes,
		UserID:        userID,
		PersistDocument: func(ctx context.Context, repos TxRepos, movements []*entity.StockMovement) error {
			doc.Lines = documentLines(movements)
			return repos.Documents.Create(ctx, doc)
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return doc, res.MovementIDs, nil
}

// documentLines arma las líneas del documento con el costo con que quedó cada movimiento
// (el promedio vigente cuando la línea no trae costo).
func documentLines(movements []*entity.StockMovement) []entity.StockDocumentLine {
	lines := make([]entity.StockDocumentLine, len(movements))
	for i, m := range movements {
		lines[i] = entity.StockDocumentLine{
			LineNo:    i + 1,
			ProductID: m.ProductID,
			Quantity:  m.Quantity,
			UnitCost:  m.UnitCost,
		}
	}
	return lines
}
