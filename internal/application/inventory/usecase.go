package inventory

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ApplyFromRequest adapta el request HTTP al caso de uso ApplyStockMovement(ctx, ApplyCommand).
// Usar desde handlers HTTP o desde flujos de documentos que tengan userID y dto.ApplyStockMovementRequest.
func (uc *StockLedgerUseCase) ApplyFromRequest(ctx context.Context, userID string, in dto.ApplyStockMovementRequest) (*ApplyResult, error) {
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	cmd := ApplyCommand{
		Lines:         toStockLines(in.Lines),
		Source:        entity.Source(in.Source),
		ReferenceType: entity.ReferenceType(in.ReferenceType),
		ReferenceID:   in.ReferenceID,
		Notes:         in.Notes,
		UserID:        userID,
	}
	if in.MovementDate != nil {
		cmd.MovementDate = *in.MovementDate
	}
	return uc.ApplyStockMovement(ctx, cmd)
}

// ReverseFromRequest adapta el request HTTP a ReverseStockMovement.
func (uc *StockLedgerUseCase) ReverseFromRequest(ctx context.Context, userID string, in dto.ReverseStockMovementRequest) (*ReverseResult, error) {
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	cmd := ReverseCommand{
		ReferenceType:  entity.ReferenceType(in.ReferenceType),
		ReferenceID:    in.ReferenceID,
		CancellationID: in.CancellationID,
		Notes:          in.Notes,
		UserID:         userID,
	}
	for _, l := range in.Lines {
		cmd.Lines = append(cmd.Lines, ReversalLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	if in.MovementDate != nil {
		cmd.MovementDate = *in.MovementDate
	}
	return uc.ReverseStockMovement(ctx, cmd)
}

func toStockLines(in []dto.StockLineRequest) []StockLine {
	lines := make([]StockLine, len(in))
	for i, l := range in {
		lines[i] = StockLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitCost: l.UnitCost}
	}
	return lines
}
