package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ReversalLine cantidad a revertir de un producto del documento original.
type ReversalLine struct {
	ProductID string
	Quantity  decimal.Decimal
}

// ReverseCommand cancelación total (Lines vacío) o parcial de un documento ya aplicado.
type ReverseCommand struct {
	ReferenceType entity.ReferenceType
	ReferenceID   string
	Lines         []ReversalLine
	// CancellationID id del documento de cancelación; si está vacío se genera uno.
	// Reenviar el mismo id devuelve DuplicateReferenceError.
	CancellationID string
	MovementDate   time.Time
	Notes          string
	UserID         string
}

// ReverseResult documento de cancelación y movimientos compensatorios creados.
type ReverseResult struct {
	CancellationID string
	MovementIDs    []string
}

// ReversalExceedsError la cantidad pedida supera lo pendiente de revertir (original - ya revertido).
type ReversalExceedsError struct {
	ProductID string
	Remaining decimal.Decimal
	Requested decimal.Decimal
}

func (e *ReversalExceedsError) Error() string {
	return fmt.Sprintf("reversión de %s excede lo pendiente para el producto %s (pendiente %s)",
		e.Requested.String(), e.ProductID, e.Remaining.String())
}

func (e *ReversalExceedsError) Unwrap() []error {
	return []error{domain.ErrReversalExceedsOriginal, domain.ErrInvalidInput}
}

// ReverseStockMovement emite movimientos compensatorios con el sentido invertido, source=reversal
// y una referencia nueva de cancelación que apunta al documento original. El historial no se toca.
func (uc *StockLedgerUseCase) ReverseStockMovement(ctx context.Context, cmd ReverseCommand) (*ReverseResult, error) {
	start := uc.now()
	result, err := uc.reverseStockMovement(ctx, cmd)
	// Una cancelación total no trae líneas: se cuentan los movimientos emitidos.
	lines := len(cmd.Lines)
	if err == nil {
		lines = len(result.MovementIDs)
	}
	uc.recorder.ObserveDocument("reverse", entity.SourceReversal, lines, err, uc.now().Sub(start))
	if err != nil {
		uc.log.Warn().Err(err).
			Str("original_reference_type", string(cmd.ReferenceType)).
			Str("original_reference_id", cmd.ReferenceID).
			Msg("reversión de inventario rechazada")
		return nil, err
	}
	uc.log.Info().
		Str("original_reference_type", string(cmd.ReferenceType)).
		Str("original_reference_id", cmd.ReferenceID).
		Str("cancellation_id", result.CancellationID).
		Int("movements", len(result.MovementIDs)).
		Msg("reversión de inventario aplicada")
	return result, nil
}

func (uc *StockLedgerUseCase) reverseStockMovement(ctx context.Context, cmd ReverseCommand) (*ReverseResult, error) {
	if err := validateReverse(cmd); err != nil {
		return nil, err
	}
	if cmd.CancellationID == "" {
		cmd.CancellationID = uuid.New().String()
	}
	if cmd.MovementDate.IsZero() {
		cmd.MovementDate = uc.now()
	}

	release, err := uc.acquire(ctx, entity.ReferenceCancellation, cmd.CancellationID)
	if err != nil {
		return nil, err
	}
	defer release()

	var ids []string
	err = uc.txRunner.Run(ctx, func(ctx context.Context, repos TxRepos) error {
		ids, err = uc.reverseInTx(ctx, repos, cmd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ReverseResult{CancellationID: cmd.CancellationID, MovementIDs: ids}, nil
}

func (uc *StockLedgerUseCase) reverseInTx(ctx context.Context, repos TxRepos, cmd ReverseCommand) ([]string, error) {
	if err := ensureNewReference(ctx, repos.Movements, entity.ReferenceCancellation, cmd.CancellationID); err != nil {
		return nil, err
	}

	all, err := repos.Movements.ListByReference(ctx, cmd.ReferenceType, cmd.ReferenceID)
	if err != nil {
		return nil, err
	}
	originals := make(map[string]*entity.StockMovement, len(all))
	var order []string
	for _, m := range all {
		if m.IsReversal() {
			return nil, domain.Invalid("reference_id", "no se puede revertir una reversión")
		}
		originals[m.ProductID] = m
		order = append(order, m.ProductID)
	}
	if len(originals) == 0 {
		return nil, fmt.Errorf("documento %s/%s sin movimientos: %w", cmd.ReferenceType, cmd.ReferenceID, domain.ErrNotFound)
	}

	requested := cmd.Lines
	if len(requested) == 0 {
		requested = make([]ReversalLine, 0, len(order))
		for _, pid := range order {
			requested = append(requested, ReversalLine{ProductID: pid})
		}
	}
	planned := make([]plannedLine, 0, len(requested))
	for i, rl := range requested {
		orig, ok := originals[rl.ProductID]
		if !ok {
			return nil, domain.Invalid(fmt.Sprintf("lines[%d].product_id", i), "el producto no pertenece al documento original")
		}
		cost := orig.UnitCost
		planned = append(planned, plannedLine{
			productID: rl.ProductID,
			direction: orig.Direction.Inverse(),
			quantity:  rl.Quantity,
			unitCost:  &cost,
			reversal:  true,
		})
	}

	// Los bloqueos se toman antes de leer lo ya revertido: dos cancelaciones parciales
	// concurrentes del mismo documento quedan serializadas por producto.
	balances, err := lockBalances(ctx, repos.Balances, planned)
	if err != nil {
		return nil, err
	}
	reversed, err := reversedByProduct(ctx, repos, cmd.ReferenceType, cmd.ReferenceID)
	if err != nil {
		return nil, err
	}

	full := len(cmd.Lines) == 0
	kept := planned[:0]
	for _, pl := range planned {
		remaining := originals[pl.productID].Quantity.Sub(reversed[pl.productID])
		if full {
			if !remaining.GreaterThan(decimal.Zero) {
				continue
			}
			pl.quantity = remaining
		} else if pl.quantity.GreaterThan(remaining) {
			return nil, &ReversalExceedsError{ProductID: pl.productID, Remaining: remaining, Requested: pl.quantity}
		}
		kept = append(kept, pl)
	}
	if len(kept) == 0 {
		return nil, &ReversalExceedsError{ProductID: order[0], Remaining: decimal.Zero, Requested: originals[order[0]].Quantity}
	}

	movs, err := uc.applyPlanned(ctx, repos, movementHeader{
		source:                entity.SourceReversal,
		referenceType:         entity.ReferenceCancellation,
		referenceID:           cmd.CancellationID,
		originalReferenceType: cmd.ReferenceType,
		originalReferenceID:   cmd.ReferenceID,
		date:                  cmd.MovementDate,
		notes:                 cmd.Notes,
		userID:                cmd.UserID,
	}, balances, kept)
	if err != nil {
		return nil, err
	}

	doc := &entity.StockDocument{
		ID:                    cmd.CancellationID,
		ReferenceType:         entity.ReferenceCancellation,
		Source:                entity.SourceReversal,
		OriginalReferenceType: cmd.ReferenceType,
		OriginalReferenceID:   cmd.ReferenceID,
		DocumentDate:          cmd.MovementDate,
		Notes:                 cmd.Notes,
		CreatedAt:             uc.now(),
		CreatedBy:             cmd.UserID,
	}
	doc.Lines = documentLines(movs)
	if err := repos.Documents.Create(ctx, doc); err != nil {
		return nil, err
	}
	return movementIDs(movs), nil
}

// reversedByProduct suma lo ya revertido contra el documento original, por producto.
func reversedByProduct(ctx context.Context, repos TxRepos, refType entity.ReferenceType, refID string) (map[string]decimal.Decimal, error) {
	prior, err := repos.Movements.ListReversalsOf(ctx, refType, refID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(prior))
	for _, m := range prior {
		out[m.ProductID] = out[m.ProductID].Add(m.Quantity)
	}
	return out, nil
}

func validateReverse(cmd ReverseCommand) error {
	if !cmd.ReferenceType.Valid() {
		return domain.Invalid("reference_type", fmt.Sprintf("tipo de referencia desconocido %q", cmd.ReferenceType))
	}
	if cmd.ReferenceType == entity.ReferenceCancellation {
		return domain.Invalid("reference_type", "no se puede revertir una cancelación")
	}
	if cmd.ReferenceID == "" {
		return domain.Invalid("reference_id", "requerido")
	}
	seen := make(map[string]struct{}, len(cmd.Lines))
	for i, l := range cmd.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if l.ProductID == "" {
			return domain.Invalid(field+".product_id", "requerido")
		}
		if _, dup := seen[l.ProductID]; dup {
			return domain.Invalid(field+".product_id", "producto repetido")
		}
		seen[l.ProductID] = struct{}{}
		if !l.Quantity.GreaterThan(decimal.Zero) {
			return domain.Invalid(field+".quantity", "debe ser mayor que cero")
		}
	}
	return nil
}
