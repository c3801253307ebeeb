package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// StockLine línea de un documento. UnitCost es obligatorio en compras; en entradas manuales
// sin costo se usa el promedio vigente; en salidas se ignora.
type StockLine struct {
	ProductID string
	Quantity  decimal.Decimal
	UnitCost  *decimal.Decimal
}

// ApplyCommand evento de documento de negocio a aplicar como una sola unidad atómica.
type ApplyCommand struct {
	Lines         []StockLine
	Source        entity.Source
	ReferenceType entity.ReferenceType
	ReferenceID   string
	MovementDate  time.Time
	Notes         string
	UserID        string
	// PersistDocument guarda la fila del documento en la misma transacción (opcional).
	// Recibe los movimientos ya registrados, en el orden de las líneas.
	PersistDocument func(ctx context.Context, repos TxRepos, movements []*entity.StockMovement) error
}

// ApplyResult ids de los movimientos creados, en el orden de las líneas.
type ApplyResult struct {
	MovementIDs []string
}

// StockLedgerUseCase coordinador de transacciones del libro de inventario.
// Bloquea el saldo de cada producto (SELECT FOR UPDATE), aplica el motor de costeo,
// registra el movimiento y actualiza el saldo; todo o nada.
type StockLedgerUseCase struct {
	txRunner    TxRunner
	productRepo repository.ProductRepository
	guard       SubmissionGuard
	recorder    Recorder
	log         zerolog.Logger
	now         func() time.Time
}

// Option configura el coordinador.
type Option func(*StockLedgerUseCase)

// WithSubmissionGuard activa el candado distribuido por documento.
func WithSubmissionGuard(g SubmissionGuard) Option {
	return func(uc *StockLedgerUseCase) { uc.guard = g }
}

// WithRecorder registra métricas por documento.
func WithRecorder(r Recorder) Option {
	return func(uc *StockLedgerUseCase) {
		if r != nil {
			uc.recorder = r
		}
	}
}

// WithLogger inyecta el logger.
func WithLogger(l zerolog.Logger) Option {
	return func(uc *StockLedgerUseCase) { uc.log = l }
}

// NewStockLedgerUseCase construye el coordinador. productRepo se usa fuera de la transacción
// para validar existencia antes de tomar bloqueos.
func NewStockLedgerUseCase(txRunner TxRunner, productRepo repository.ProductRepository, opts ...Option) *StockLedgerUseCase {
	uc := &StockLedgerUseCase{
		txRunner:    txRunner,
		productRepo: productRepo,
		recorder:    noopRecorder{},
		log:         zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ApplyStockMovement aplica todas las líneas del documento en una transacción.
// Cualquier error (validación, stock insuficiente, duplicado, bloqueo) deja el estado intacto.
func (uc *StockLedgerUseCase) ApplyStockMovement(ctx context.Context, cmd ApplyCommand) (*ApplyResult, error) {
	start := uc.now()
	result, err := uc.applyStockMovement(ctx, cmd)
	uc.recorder.ObserveDocument("apply", cmd.Source, len(cmd.Lines), err, uc.now().Sub(start))
	if err != nil {
		uc.log.Warn().Err(err).
			Str("reference_type", string(cmd.ReferenceType)).
			Str("reference_id", cmd.ReferenceID).
			Str("source", string(cmd.Source)).
			Msg("documento de inventario rechazado")
		return nil, err
	}
	uc.log.Info().
		Str("reference_type", string(cmd.ReferenceType)).
		Str("reference_id", cmd.ReferenceID).
		Str("source", string(cmd.Source)).
		Int("lines", len(cmd.Lines)).
		Msg("documento de inventario aplicado")
	return result, nil
}

func (uc *StockLedgerUseCase) applyStockMovement(ctx context.Context, cmd ApplyCommand) (*ApplyResult, error) {
	direction, err := validateApply(cmd)
	if err != nil {
		return nil, err
	}
	if err := checkProducts(ctx, uc.productRepo, cmd.Lines); err != nil {
		return nil, err
	}
	if cmd.MovementDate.IsZero() {
		cmd.MovementDate = uc.now()
	}

	release, err := uc.acquire(ctx, cmd.ReferenceType, cmd.ReferenceID)
	if err != nil {
		return nil, err
	}
	defer release()

	var ids []string
	err = uc.txRunner.Run(ctx, func(ctx context.Context, repos TxRepos) error {
		ids, err = uc.applyInTx(ctx, repos, cmd, direction)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ApplyResult{MovementIDs: ids}, nil
}

// ApplyInTx aplica el documento usando los repositorios del caller (misma transacción).
// Para flujos que ya abrieron su propia transacción; si retorna error el caller debe hacer rollback.
func (uc *StockLedgerUseCase) ApplyInTx(ctx context.Context, repos TxRepos, cmd ApplyCommand) (*ApplyResult, error) {
	direction, err := validateApply(cmd)
	if err != nil {
		return nil, err
	}
	if err := checkProducts(ctx, repos.Products, cmd.Lines); err != nil {
		return nil, err
	}
	if cmd.MovementDate.IsZero() {
		cmd.MovementDate = uc.now()
	}
	ids, err := uc.applyInTx(ctx, repos, cmd, direction)
	if err != nil {
		return nil, err
	}
	return &ApplyResult{MovementIDs: ids}, nil
}

func (uc *StockLedgerUseCase) applyInTx(ctx context.Context, repos TxRepos, cmd ApplyCommand, direction entity.Direction) ([]string, error) {
	if err := ensureNewReference(ctx, repos.Movements, cmd.ReferenceType, cmd.ReferenceID); err != nil {
		return nil, err
	}
	planned := make([]plannedLine, len(cmd.Lines))
	for i, l := range cmd.Lines {
		planned[i] = plannedLine{productID: l.ProductID, direction: direction, quantity: l.Quantity, unitCost: l.UnitCost}
	}
	balances, err := lockBalances(ctx, repos.Balances, planned)
	if err != nil {
		return nil, err
	}
	movs, err := uc.applyPlanned(ctx, repos, movementHeader{
		source:        cmd.Source,
		referenceType: cmd.ReferenceType,
		referenceID:   cmd.ReferenceID,
		date:          cmd.MovementDate,
		notes:         cmd.Notes,
		userID:        cmd.UserID,
	}, balances, planned)
	if err != nil {
		return nil, err
	}
	if cmd.PersistDocument != nil {
		if err := cmd.PersistDocument(ctx, repos, movs); err != nil {
			return nil, err
		}
	}
	return movementIDs(movs), nil
}

func (uc *StockLedgerUseCase) acquire(ctx context.Context, refType entity.ReferenceType, refID string) (func(), error) {
	if uc.guard == nil {
		return func() {}, nil
	}
	return uc.guard.Acquire(ctx, fmt.Sprintf("stock:%s:%s", refType, refID))
}

// plannedLine línea ya resuelta: sentido, costo y si es reversión.
type plannedLine struct {
	productID string
	direction entity.Direction
	quantity  decimal.Decimal
	unitCost  *decimal.Decimal
	reversal  bool
}

type movementHeader struct {
	source                entity.Source
	referenceType         entity.ReferenceType
	referenceID           string
	originalReferenceType entity.ReferenceType
	originalReferenceID   string
	date                  time.Time
	notes                 string
	userID                string
}

// lockBalances bloquea los saldos de todos los productos en orden ascendente de id,
// para que dos documentos con los mismos productos en distinto orden no se bloqueen mutuamente.
func lockBalances(ctx context.Context, balances repository.BalanceRepository, lines []plannedLine) (map[string]*entity.StockBalance, error) {
	needsRow := make(map[string]bool, len(lines))
	for _, l := range lines {
		needsRow[l.productID] = needsRow[l.productID] || l.direction == entity.DirectionIn
	}
	ids := make([]string, 0, len(needsRow))
	for id := range needsRow {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	locked := make(map[string]*entity.StockBalance, len(ids))
	for _, id := range ids {
		if needsRow[id] {
			if err := balances.EnsureExists(ctx, id); err != nil {
				return nil, err
			}
		}
		bal, exists, err := balances.GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, &domain.BalanceNotFoundError{ProductID: id}
		}
		locked[id] = bal
	}
	return locked, nil
}

// applyPlanned aplica las líneas en el orden recibido sobre los saldos ya bloqueados.
func (uc *StockLedgerUseCase) applyPlanned(
	ctx context.Context,
	repos TxRepos,
	h movementHeader,
	balances map[string]*entity.StockBalance,
	lines []plannedLine,
) ([]*entity.StockMovement, error) {
	now := uc.now()
	movs := make([]*entity.StockMovement, 0, len(lines))
	for _, l := range lines {
		bal := balances[l.productID]
		unitCost := bal.AverageCost
		if l.unitCost != nil {
			unitCost = *l.unitCost
		}
		res, err := inventory.Apply(
			inventory.Position{Quantity: bal.QuantityAvailable, AverageCost: bal.AverageCost},
			inventory.Movement{
				ProductID: l.productID,
				Direction: l.direction,
				Quantity:  l.quantity,
				UnitCost:  unitCost,
				Reversal:  l.reversal,
			},
		)
		if err != nil {
			return nil, err
		}

		mov := &entity.StockMovement{
			ID:                    uuid.New().String(),
			ProductID:             l.productID,
			Direction:             l.direction,
			Source:                h.source,
			ReferenceType:         h.referenceType,
			ReferenceID:           h.referenceID,
			OriginalReferenceType: h.originalReferenceType,
			OriginalReferenceID:   h.originalReferenceID,
			Quantity:              l.quantity,
			UnitCost:              res.UnitCost,
			TotalCost:             l.quantity.Mul(res.UnitCost),
			QuantityAfter:         res.Quantity,
			AverageCostAfter:      res.AverageCost,
			MovementDate:          h.date,
			Notes:                 h.notes,
			CreatedAt:             now,
			CreatedBy:             h.userID,
		}
		if err := repos.Movements.Append(ctx, mov); err != nil {
			return nil, err
		}

		bal.QuantityAvailable = res.Quantity
		bal.AverageCost = res.AverageCost
		if h.date.After(bal.LastMovementDate) {
			bal.LastMovementDate = h.date
		}
		bal.LastUpdated = now
		if err := repos.Balances.Upsert(ctx, bal); err != nil {
			return nil, err
		}
		movs = append(movs, mov)
	}
	return movs, nil
}

func movementIDs(movs []*entity.StockMovement) []string {
	ids := make([]string, len(movs))
	for i, m := range movs {
		ids[i] = m.ID
	}
	return ids
}

// ensureNewReference rechaza documentos que ya tienen movimientos (reenvío).
func ensureNewReference(ctx context.Context, movements repository.MovementRepository, refType entity.ReferenceType, refID string) error {
	existing, err := movements.ListByReference(ctx, refType, refID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}
	ids := make([]string, len(existing))
	for i, m := range existing {
		ids[i] = m.ID
	}
	return &domain.DuplicateReferenceError{ReferenceType: string(refType), ReferenceID: refID, MovementIDs: ids}
}

func validateApply(cmd ApplyCommand) (entity.Direction, error) {
	if cmd.Source == entity.SourceReversal {
		return "", domain.Invalid("source", "las reversiones se registran con ReverseStockMovement")
	}
	direction, ok := cmd.Source.Direction()
	if !ok {
		return "", domain.Invalid("source", fmt.Sprintf("origen desconocido %q", cmd.Source))
	}
	if !cmd.ReferenceType.Valid() || cmd.ReferenceType == entity.ReferenceCancellation {
		return "", domain.Invalid("reference_type", fmt.Sprintf("tipo de referencia no permitido %q", cmd.ReferenceType))
	}
	if cmd.ReferenceID == "" {
		return "", domain.Invalid("reference_id", "requerido")
	}
	if len(cmd.Lines) == 0 {
		return "", domain.Invalid("lines", "el documento no tiene líneas")
	}
	seen := make(map[string]struct{}, len(cmd.Lines))
	for i, l := range cmd.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if l.ProductID == "" {
			return "", domain.Invalid(field+".product_id", "requerido")
		}
		if _, dup := seen[l.ProductID]; dup {
			return "", domain.Invalid(field+".product_id", "producto repetido en el documento")
		}
		seen[l.ProductID] = struct{}{}
		if !l.Quantity.GreaterThan(decimal.Zero) {
			return "", domain.Invalid(field+".quantity", "debe ser mayor que cero")
		}
		if l.UnitCost != nil && l.UnitCost.LessThan(decimal.Zero) {
			return "", domain.Invalid(field+".unit_cost", "no puede ser negativo")
		}
		if cmd.Source == entity.SourcePurchase && l.UnitCost == nil {
			return "", domain.Invalid(field+".unit_cost", "obligatorio en compras")
		}
	}
	return direction, nil
}

func checkProducts(ctx context.Context, products repository.ProductRepository, lines []StockLine) error {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	missing, err := products.MissingIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return domain.Invalid("product_id", fmt.Sprintf("productos inexistentes: %v", missing))
	}
	return nil
}
