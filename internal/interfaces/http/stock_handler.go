package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockLedger operaciones de escritura del libro.
type StockLedger interface {
	ApplyFromRequest(ctx context.Context, userID string, in dto.ApplyStockMovementRequest) (*inventory.ApplyResult, error)
	ReverseFromRequest(ctx context.Context, userID string, in dto.ReverseStockMovementRequest) (*inventory.ReverseResult, error)
}

// StockEntries entradas manuales.
type StockEntries interface {
	Create(ctx context.Context, userID string, in dto.CreateStockEntryRequest) (*entity.StockDocument, []string, error)
}

// LedgerQueries lecturas de auditoría.
type LedgerQueries interface {
	GetBalance(ctx context.Context, productID string) (*entity.StockBalance, error)
	ListByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error)
	ListByReference(ctx context.Context, refType entity.ReferenceType, refID string) ([]*entity.StockMovement, error)
}

// Reconciler conciliación saldo contra libro.
type Reconciler interface {
	Check(ctx context.Context, productID string) (*inventory.Reconciliation, error)
	CheckAll(ctx context.Context) ([]inventory.Reconciliation, error)
}

// StockHandler maneja las peticiones HTTP del libro de inventario.
type StockHandler struct {
	ledger    StockLedger
	entries   StockEntries
	queries   LedgerQueries
	reconcile Reconciler
	log       zerolog.Logger
}

// NewStockHandler construye el handler.
func NewStockHandler(ledger StockLedger, entries StockEntries, queries LedgerQueries, reconcile Reconciler, log zerolog.Logger) *StockHandler {
	return &StockHandler{ledger: ledger, entries: entries, queries: queries, reconcile: reconcile, log: log}
}

// ApplyMovement godoc
// @Summary      Aplicar documento de inventario
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ApplyStockMovementRequest  true  "líneas, source, reference_type, reference_id"
// @Success      201   {object}  dto.MovementResultResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/stock/movements [post]
func (h *StockHandler) ApplyMovement(c *fiber.Ctx) error {
	var in dto.ApplyStockMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.ledger.ApplyFromRequest(c.UserContext(), GetUserID(c), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.MovementResultResponse{
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		MovementIDs:   res.MovementIDs,
	})
}

// ReverseMovement godoc
// @Summary      Cancelar total o parcialmente un documento
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReverseStockMovementRequest  true  "documento original; sin lines = cancelación total"
// @Success      201   {object}  dto.MovementResultResponse
// @Router       /api/stock/reversals [post]
func (h *StockHandler) ReverseMovement(c *fiber.Ctx) error {
	var in dto.ReverseStockMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.ledger.ReverseFromRequest(c.UserContext(), GetUserID(c), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.MovementResultResponse{
		ReferenceType: string(entity.ReferenceCancellation),
		ReferenceID:   res.CancellationID,
		MovementIDs:   res.MovementIDs,
	})
}

// CreateEntry godoc
// @Summary      Entrada manual de inventario
// @Tags         stock
// @Router       /api/stock/entries [post]
func (h *StockHandler) CreateEntry(c *fiber.Ctx) error {
	var in dto.CreateStockEntryRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	doc, ids, err := h.entries.Create(c.UserContext(), GetUserID(c), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.MovementResultResponse{
		ReferenceType: string(doc.ReferenceType),
		ReferenceID:   doc.ID,
		MovementIDs:   ids,
	})
}

// GetBalance godoc
// @Summary      Saldo de un producto
// @Tags         stock
// @Router       /api/stock/balances/{product_id} [get]
func (h *StockHandler) GetBalance(c *fiber.Ctx) error {
	bal, err := h.queries.GetBalance(c.UserContext(), c.Params("product_id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.StockBalanceResponse{
		ProductID:         bal.ProductID,
		QuantityAvailable: bal.QuantityAvailable,
		AverageCost:       bal.AverageCost,
		StockValue:        bal.StockValue(),
		LastMovementDate:  bal.LastMovementDate,
		LastUpdated:       bal.LastUpdated,
	})
}

// ListByProduct godoc
// @Summary      Kardex de un producto
// @Tags         stock
// @Param        from    query  string  false  "RFC3339"
// @Param        to      query  string  false  "RFC3339"
// @Param        limit   query  int     false  "máx 500"
// @Param        offset  query  int     false  "desplazamiento"
// @Router       /api/stock/products/{product_id}/movements [get]
func (h *StockHandler) ListByProduct(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return writeError(c, h.log, domain.Invalid("limit", "entero inválido"))
	}
	if err := dto.Validate(page); err != nil {
		return writeError(c, h.log, err)
	}
	page.DefaultPage()
	from, err := queryTime(c, "from")
	if err != nil {
		return writeError(c, h.log, err)
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return writeError(c, h.log, err)
	}

	movs, err := h.queries.ListByProduct(c.UserContext(), c.Params("product_id"), from, to, page.Limit, page.Offset)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.MovementListResponse{
		Items: toMovementResponses(movs),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// ListByReference godoc
// @Summary      Movimientos de un documento y sus reversiones
// @Tags         stock
// @Router       /api/stock/references/{reference_type}/{reference_id}/movements [get]
func (h *StockHandler) ListByReference(c *fiber.Ctx) error {
	movs, err := h.queries.ListByReference(c.UserContext(),
		entity.ReferenceType(c.Params("reference_type")), c.Params("reference_id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(toMovementResponses(movs))
}

// Reconcile godoc
// @Summary      Conciliación de un producto
// @Tags         stock
// @Router       /api/stock/reconciliation/{product_id} [get]
func (h *StockHandler) Reconcile(c *fiber.Ctx) error {
	r, err := h.reconcile.Check(c.UserContext(), c.Params("product_id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(toReconciliationResponse(*r))
}

// ReconcileAll godoc
// @Summary      Productos con saldo distinto al libro
// @Tags         stock
// @Router       /api/stock/reconciliation [get]
func (h *StockHandler) ReconcileAll(c *fiber.Ctx) error {
	list, err := h.reconcile.CheckAll(c.UserContext())
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := make([]dto.ReconciliationResponse, 0, len(list))
	for _, r := range list {
		out = append(out, toReconciliationResponse(r))
	}
	return c.JSON(fiber.Map{"total": len(out), "inconsistent": out})
}

func queryTime(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, domain.Invalid(key, "fecha RFC3339 inválida")
	}
	return &t, nil
}

func toMovementResponses(movs []*entity.StockMovement) []dto.StockMovementResponse {
	out := make([]dto.StockMovementResponse, 0, len(movs))
	for _, m := range movs {
		out = append(out, dto.StockMovementResponse{
			ID:                    m.ID,
			ProductID:             m.ProductID,
			Direction:             string(m.Direction),
			Source:                string(m.Source),
			ReferenceType:         string(m.ReferenceType),
			ReferenceID:           m.ReferenceID,
			OriginalReferenceType: string(m.OriginalReferenceType),
			OriginalReferenceID:   m.OriginalReferenceID,
			Quantity:              m.Quantity,
			UnitCost:              m.UnitCost,
			TotalCost:             m.TotalCost,
			QuantityAfter:         m.QuantityAfter,
			AverageCostAfter:      m.AverageCostAfter,
			MovementDate:          m.MovementDate,
			Notes:                 m.Notes,
			CreatedAt:             m.CreatedAt,
			CreatedBy:             m.CreatedBy,
		})
	}
	return out
}

func toReconciliationResponse(r inventory.Reconciliation) dto.ReconciliationResponse {
	return dto.ReconciliationResponse{
		ProductID:         r.ProductID,
		QuantityAvailable: r.QuantityAvailable,
		LedgerQuantity:    r.LedgerQuantity,
		Difference:        r.Difference(),
		Consistent:        r.Consistent(),
	}
}
