package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func cost(s string) *decimal.Decimal {
	c := dec(s)
	return &c
}

func newLedger(store *memoryStore, opts ...Option) *StockLedgerUseCase {
	return NewStockLedgerUseCase(store, memoryProducts{store: store}, opts...)
}

func purchase(ref string, lines ...StockLine) ApplyCommand {
	return ApplyCommand{
		Lines:         lines,
		Source:        entity.SourcePurchase,
		ReferenceType: entity.ReferencePurchaseOrder,
		ReferenceID:   ref,
	}
}

func sale(ref string, lines ...StockLine) ApplyCommand {
	return ApplyCommand{
		Lines:         lines,
		Source:        entity.SourceSaleLocal,
		ReferenceType: entity.ReferenceDeliveryNote,
		ReferenceID:   ref,
	}
}

// seed registra una compra inicial para que saldo y libro partan conciliados.
func seed(t *testing.T, uc *StockLedgerUseCase, productID, qty, unitCost string) {
	t.Helper()
	_, err := uc.ApplyStockMovement(context.Background(),
		purchase("SEED-"+productID, StockLine{ProductID: productID, Quantity: dec(qty), UnitCost: cost(unitCost)}))
	require.NoError(t, err)
}

func assertBalance(t *testing.T, store *memoryStore, productID, qty, avg string) {
	t.Helper()
	b, ok := store.balance(productID)
	require.True(t, ok, "saldo de %s", productID)
	assert.True(t, dec(qty).Equal(b.QuantityAvailable), "cantidad de %s: quería %s, obtuvo %s", productID, qty, b.QuantityAvailable)
	assert.True(t, dec(avg).Equal(b.AverageCost), "costo de %s: quería %s, obtuvo %s", productID, avg, b.AverageCost)
	assert.True(t, b.QuantityAvailable.Equal(store.ledgerSum(productID)), "conciliación de %s", productID)
}

func TestApplyStockMovement_PromedioPonderado(t *testing.T) {
	store := newMemoryStore("p1")
	uc := newLedger(store)
	ctx := context.Background()

	_, err := uc.ApplyStockMovement(ctx, purchase("PO-1", StockLine{ProductID: "p1", Quantity: dec("10"), UnitCost: cost("100")}))
	require.NoError(t, err)
	_, err = uc.ApplyStockMovement(ctx, purchase("PO-2", StockLine{ProductID: "p1", Quantity: dec("10"), UnitCost: cost("200")}))
	require.NoError(t, err)
	assertBalance(t, store, "p1", "20", "150")

	res, err := uc.ApplyStockMovement(ctx, sale("DN-1", StockLine{ProductID: "p1", Quantity: dec("5")}))
	require.NoError(t, err)
	require.Len(t, res.MovementIDs, 1)
	assertBalance(t, store, "p1", "15", "150")

	movs := store.committedMovements()
	require.Len(t, movs, 3)
	out := movs[2]
	assert.Equal(t, entity.DirectionOut, out.Direction)
	assert.Equal(t, entity.SourceSaleLocal, out.Source)
	assert.True(t, dec("150").Equal(out.UnitCost), "COGS al promedio vigente")
	assert.True(t, dec("750").Equal(out.TotalCost))
	assert.True(t, dec("15").Equal(out.QuantityAfter))
	assert.Equal(t, res.MovementIDs[0], out.ID)
}

func TestApplyStockMovement_StockInsuficienteAbortaTodoElDocumento(t *testing.T) {
	store := newMemoryStore("p1", "p2")
	uc := newLedger(store)
	seed(t, uc, "p1", "10", "5")
	seed(t, uc, "p2", "1", "7")

	_, err := uc.ApplyStockMovement(context.Background(), sale("DN-9",
		StockLine{ProductID: "p1", Quantity: dec("4")},
		StockLine{ProductID: "p2", Quantity: dec("3")},
	))
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "p2", ise.ProductID)
	assert.True(t, dec("1").Equal(ise.Available))
	assert.True(t, dec("3").Equal(ise.Requested))

	b1, _ := store.balance("p1")
	assert.True(t, dec("10").Equal(b1.QuantityAvailable), "la primera línea tampoco se aplica")
	assert.Len(t, store.committedMovements(), 2)
}

func TestApplyStockMovement_SalidaSinSaldoPrevio(t *testing.T) {
	store := newMemoryStore("p1")
	uc := newLedger(store)

	_, err := uc.ApplyStockMovement(context.Background(), sale("DN-1", StockLine{ProductID: "p1", Quantity: dec("1")}))
	require.ErrorIs(t, err, domain.ErrBalanceNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, exists := store.balance("p1")
	assert.False(t, exists, "no se crea saldo en cero")
}

func TestApplyStockMovement_ReenvioDuplicado(t *testing.T) {
	store := newMemoryStore("p1")
	uc := newLedger(store)
	ctx := context.Background()
	cmd := purchase("PO-1", StockLine{ProductID: "p1", Quantity: dec("10"), UnitCost: cost("3")})

	first, err := uc.ApplyStockMovement(ctx, cmd)
	require.NoError(t, err)

	_, err = uc.ApplyStockMovement(ctx, cmd)
	require.ErrorIs(t, err, domain.ErrDuplicateReference)
	var dup *domain.DuplicateReferenceError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.MovementIDs, dup.MovementIDs)

	assertBalance(t, store, "p1", "10", "3")
}

func TestApplyStockMovement_Validaciones(t *testing.T) {
	store := newMemoryStore("p1", "p2")
	uc := newLedger(store)

	tests := []struct {
		name string
		cmd  ApplyCommand
	}{
		{"sin líneas", purchase("PO-1")},
		{"cantidad cero", purchase("PO-1", StockLine{ProductID: "p1", Quantity: dec("0"), UnitCost: cost("1")})},
		{"cantidad negativa", sale("DN-1", StockLine{ProductID: "p1", Quantity: dec("-2")})},
		{"compra sin costo", purchase("PO-1", StockLine{ProductID: "p1", Quantity: dec("1")})},
		{"costo negativo", purchase("PO-1", StockLine{ProductID: "p1", Quantity: dec("1"), UnitCost: cost("-1")})},
		{"producto repetido", sale("DN-1", StockLine{ProductID: "p1", Quantity: dec("1")}, StockLine{ProductID: "p1", Quantity: dec("1")})},
		{"producto inexistente", sale("DN-1", StockLine{ProductID: "nope", Quantity: dec("1")})},
		{"sin referencia", purchase("", StockLine{ProductID: "p1", Quantity: dec("1"), UnitCost: cost("1")})},
		{"origen reversión", ApplyCommand{Source: entity.SourceReversal, ReferenceType: entity.ReferenceDeliveryNote, ReferenceID: "x",
			Lines: []StockLine{{ProductID: "p1", Quantity: dec("1")}}}},
		{"origen desconocido", ApplyCommand{Source: "gift", ReferenceType: entity.ReferenceDeliveryNote, ReferenceID: "x",
			Lines: []StockLine{{ProductID: "p1", Quantity: dec("1")}}}},
		{"referencia de cancelación", ApplyCommand{Source: entity.SourceSaleLocal, ReferenceType: entity.ReferenceCancellation, ReferenceID: "x",
			Lines: []StockLine{{ProductID: "p1", Quantity: dec("1")}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.ApplyStockMovement(context.Background(), tt.cmd)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
			var ve *domain.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
	assert.Empty(t, store.locksTaken(), "las validaciones no toman bloqueos")
	assert.Empty(t, store.committedMovements())
}

func TestApplyStockMovement_EntradaManualSinCostoUsaPromedio(t *testing.T) {
	store := newMemoryStore("p1")
	uc := newLedger(store)
	seed(t, uc, "p1", "4", "12.5")

	_, err := uc.ApplyStockMovement(context.Background(), ApplyCommand{
		Lines:         []StockLine{{ProductID: "p1", Quantity: dec("4")}},
		Source:        entity.SourceManualEntry,
		ReferenceType: entity.ReferenceStockEntry,
		ReferenceID:   "SE-1",
	})
	require.NoError(t, err)
	assertBalance(t, store, "p1", "8", "12.5")
}

func TestApplyStockMovement_OrdenDeBloqueosYDeAplicacion(t *testing.T) {
	store := newMemoryStore("a", "b", "c")
	uc := newLedger(store)

	res, err := uc.ApplyStockMovement(context.Background(), purchase("PO-1",
		StockLine{ProductID: "c", Quantity: dec("1"), UnitCost: cost("1")},
		StockLine{ProductID: "a", Quantity: dec("2"), UnitCost: cost("1")},
		StockLine{ProductID: "b", Quantity: dec("3"), UnitCost: cost("1")},
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, store.locksTaken(), "bloqueos en orden de product_id")

	movs := store.committedMovements()
	require.Len(t, movs, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{movs[0].ProductID, movs[1].ProductID, movs[2].ProductID}, "líneas en orden de entrada")
	assert.Equal(t, res.MovementIDs, []string{movs[0].ID, movs[1].ID, movs[2].ID})
}

func TestApplyStockMovement_FalloAlGuardarDocumentoHaceRollback(t *testing.T) {
	store := newMemoryStore("p1")
	uc := newLedger(store)
	boom := errors.New("insert delivery_notes: boom")

	cmd := purchase("PO-1", StockLine{ProductID: "p1", Quantity: dec("5"), UnitCost: cost("2")})
	cmd.PersistDocument = func(context.Context, TxRepos, []*entity.StockMovement) error { return boom }

	_, err := uc.ApplyStockMovement(context.Background(), cmd)
	require.ErrorIs(t, err, boom)
	_, exists := store.balance("p1")
	assert.False(t, exists)
	assert.Empty(t, store.committedMovements())
}

func TestApplyStockMovement_BloqueoOcupado(t *testing.T) {
	store := newMemoryStore("p1")
	uc := newLedger(store)
	seed(t, uc, "p1", "10", "1")
	store.lockTimeout = 30 * time.Millisecond
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	slow := sale("DN-1", StockLine{ProductID: "p1", Quantity: dec("1")})
	slow.PersistDocument = func(context.Context, TxRepos, []*entity.StockMovement) error {
		close(entered)
		<-release
		return nil
	}

	var g errgroup.Group
	g.Go(func() error {
		_, err := uc.ApplyStockMovement(ctx, slow)
		return err
	})
	<-entered

	_, err := uc.ApplyStockMovement(ctx, sale("DN-2", StockLine{ProductID: "p1", Quantity: dec("1")}))
	require.ErrorIs(t, err, domain.ErrBusy)
	assert.True(t, domain.IsRetryable(err))

	close(release)
	require.NoError(t, g.Wait())
	assertBalance(t, store, "p1", "9", "1")
}

func TestApplyStockMovement_ConcurrenciaMismoProducto(t *testing.T) {
	store := newMemoryStore("p1")
	uc := newLedger(store)
	seed(t, uc, "p1", "10", "4")
	ctx := context.Background()

	var ok, insufficient atomic.Int32
	var g errgroup.Group
	for i := 0; i < 15; i++ {
		ref := fmt.Sprintf("DN-%02d", i)
		g.Go(func() error {
			_, err := uc.ApplyStockMovement(ctx, sale(ref, StockLine{ProductID: "p1", Quantity: dec("1")}))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficient.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 10, ok.Load())
	assert.EqualValues(t, 5, insufficient.Load())
	assertBalance(t, store, "p1", "0", "4")
	assert.Len(t, store.committedMovements(), 11)
}

func TestApplyStockMovement_GuardiaDeEnvio(t *testing.T) {
	store := newMemoryStore("p1")
	guard := &fakeGuard{err: domain.ErrBusy}
	uc := newLedger(store, WithSubmissionGuard(guard))

	_, err := uc.ApplyStockMovement(context.Background(), purchase("PO-7", StockLine{ProductID: "p1", Quantity: dec("1"), UnitCost: cost("1")}))
	require.ErrorIs(t, err, domain.ErrBusy)
	assert.Equal(t, []string{"stock:purchase_order:PO-7"}, guard.keys)
	assert.Empty(t, store.committedMovements())

	guard.err = nil
	_, err = uc.ApplyStockMovement(context.Background(), purchase("PO-7", StockLine{ProductID: "p1", Quantity: dec("1"), UnitCost: cost("1")}))
	require.NoError(t, err)
	assert.Equal(t, 1, guard.released)
}

func TestApplyStockMovement_Metricas(t *testing.T) {
	store := newMemoryStore("p1")
	rec := &fakeRecorder{}
	uc := newLedger(store, WithRecorder(rec))

	_, _ = uc.ApplyStockMovement(context.Background(), purchase("PO-1", StockLine{ProductID: "p1", Quantity: dec("1"), UnitCost: cost("1")}))
	_, _ = uc.ApplyStockMovement(context.Background(), sale("DN-1", StockLine{ProductID: "p1", Quantity: dec("5")}))

	require.Len(t, rec.calls, 2)
	assert.NoError(t, rec.calls[0].err)
	assert.ErrorIs(t, rec.calls[1].err, domain.ErrInsufficientStock)
	assert.Equal(t, entity.SourceSaleLocal, rec.calls[1].source)
	assert.Equal(t, 1, rec.calls[0].lines)
}

func TestReverseStockMovement_MetricasCuentanLineasDeLaCancelacionTotal(t *testing.T) {
	store := newMemoryStore("p1", "p2")
	rec := &fakeRecorder{}
	uc := newLedger(store, WithRecorder(rec))
	ctx := context.Background()
	seed(t, uc, "p1", "5", "1")
	seed(t, uc, "p2", "5", "1")
	_, err := uc.ApplyStockMovement(ctx, sale("DN-1",
		StockLine{ProductID: "p1", Quantity: dec("1")},
		StockLine{ProductID: "p2", Quantity: dec("2")},
	))
	require.NoError(t, err)

	_, err = uc.ReverseStockMovement(ctx, ReverseCommand{ReferenceType: entity.ReferenceDeliveryNote, ReferenceID: "DN-1"})
	require.NoError(t, err)

	last := rec.calls[len(rec.calls)-1]
	assert.Equal(t, "reverse", last.operation)
	assert.Equal(t, entity.SourceReversal, last.source)
	assert.Equal(t, 2, last.lines)
}

func TestApplyInTx_UsaLaTransaccionDelCaller(t *testing.T) {
	store := newMemoryStore("p1")
	uc := newLedger(store)

	err := store.Run(context.Background(), func(ctx context.Context, repos TxRepos) error {
		if _, err := uc.ApplyInTx(ctx, repos, purchase("PO-1", StockLine{ProductID: "p1", Quantity: dec("2"), UnitCost: cost("9")})); err != nil {
			return err
		}
		return errors.New("falla posterior del caller")
	})
	require.Error(t, err)
	assert.Empty(t, store.committedMovements(), "el rollback del caller deshace el efecto en stock")
}

type fakeGuard struct {
	err      error
	keys     []string
	released int
}

func (g *fakeGuard) Acquire(_ context.Context, key string) (func(), error) {
	g.keys = append(g.keys, key)
	if g.err != nil {
		return nil, g.err
	}
	return func() { g.released++ }, nil
}

type recordedCall struct {
	operation string
	source    entity.Source
	lines     int
	err       error
}

type fakeRecorder struct{ calls []recordedCall }

func (r *fakeRecorder) ObserveDocument(op string, source entity.Source, lines int, err error, _ time.Duration) {
	r.calls = append(r.calls, recordedCall{operation: op, source: source, lines: lines, err: err})
}
