package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// TxRepos repositorios atados a una misma transacción de BD.
type TxRepos struct {
	Balances  repository.BalanceRepository
	Movements repository.MovementRepository
	Products  repository.ProductRepository
	Documents repository.DocumentRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Garantiza atomicidad para el motor de inventario: si fn devuelve error se hace Rollback.
// Las implementaciones traducen timeouts de bloqueo a domain.ErrBusy.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, repos TxRepos) error) error
}

// SnapshotReader ejecuta lecturas sobre una foto consistente de la BD, sin tomar candados.
type SnapshotReader interface {
	ReadSnapshot(ctx context.Context, fn func(ctx context.Context, repos TxRepos) error) error
}

// SubmissionGuard serializa envíos concurrentes del mismo documento antes de abrir la transacción.
// release debe llamarse siempre que err sea nil.
type SubmissionGuard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Recorder recibe métricas del coordinador.
type Recorder interface {
	ObserveDocument(operation string, source entity.Source, lines int, err error, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveDocument(string, entity.Source, int, error, time.Duration) {}
