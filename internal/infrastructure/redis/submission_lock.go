package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
)

var _ inventory.SubmissionGuard = (*SubmissionLock)(nil)

// SubmissionLock candado distribuido por documento: dos envíos simultáneos del mismo
// reference_id no llegan a competir dentro de PostgreSQL. La idempotencia la sigue
// garantizando el índice único del libro; el candado solo evita trabajo duplicado.
type SubmissionLock struct {
	locker *redislock.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewSubmissionLock construye el guardia. ttl debe cubrir la transacción más lenta esperada.
func NewSubmissionLock(client *goredis.Client, ttl time.Duration, log zerolog.Logger) *SubmissionLock {
	return &SubmissionLock{locker: redislock.New(client), ttl: ttl, log: log}
}

// Acquire intenta tomar el candado sin reintentos. Si otro envío lo tiene devuelve domain.ErrBusy.
func (s *SubmissionLock) Acquire(ctx context.Context, key string) (func(), error) {
	lock, err := s.locker.Obtain(ctx, key, s.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("documento %s en proceso: %w", key, domain.ErrBusy)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func() {
		// Con contexto propio: el del request puede estar cancelado al liberar.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			s.log.Warn().Err(err).Str("key", key).Msg("no se pudo liberar el candado de envío")
		}
	}, nil
}
