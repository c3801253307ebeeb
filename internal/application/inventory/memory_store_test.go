package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// memoryStore emula las tablas y el bloqueo por fila de PostgreSQL para los tests:
// cada transacción escribe en un área propia que solo se publica en Commit, y
// GetForUpdate/EnsureExists toman un candado por producto que se libera al terminar la tx.
type memoryStore struct {
	mu        sync.Mutex
	balances  map[string]entity.StockBalance
	movements []*entity.StockMovement
	documents map[string]*entity.StockDocument
	products  map[string]*entity.Product

	rowLocks    map[string]chan struct{}
	lockTimeout time.Duration
	lockOrder   []string

	// afterBalanceRead se invoca tras cada lectura de saldo fuera de candado (Get).
	afterBalanceRead func()
}

func newMemoryStore(productIDs ...string) *memoryStore {
	s := &memoryStore{
		balances:    make(map[string]entity.StockBalance),
		documents:   make(map[string]*entity.StockDocument),
		products:    make(map[string]*entity.Product),
		rowLocks:    make(map[string]chan struct{}),
		lockTimeout: 2 * time.Second,
	}
	for _, id := range productIDs {
		s.products[id] = &entity.Product{ID: id, SKU: "SKU-" + id, Name: id}
	}
	return s
}

func (s *memoryStore) rowLock(productID string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.rowLocks[productID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.rowLocks[productID] = ch
	}
	return ch
}

// Run implementa TxRunner.
func (s *memoryStore) Run(ctx context.Context, fn func(ctx context.Context, repos TxRepos) error) error {
	tx := &memoryTx{
		store:     s,
		balances:  make(map[string]entity.StockBalance),
		documents: make(map[string]*entity.StockDocument),
		held:      make(map[string]bool),
	}
	defer tx.releaseLocks()
	repos := TxRepos{
		Balances:  memoryBalances{tx: tx},
		Movements: memoryMovements{tx: tx},
		Products:  memoryProducts{store: s},
		Documents: memoryDocuments{tx: tx},
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	return tx.commit()
}

// ReadSnapshot implementa SnapshotReader sobre una copia del estado confirmado.
func (s *memoryStore) ReadSnapshot(ctx context.Context, fn func(ctx context.Context, repos TxRepos) error) error {
	s.mu.Lock()
	snap := newMemoryStore()
	for id, b := range s.balances {
		snap.balances[id] = b
	}
	snap.movements = append(snap.movements, s.movements...)
	for id, d := range s.documents {
		snap.documents[id] = d
	}
	for id, p := range s.products {
		snap.products[id] = p
	}
	snap.afterBalanceRead = s.afterBalanceRead
	s.mu.Unlock()
	return fn(ctx, snap.reposOutsideTx())
}

func (s *memoryStore) balance(productID string) (entity.StockBalance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[productID]
	return b, ok
}

func (s *memoryStore) setBalance(productID string, qty, avg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[productID] = entity.StockBalance{
		ProductID:         productID,
		QuantityAvailable: decimal.RequireFromString(qty),
		AverageCost:       decimal.RequireFromString(avg),
	}
}

func (s *memoryStore) committedMovements() []*entity.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.StockMovement, len(s.movements))
	copy(out, s.movements)
	return out
}

func (s *memoryStore) ledgerSum(productID string) decimal.Decimal {
	sum := decimal.Zero
	for _, m := range s.committedMovements() {
		if m.ProductID == productID {
			sum = sum.Add(m.SignedQuantity())
		}
	}
	return sum
}

func (s *memoryStore) locksTaken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lockOrder...)
}

type memoryTx struct {
	store     *memoryStore
	balances  map[string]entity.StockBalance
	movements []*entity.StockMovement
	documents map[string]*entity.StockDocument
	held      map[string]bool
}

func (tx *memoryTx) lock(ctx context.Context, productID string) error {
	if tx.held[productID] {
		return nil
	}
	ch := tx.store.rowLock(productID)
	timer := time.NewTimer(tx.store.lockTimeout)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
	case <-timer.C:
		return domain.ErrBusy
	case <-ctx.Done():
		return domain.ErrBusy
	}
	tx.held[productID] = true
	tx.store.mu.Lock()
	tx.store.lockOrder = append(tx.store.lockOrder, productID)
	tx.store.mu.Unlock()
	return nil
}

func (tx *memoryTx) releaseLocks() {
	for id := range tx.held {
		<-tx.store.rowLock(id)
	}
	tx.held = nil
}

func (tx *memoryTx) commit() error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	// Índice único (reference_type, reference_id, product_id, direction).
	for _, m := range tx.movements {
		for _, c := range s.movements {
			if c.ReferenceType == m.ReferenceType && c.ReferenceID == m.ReferenceID &&
				c.ProductID == m.ProductID && c.Direction == m.Direction {
				return &domain.DuplicateReferenceError{ReferenceType: string(m.ReferenceType), ReferenceID: m.ReferenceID}
			}
		}
	}
	for id, b := range tx.balances {
		s.balances[id] = b
	}
	s.movements = append(s.movements, tx.movements...)
	for id, d := range tx.documents {
		s.documents[id] = d
	}
	return nil
}

type memoryBalances struct{ tx *memoryTx }

func (r memoryBalances) current(productID string) (entity.StockBalance, bool) {
	if b, ok := r.tx.balances[productID]; ok {
		return b, true
	}
	return r.tx.store.balance(productID)
}

func (r memoryBalances) Get(_ context.Context, productID string) (*entity.StockBalance, error) {
	b, ok := r.current(productID)
	if hook := r.tx.store.afterBalanceRead; hook != nil {
		hook()
	}
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r memoryBalances) GetForUpdate(ctx context.Context, productID string) (*entity.StockBalance, bool, error) {
	if _, ok := r.current(productID); !ok {
		return nil, false, nil
	}
	if err := r.tx.lock(ctx, productID); err != nil {
		return nil, false, err
	}
	b, _ := r.current(productID)
	return &b, true, nil
}

func (r memoryBalances) EnsureExists(ctx context.Context, productID string) error {
	if err := r.tx.lock(ctx, productID); err != nil {
		return err
	}
	if _, ok := r.current(productID); !ok {
		r.tx.balances[productID] = entity.StockBalance{ProductID: productID}
	}
	return nil
}

func (r memoryBalances) Upsert(_ context.Context, b *entity.StockBalance) error {
	r.tx.balances[b.ProductID] = *b
	return nil
}

func (r memoryBalances) List(_ context.Context, limit, offset int) ([]*entity.StockBalance, error) {
	s := r.tx.store
	s.mu.Lock()
	ids := make([]string, 0, len(s.balances))
	for id := range s.balances {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	var out []*entity.StockBalance
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		b, _ := r.current(ids[i])
		out = append(out, &b)
	}
	return out, nil
}

type memoryMovements struct{ tx *memoryTx }

func (r memoryMovements) all() []*entity.StockMovement {
	return append(r.tx.store.committedMovements(), r.tx.movements...)
}

func (r memoryMovements) Append(_ context.Context, m *entity.StockMovement) error {
	for _, c := range r.all() {
		if c.ReferenceType == m.ReferenceType && c.ReferenceID == m.ReferenceID &&
			c.ProductID == m.ProductID && c.Direction == m.Direction {
			return &domain.DuplicateReferenceError{ReferenceType: string(m.ReferenceType), ReferenceID: m.ReferenceID}
		}
	}
	cp := *m
	r.tx.movements = append(r.tx.movements, &cp)
	return nil
}

func (r memoryMovements) GetByID(_ context.Context, id string) (*entity.StockMovement, error) {
	for _, m := range r.all() {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (r memoryMovements) ListByProduct(_ context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	for _, m := range r.all() {
		if m.ProductID != productID {
			continue
		}
		if from != nil && m.MovementDate.Before(*from) {
			continue
		}
		if to != nil && m.MovementDate.After(*to) {
			continue
		}
		out = append(out, m)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memoryMovements) ListByReference(_ context.Context, refType entity.ReferenceType, refID string) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	for _, m := range r.all() {
		if m.ReferenceType == refType && m.ReferenceID == refID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r memoryMovements) ListReversalsOf(_ context.Context, refType entity.ReferenceType, refID string) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	for _, m := range r.all() {
		if m.IsReversal() && m.OriginalReferenceType == refType && m.OriginalReferenceID == refID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r memoryMovements) SignedQuantitySum(_ context.Context, productID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, m := range r.all() {
		if m.ProductID == productID {
			sum = sum.Add(m.SignedQuantity())
		}
	}
	return sum, nil
}

type memoryProducts struct{ store *memoryStore }

func (r memoryProducts) GetByID(_ context.Context, id string) (*entity.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.products[id], nil
}

func (r memoryProducts) MissingIDs(_ context.Context, ids []string) ([]string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var missing []string
	for _, id := range ids {
		if _, ok := r.store.products[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type memoryDocuments struct{ tx *memoryTx }

func (r memoryDocuments) Create(_ context.Context, doc *entity.StockDocument) error {
	key := string(doc.ReferenceType) + ":" + doc.ID
	r.tx.store.mu.Lock()
	_, exists := r.tx.store.documents[key]
	r.tx.store.mu.Unlock()
	if _, staged := r.tx.documents[key]; exists || staged {
		return domain.ErrConflict
	}
	r.tx.documents[key] = doc
	return nil
}

func (r memoryDocuments) GetByID(_ context.Context, id string) (*entity.StockDocument, error) {
	r.tx.store.mu.Lock()
	defer r.tx.store.mu.Unlock()
	for _, d := range r.tx.store.documents {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, nil
}

// reposOutsideTx repositorios de solo lectura sobre el estado confirmado.
func (s *memoryStore) reposOutsideTx() TxRepos {
	tx := &memoryTx{store: s, balances: map[string]entity.StockBalance{}, documents: map[string]*entity.StockDocument{}, held: map[string]bool{}}
	return TxRepos{
		Balances:  memoryBalances{tx: tx},
		Movements: memoryMovements{tx: tx},
		Products:  memoryProducts{store: s},
		Documents: memoryDocuments{tx: tx},
	}
}
