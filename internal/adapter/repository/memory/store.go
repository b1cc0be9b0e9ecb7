// Package memory keeps the ledger in process memory. Writes are buffered on a
// transaction and applied atomically on commit.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/usecase"
)

var (
	errTxDone         = errors.New("memory: transaction already finished")
	errForeignTx      = errors.New("memory: transaction does not belong to this store")
	errNilTransaction = errors.New("memory: write outside a transaction")
)

// Store holds every tenant's data.
type Store struct {
	epoch    string
	mu       sync.RWMutex
	accounts map[string]map[string]*domain.Account
	entries  map[string]map[string]*domain.JournalEntry
	seq      map[string]int64
	versions map[string]int64
	outbox   []*domain.OutboxEvent
	audit    []*domain.AuditLog
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		epoch:    ulid.Make().String(),
		accounts: make(map[string]map[string]*domain.Account),
		entries:  make(map[string]map[string]*domain.JournalEntry),
		seq:      make(map[string]int64),
		versions: make(map[string]int64),
	}
}

// Epoch identifies this store instance. Ledger versions restart with every store, so
// anything keyed by version outside the process must also carry the epoch.
func (s *Store) Epoch() string {
	return s.epoch
}

func (s *Store) tenantAccounts(tenantID string) map[string]*domain.Account {
	m, ok := s.accounts[tenantID]
	if !ok {
		m = make(map[string]*domain.Account)
		s.accounts[tenantID] = m
	}
	return m
}

func (s *Store) tenantEntries(tenantID string) map[string]*domain.JournalEntry {
	m, ok := s.entries[tenantID]
	if !ok {
		m = make(map[string]*domain.JournalEntry)
		s.entries[tenantID] = m
	}
	return m
}

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: m.store}, nil
}

// Tx buffers writes until Commit.
type Tx struct {
	mu    sync.Mutex
	store *Store
	ops   []func(s *Store)
	done  bool
}

func (t *Tx) add(op func(s *Store)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errTxDone
	}
	t.ops = append(t.ops, op)
	return nil
}

// Commit applies every buffered write under the store lock.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return errTxDone
	}
	if err := ctx.Err(); err != nil {
		t.done = true
		return err
	}

	t.store.mu.Lock()
	for _, op := range t.ops {
		op(t.store)
	}
	t.store.mu.Unlock()

	t.done = true
	t.ops = nil
	return nil
}

// Rollback discards buffered writes. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.ops = nil
	return nil
}

func (s *Store) txFrom(tx usecase.Transaction) (*Tx, error) {
	if tx == nil {
		return nil, errNilTransaction
	}
	t, ok := tx.(*Tx)
	if !ok || t.store != s {
		return nil, errForeignTx
	}
	return t, nil
}
