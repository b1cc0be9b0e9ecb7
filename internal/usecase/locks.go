package usecase

import "sync"

// LedgerLocks hands out one reader/writer lock per tenant. Writers that append to the
// journal or change the chart take the write lock; projections take the read lock.
type LedgerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// NewLedgerLocks creates an empty lock registry.
func NewLedgerLocks() *LedgerLocks {
	return &LedgerLocks{locks: make(map[string]*sync.RWMutex)}
}

func (l *LedgerLocks) get(tenantID string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[tenantID]
	if !ok {
		m = &sync.RWMutex{}
		l.locks[tenantID] = m
	}
	return m
}

// Lock takes the tenant's write lock and returns the matching unlock.
func (l *LedgerLocks) Lock(tenantID string) func() {
	m := l.get(tenantID)
	m.Lock()
	return m.Unlock
}

// RLock takes the tenant's read lock and returns the matching unlock.
func (l *LedgerLocks) RLock(tenantID string) func() {
	m := l.get(tenantID)
	m.RLock()
	return m.RUnlock
}
