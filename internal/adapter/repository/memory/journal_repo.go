package memory

import (
	"context"
	"sort"

	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/usecase"
)

// JournalRepository implements usecase.JournalRepository.
type JournalRepository struct {
	store *Store
}

// NewJournalRepository creates a new JournalRepository.
func NewJournalRepository(store *Store) *JournalRepository {
	return &JournalRepository{store: store}
}

// Create stores a new entry on commit.
func (r *JournalRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return err
	}
	stored := entry.Clone()
	return t.add(func(s *Store) {
		s.tenantEntries(stored.TenantID)[stored.ID] = stored
	})
}

// ReplaceDraft replaces a draft's details and lines on commit.
func (r *JournalRepository) ReplaceDraft(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	return r.Create(ctx, tx, entry)
}

// UpdateStatus copies the lifecycle fields of entry onto the stored entry on commit.
func (r *JournalRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return err
	}
	src := entry.Clone()
	return t.add(func(s *Store) {
		stored, ok := s.tenantEntries(src.TenantID)[src.ID]
		if !ok {
			return
		}
		stored.Status = src.Status
		stored.ReversedBy = src.ReversedBy
		stored.ReversalReason = src.ReversalReason
		stored.PostedAt = src.PostedAt
		stored.ReversedAt = src.ReversedAt
		stored.UpdatedAt = src.UpdatedAt
	})
}

// GetByID retrieves an entry by ID.
func (r *JournalRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.JournalEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	e, ok := r.store.entries[tenantID][id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "journal entry", ID: id}
	}
	return e.Clone(), nil
}

// GetByIDForUpdate retrieves an entry inside a transaction. Writers are already
// serialized per tenant, so no row lock is needed.
func (r *JournalRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, tenantID, id string) (*domain.JournalEntry, error) {
	if _, err := r.store.txFrom(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, tenantID, id)
}

// List returns matching entries ordered by entry sequence.
func (r *JournalRepository) List(ctx context.Context, tenantID string, filter domain.EntryFilter) ([]*domain.JournalEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.JournalEntry
	for _, e := range r.store.entries[tenantID] {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })

	if filter.Offset >= len(out) {
		return []*domain.JournalEntry{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}

	result := make([]*domain.JournalEntry, len(out))
	for i, e := range out {
		result[i] = e.Clone()
	}
	return result, nil
}

// NextSequence reserves the next entry number. Like a database sequence, numbers
// reserved by a rolled back transaction are not reused.
func (r *JournalRepository) NextSequence(ctx context.Context, tx usecase.Transaction, tenantID string) (int64, error) {
	if _, err := r.store.txFrom(tx); err != nil {
		return 0, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.seq[tenantID]++
	return r.store.seq[tenantID], nil
}

// HasPostings reports whether a posted or reversed entry references the account.
func (r *JournalRepository) HasPostings(ctx context.Context, tenantID, accountID string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, e := range r.store.entries[tenantID] {
		if !e.Status.AffectsBalances() {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				return true, nil
			}
		}
	}
	return false, nil
}
