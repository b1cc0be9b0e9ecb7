package memory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/usecase"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	store *Store
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(store *Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

// ListPostings flattens the lines of posted and reversed entries.
func (r *LedgerRepository) ListPostings(ctx context.Context, tenantID string, filter domain.PostingFilter) ([]domain.Posting, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var wanted map[string]bool
	if filter.AccountIDs != nil {
		wanted = make(map[string]bool, len(filter.AccountIDs))
		for _, id := range filter.AccountIDs {
			wanted[id] = true
		}
	}

	var out []domain.Posting
	for _, e := range r.store.entries[tenantID] {
		if !e.Status.AffectsBalances() {
			continue
		}
		if filter.To != nil && e.Date.After(*filter.To) {
			continue
		}
		for _, l := range e.Lines {
			if wanted != nil && !wanted[l.AccountID] {
				continue
			}
			desc := l.Description
			if desc == "" {
				desc = e.Description
			}
			out = append(out, domain.Posting{
				EntryID:     e.ID,
				EntryNo:     e.EntryNo,
				EntrySeq:    e.Seq,
				Date:        e.Date,
				Status:      e.Status,
				LineID:      l.ID,
				LineNo:      l.LineNo,
				AccountID:   l.AccountID,
				Description: desc,
				Debit:       l.Debit,
				Credit:      l.Credit,
			})
		}
	}
	return out, nil
}

// CheckConsistency sums every posted debit and credit of the tenant.
func (r *LedgerRepository) CheckConsistency(ctx context.Context, tenantID string) (decimal.Decimal, decimal.Decimal, error) {
	postings, err := r.ListPostings(ctx, tenantID, domain.PostingFilter{})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	debit, credit := decimal.Zero, decimal.Zero
	for _, p := range postings {
		debit = debit.Add(p.Debit)
		credit = credit.Add(p.Credit)
	}
	return debit, credit, nil
}

// LockTenant is a no-op; in-process writers are serialized by usecase.LedgerLocks.
func (r *LedgerRepository) LockTenant(ctx context.Context, tx usecase.Transaction, tenantID string) error {
	_, err := r.store.txFrom(tx)
	return err
}

// Version returns the tenant's committed ledger version.
func (r *LedgerRepository) Version(ctx context.Context, tenantID string) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.versions[tenantID], nil
}

// BumpVersion increments the ledger version on commit and returns the expected new value.
func (r *LedgerRepository) BumpVersion(ctx context.Context, tx usecase.Transaction, tenantID string) (int64, error) {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return 0, err
	}
	r.store.mu.RLock()
	next := r.store.versions[tenantID] + 1
	r.store.mu.RUnlock()

	return next, t.add(func(s *Store) {
		s.versions[tenantID]++
	})
}
