package memory

import (
	"context"
	"sort"

	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	store *Store
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

// Create stores a new account on commit.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return err
	}
	stored := account.Clone()
	return t.add(func(s *Store) {
		s.tenantAccounts(stored.TenantID)[stored.ID] = stored
	})
}

// Update replaces an account on commit.
func (r *AccountRepository) Update(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	return r.Create(ctx, tx, account)
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	a, ok := r.store.accounts[tenantID][id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "account", ID: id}
	}
	return a.Clone(), nil
}

// GetByCode retrieves an account by its code.
func (r *AccountRepository) GetByCode(ctx context.Context, tenantID, code string) (*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, a := range r.store.accounts[tenantID] {
		if a.Code == code {
			return a.Clone(), nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "account", ID: code}
}

// List returns matching accounts ordered by code.
func (r *AccountRepository) List(ctx context.Context, tenantID string, filter domain.AccountFilter) ([]*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.Account, 0, len(r.store.accounts[tenantID]))
	for _, a := range r.store.accounts[tenantID] {
		if filter.Matches(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}
