package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/infrastructure/metrics"
)

// LedgerUseCase is the ledger projector. It derives account ledgers and balances from
// posted entries and never stores them.
type LedgerUseCase struct {
	accountRepo AccountRepository
	ledgerRepo  LedgerRepository
	cache       Cache
	cacheTTL    time.Duration
	locks       *LedgerLocks
	metrics     *metrics.Metrics
}

// NewLedgerUseCase creates a new LedgerUseCase. cache may be nil.
func NewLedgerUseCase(
	accountRepo AccountRepository,
	ledgerRepo LedgerRepository,
	cache Cache,
	cacheTTL time.Duration,
	locks *LedgerLocks,
	metrics *metrics.Metrics,
) *LedgerUseCase {
	if locks == nil {
		locks = NewLedgerLocks()
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultProjectionCacheTTL
	}
	return &LedgerUseCase{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		cache:       cache,
		cacheTTL:    cacheTTL,
		locks:       locks,
		metrics:     metrics,
	}
}

// LedgerQuery selects an account ledger over an optional inclusive date range.
type LedgerQuery struct {
	TenantID  string
	AccountID string
	From      *time.Time
	To        *time.Time
}

// GetLedger returns the chronological ledger of an account. A header account's ledger
// merges the lines of all its descendant leaves.
func (uc *LedgerUseCase) GetLedger(ctx context.Context, q LedgerQuery) (*domain.Ledger, error) {
	if err := requireTenant(q.TenantID); err != nil {
		return nil, err
	}
	if q.AccountID == "" {
		return nil, domain.NewValidationError("accountId", "account id is required")
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return nil, domain.NewValidationError("from", "from must not be after to")
	}

	q.From, q.To = normalizeDatePtr(q.From), normalizeDatePtr(q.To)

	unlock := uc.locks.RLock(q.TenantID)
	defer unlock()

	key := fmt.Sprintf("ledger:%s:%s:%s:%s", q.TenantID, q.AccountID, dateKey(q.From), dateKey(q.To))
	return cached(ctx, uc, q.TenantID, key, "ledger", func(ctx context.Context) (*domain.Ledger, error) {
		return uc.computeLedger(ctx, q)
	})
}

// GetBalance returns the natural-side balance of an account as of a date (inclusive).
// A nil asOf means all posted entries.
func (uc *LedgerUseCase) GetBalance(ctx context.Context, tenantID, accountID string, asOf *time.Time) (decimal.Decimal, error) {
	if err := requireTenant(tenantID); err != nil {
		return decimal.Zero, err
	}

	asOf = normalizeDatePtr(asOf)

	unlock := uc.locks.RLock(tenantID)
	defer unlock()

	key := fmt.Sprintf("balance:%s:%s:%s", tenantID, accountID, dateKey(asOf))
	return cached(ctx, uc, tenantID, key, "balance", func(ctx context.Context) (decimal.Decimal, error) {
		chart, err := uc.loadChart(ctx, tenantID)
		if err != nil {
			return decimal.Zero, err
		}
		if _, ok := chart.Account(accountID); !ok {
			return decimal.Zero, &domain.NotFoundError{Resource: "account", ID: accountID}
		}

		postings, err := uc.ledgerRepo.ListPostings(ctx, tenantID, domain.PostingFilter{
			AccountIDs: accountIDs(chart.LeafDescendants(accountID)),
			To:         asOf,
		})
		if err != nil {
			return decimal.Zero, persistErr("list postings", err)
		}
		return chart.RollUp(domain.LeafBalances(chart, postings))[accountID], nil
	})
}

// GetSnapshot returns the balance of every account of a tenant as of a date.
func (uc *LedgerUseCase) GetSnapshot(ctx context.Context, tenantID string, asOf *time.Time) (*domain.BalanceSnapshot, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	unlock := uc.locks.RLock(tenantID)
	defer unlock()

	return uc.snapshot(ctx, tenantID, normalizeDatePtr(asOf))
}

// CheckConsistency verifies that posted debits equal posted credits for the tenant.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context, tenantID string) (bool, error) {
	if err := requireTenant(tenantID); err != nil {
		return false, err
	}

	unlock := uc.locks.RLock(tenantID)
	defer unlock()

	totalDebit, totalCredit, err := uc.ledgerRepo.CheckConsistency(ctx, tenantID)
	if err != nil {
		return false, persistErr("check consistency", err)
	}
	if !totalDebit.Equal(totalCredit) {
		return false, ErrInconsistentLedger
	}
	return true, nil
}

// snapshot expects the caller to hold the tenant read lock.
func (uc *LedgerUseCase) snapshot(ctx context.Context, tenantID string, asOf *time.Time) (*domain.BalanceSnapshot, error) {
	key := fmt.Sprintf("snapshot:%s:%s", tenantID, dateKey(asOf))
	return cached(ctx, uc, tenantID, key, "snapshot", func(ctx context.Context) (*domain.BalanceSnapshot, error) {
		// Postings are read before accounts so every posted line finds its account.
		postings, err := uc.ledgerRepo.ListPostings(ctx, tenantID, domain.PostingFilter{To: asOf})
		if err != nil {
			return nil, persistErr("list postings", err)
		}
		chart, err := uc.loadChart(ctx, tenantID)
		if err != nil {
			return nil, err
		}

		return &domain.BalanceSnapshot{
			TenantID: tenantID,
			AsOf:     asOf,
			Accounts: chart.Accounts(),
			Balances: chart.RollUp(domain.LeafBalances(chart, postings)),
		}, nil
	})
}

func (uc *LedgerUseCase) computeLedger(ctx context.Context, q LedgerQuery) (*domain.Ledger, error) {
	account, err := uc.accountRepo.GetByID(ctx, q.TenantID, q.AccountID)
	if err != nil {
		return nil, persistErr("get account", err)
	}

	leaves := []*domain.Account{account}
	if account.IsHeader {
		chart, err := uc.loadChart(ctx, q.TenantID)
		if err != nil {
			return nil, err
		}
		leaves = chart.LeafDescendants(account.ID)
	}

	opening := decimal.Zero
	for _, leaf := range leaves {
		opening = opening.Add(leaf.OpeningBalance)
	}

	postings, err := uc.ledgerRepo.ListPostings(ctx, q.TenantID, domain.PostingFilter{
		AccountIDs: accountIDs(leaves),
		To:         q.To,
	})
	if err != nil {
		return nil, persistErr("list postings", err)
	}
	domain.SortPostings(postings)

	ledger := domain.ProjectLedger(account.ID, account.Type, opening, postings, q.From, q.To)
	ledger.Currency = account.Currency
	return ledger, nil
}

func (uc *LedgerUseCase) loadChart(ctx context.Context, tenantID string) (*domain.Chart, error) {
	accounts, err := uc.accountRepo.List(ctx, tenantID, domain.AccountFilter{})
	if err != nil {
		return nil, persistErr("list accounts", err)
	}
	if len(accounts) > maxAccountsPerTenant {
		return nil, fmt.Errorf("tenant %s has %d accounts, above the projection limit", tenantID, len(accounts))
	}
	return domain.NewChart(accounts), nil
}

// cached memoizes a projection under the tenant's ledger version. A result is stored only
// when the version did not move while it was computed.
func cached[T any](ctx context.Context, uc *LedgerUseCase, tenantID, key, kind string, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	start := time.Now()
	defer func() {
		if uc.metrics != nil {
			uc.metrics.ProjectionDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		}
	}()

	if uc.cache == nil {
		return compute(ctx)
	}

	version, err := uc.ledgerRepo.Version(ctx, tenantID)
	if err != nil {
		return zero, persistErr("read ledger version", err)
	}
	versionedKey := fmt.Sprintf("v%d:%s", version, key)

	if data, err := uc.cache.Get(ctx, versionedKey); err == nil && data != nil {
		var out T
		if err := json.Unmarshal(data, &out); err == nil {
			uc.countCache("hit")
			return out, nil
		}
	}
	uc.countCache("miss")

	out, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	after, err := uc.ledgerRepo.Version(ctx, tenantID)
	if err == nil && after == version {
		if data, err := json.Marshal(out); err == nil {
			_ = uc.cache.Set(ctx, versionedKey, data, uc.cacheTTL)
		}
	}
	return out, nil
}

func (uc *LedgerUseCase) countCache(result string) {
	if uc.metrics != nil {
		uc.metrics.ProjectionCache.WithLabelValues(result).Inc()
	}
}

func accountIDs(accounts []*domain.Account) []string {
	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}
	return ids
}

func dateKey(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(domain.DateLayout)
}

func normalizeDatePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := domain.NormalizeDate(*t)
	return &d
}
