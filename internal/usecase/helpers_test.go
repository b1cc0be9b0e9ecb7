package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/gledger/internal/adapter/repository/memory"
	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/infrastructure/metrics"
	"github.com/iho/gledger/internal/usecase"
)

// seqIDs hands out predictable ids so two tenants can reuse the same account ids.
type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%04d", g.n)
}

type fixture struct {
	store    *memory.Store
	accounts *usecase.AccountUseCase
	journal  *usecase.JournalUseCase
	ledger   *usecase.LedgerUseCase
	reports  *usecase.ReportUseCase
	outbox   *memory.OutboxRepository
	versions *memory.LedgerRepository
	audit    *memory.AuditRepository
	metrics  *metrics.Metrics
	registry *prometheus.Registry
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	store           *memory.Store
	cache           usecase.Cache
	includeInactive bool
}

func withStore(s *memory.Store) fixtureOption {
	return func(c *fixtureConfig) { c.store = s }
}

func withCache(cache usecase.Cache) fixtureOption {
	return func(c *fixtureConfig) { c.cache = cache }
}

func withoutInactive() fixtureOption {
	return func(c *fixtureConfig) { c.includeInactive = false }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{store: memory.NewStore(), includeInactive: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := cfg.store
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	ids := &seqIDs{}
	locks := usecase.NewLedgerLocks()

	txManager := memory.NewTxManager(store)
	accountRepo := memory.NewAccountRepository(store)
	journalRepo := memory.NewJournalRepository(store)
	ledgerRepo := memory.NewLedgerRepository(store)
	outboxRepo := memory.NewOutboxRepository(store)
	auditRepo := memory.NewAuditRepository(store)

	ledger := usecase.NewLedgerUseCase(accountRepo, ledgerRepo, cfg.cache, time.Minute, locks, m)

	return &fixture{
		store:    store,
		accounts: usecase.NewAccountUseCase(txManager, accountRepo, journalRepo, ledgerRepo, outboxRepo, auditRepo, ids, locks, m),
		journal:  usecase.NewJournalUseCase(txManager, accountRepo, journalRepo, ledgerRepo, outboxRepo, auditRepo, ids, locks, m),
		ledger:   ledger,
		reports:  usecase.NewReportUseCase(ledger, locks, m, cfg.includeInactive),
		outbox:   outboxRepo,
		versions: ledgerRepo,
		audit:    auditRepo,
		metrics:  m,
		registry: registry,
	}
}

var testDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return testDate.AddDate(0, 0, n)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) account(t *testing.T, tenant, code string, typ domain.AccountType) *domain.Account {
	t.Helper()
	return f.accountWith(t, usecase.CreateAccountInput{
		TenantID: tenant,
		Code:     code,
		Name:     "Account " + code,
		Type:     typ,
		Currency: "USD",
	})
}

func (f *fixture) accountWith(t *testing.T, input usecase.CreateAccountInput) *domain.Account {
	t.Helper()
	if input.Name == "" {
		input.Name = "Account " + input.Code
	}
	if input.Currency == "" {
		input.Currency = "USD"
	}
	a, err := f.accounts.CreateAccount(context.Background(), input)
	require.NoError(t, err)
	return a
}

func debit(accountID, amount string) usecase.LineInput {
	return usecase.LineInput{AccountID: accountID, Debit: dec(amount)}
}

func credit(accountID, amount string) usecase.LineInput {
	return usecase.LineInput{AccountID: accountID, Credit: dec(amount)}
}

func (f *fixture) draft(t *testing.T, tenant string, date time.Time, lines ...usecase.LineInput) *domain.JournalEntry {
	t.Helper()
	e, err := f.journal.CreateDraft(context.Background(), usecase.CreateEntryInput{
		TenantID:    tenant,
		Date:        date,
		Description: "test entry",
		Lines:       lines,
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) post(t *testing.T, tenant string, date time.Time, lines ...usecase.LineInput) *domain.JournalEntry {
	t.Helper()
	e := f.draft(t, tenant, date, lines...)
	posted, err := f.journal.Post(context.Background(), tenant, e.ID)
	require.NoError(t, err)
	return posted
}

func (f *fixture) balance(t *testing.T, tenant, accountID string) decimal.Decimal {
	t.Helper()
	b, err := f.ledger.GetBalance(context.Background(), tenant, accountID, nil)
	require.NoError(t, err)
	return b
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}
