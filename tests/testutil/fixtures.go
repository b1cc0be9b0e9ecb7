package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/iho/gledger/internal/adapter/repository/postgres"
	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/infrastructure/idgen"
	"github.com/iho/gledger/internal/infrastructure/metrics"
	pginfra "github.com/iho/gledger/internal/infrastructure/postgres"
	"github.com/iho/gledger/internal/usecase"
)

// TestDB provides isolated test database connections.
type TestDB struct {
	Pool *pgxpool.Pool
	t    *testing.T
}

// NewTestDB connects to DATABASE_URL and applies the embedded migrations.
// The test is skipped when DATABASE_URL is not set or -short is given.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	if err := pginfra.RunMigrations(dbURL, ""); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping test database: %v", err)
	}

	db := &TestDB{Pool: pool, t: t}
	t.Cleanup(db.Cleanup)
	return db
}

// Cleanup closes the database connection.
func (db *TestDB) Cleanup() {
	db.Pool.Close()
}

// TruncateAll removes all data from tables.
func (db *TestDB) TruncateAll(ctx context.Context) {
	db.t.Helper()

	_, err := db.Pool.Exec(ctx, `
		TRUNCATE TABLE journal_lines, journal_entries, accounts, ledger_state, outbox_events, audit_logs CASCADE;
	`)
	if err != nil {
		db.t.Fatalf("failed to truncate tables: %v", err)
	}
}

// Ledger is the full usecase stack over Postgres.
type Ledger struct {
	Accounts *usecase.AccountUseCase
	Journal  *usecase.JournalUseCase
	Ledger   *usecase.LedgerUseCase
	Reports  *usecase.ReportUseCase
	Outbox   *postgres.OutboxRepository
	Audit    *postgres.AuditRepository
	Metrics  *metrics.Metrics
}

// NewLedger wires the usecases to the test database without a projection cache.
func (db *TestDB) NewLedger() *Ledger {
	pool := db.Pool
	m := metrics.New(prometheus.NewRegistry())
	locks := usecase.NewLedgerLocks()
	ids := idgen.NewULIDGenerator()

	txManager := postgres.NewTxManager(pool)
	accountRepo := postgres.NewAccountRepository(pool)
	journalRepo := postgres.NewJournalRepository(pool)
	ledgerRepo := postgres.NewLedgerRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)

	ledgerUC := usecase.NewLedgerUseCase(accountRepo, ledgerRepo, nil, 0, locks, m)

	return &Ledger{
		Accounts: usecase.NewAccountUseCase(txManager, accountRepo, journalRepo, ledgerRepo, outboxRepo, auditRepo, ids, locks, m),
		Journal: usecase.NewJournalUseCase(txManager, accountRepo, journalRepo, ledgerRepo, outboxRepo, auditRepo, ids, locks, m).
			WithRetrier(postgres.NewRetrier()),
		Ledger:  ledgerUC,
		Reports: usecase.NewReportUseCase(ledgerUC, locks, m, true),
		Outbox:  outboxRepo,
		Audit:   auditRepo,
		Metrics: m,
	}
}

// CreateTestAccount creates an active USD leaf account.
func (l *Ledger) CreateTestAccount(t *testing.T, tenantID, code string, typ domain.AccountType, opening string) *domain.Account {
	t.Helper()

	account, err := l.Accounts.CreateAccount(context.Background(), usecase.CreateAccountInput{
		TenantID:       tenantID,
		Code:           code,
		Name:           code + " " + string(typ),
		Type:           typ,
		OpeningBalance: Dec(opening),
		Currency:       "USD",
	})
	if err != nil {
		t.Fatalf("failed to create test account %s: %v", code, err)
	}
	return account
}

// PostEntry drafts and posts a balanced entry.
func (l *Ledger) PostEntry(t *testing.T, tenantID string, date time.Time, lines ...usecase.LineInput) *domain.JournalEntry {
	t.Helper()

	ctx := context.Background()
	draft, err := l.Journal.CreateDraft(ctx, usecase.CreateEntryInput{
		TenantID: tenantID,
		Date:     date,
		Lines:    lines,
	})
	if err != nil {
		t.Fatalf("failed to draft entry: %v", err)
	}

	posted, err := l.Journal.Post(ctx, tenantID, draft.ID)
	if err != nil {
		t.Fatalf("failed to post entry %s: %v", draft.ID, err)
	}
	return posted
}

// Debit builds a debit line.
func Debit(accountID, amount string) usecase.LineInput {
	return usecase.LineInput{AccountID: accountID, Debit: Dec(amount)}
}

// Credit builds a credit line.
func Credit(accountID, amount string) usecase.LineInput {
	return usecase.LineInput{AccountID: accountID, Credit: Dec(amount)}
}

// Dec parses a decimal literal; an empty string is zero.
func Dec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(s)
}

// Day returns 2024-01-01 plus n days, UTC midnight.
func Day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// NewTenant returns a tenant ID no other test uses.
func NewTenant() string {
	return "t-" + ulid.Make().String()
}

// GenerateID generates a new ULID.
func GenerateID() string {
	return ulid.Make().String()
}
