package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/iho/gledger/internal/adapter/http/dto"
	"github.com/iho/gledger/internal/adapter/http/handler"
	apimiddleware "github.com/iho/gledger/internal/adapter/http/middleware"
	"github.com/iho/gledger/internal/adapter/repository/memory"
	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/infrastructure/auth"
	"github.com/iho/gledger/internal/infrastructure/idgen"
	"github.com/iho/gledger/internal/infrastructure/metrics"
	"github.com/iho/gledger/internal/usecase"
)

func newRouterConfig(t *testing.T, opts ...func(*RouterConfig)) RouterConfig {
	t.Helper()

	store := memory.NewStore()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	locks := usecase.NewLedgerLocks()
	ids := idgen.NewULIDGenerator()

	txManager := memory.NewTxManager(store)
	accountRepo := memory.NewAccountRepository(store)
	journalRepo := memory.NewJournalRepository(store)
	ledgerRepo := memory.NewLedgerRepository(store)
	outboxRepo := memory.NewOutboxRepository(store)
	auditRepo := memory.NewAuditRepository(store)

	cache, err := memory.NewCache(128)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	accountUC := usecase.NewAccountUseCase(txManager, accountRepo, journalRepo, ledgerRepo, outboxRepo, auditRepo, ids, locks, m)
	journalUC := usecase.NewJournalUseCase(txManager, accountRepo, journalRepo, ledgerRepo, outboxRepo, auditRepo, ids, locks, m)
	ledgerUC := usecase.NewLedgerUseCase(accountRepo, ledgerRepo, cache, time.Minute, locks, m)
	reportUC := usecase.NewReportUseCase(ledgerUC, locks, m, true)
	auditUC := usecase.NewAuditUseCase(auditRepo, accountRepo, journalRepo)

	cfg := RouterConfig{
		AccountHandler:   handler.NewAccountHandler(accountUC, ledgerUC),
		JournalHandler:   handler.NewJournalHandler(journalUC),
		LedgerHandler:    handler.NewLedgerHandler(ledgerUC),
		ReportHandler:    handler.NewReportHandler(reportUC),
		HealthHandler:    handler.NewHealthHandler(),
		AuditHandler:     handler.NewAuditHandler(auditUC),
		Metrics:          m,
		MetricsHandler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		IdempotencyStore: memory.NewIdempotencyStore(cache),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

type client struct {
	t       *testing.T
	handler http.Handler
	tenant  string
	token   string
}

func (c *client) do(method, path string, body any, out any) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.tenant != "" {
		req.Header.Set(apimiddleware.DefaultTenantHeader, c.tenant)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			c.t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec
}

func (c *client) createAccount(code, name, typ, opening string) string {
	c.t.Helper()
	var acc dto.AccountResponse
	rec := c.do(http.MethodPost, "/api/v1/accounts", dto.CreateAccountRequest{
		Code: code, Name: name, Type: typ, Currency: "USD", OpeningBalance: opening,
	}, &acc)
	if rec.Code != http.StatusCreated {
		c.t.Fatalf("create account %s: %d %s", code, rec.Code, rec.Body.String())
	}
	return acc.ID
}

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig(t))

	for _, path := range []string{"/health", "/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected %s to return 200, got %d", path, rec.Code)
		}
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig(t))

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"GET /metrics",
		"POST /api/v1/accounts/",
		"GET /api/v1/accounts/",
		"GET /api/v1/accounts/{id}",
		"PATCH /api/v1/accounts/{id}",
		"POST /api/v1/accounts/{id}/deactivate",
		"GET /api/v1/accounts/{id}/balance",
		"POST /api/v1/journal-entries/",
		"GET /api/v1/journal-entries/",
		"GET /api/v1/journal-entries/{id}",
		"PUT /api/v1/journal-entries/{id}",
		"POST /api/v1/journal-entries/{id}/post",
		"POST /api/v1/journal-entries/{id}/reverse",
		"GET /api/v1/ledger/{accountId}",
		"GET /api/v1/ledger/consistency",
		"GET /api/v1/reports/trial-balance",
		"GET /api/v1/reports/balance-check",
		"GET /api/v1/reports/account-types",
		"GET /api/v1/reports/profit-and-loss",
		"GET /api/v1/reports/balance-sheet",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}

func TestNewRouter_RequiresTenant(t *testing.T) {
	c := &client{t: t, handler: NewRouter(newRouterConfig(t))}

	rec := c.do(http.MethodGet, "/api/v1/accounts", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a tenant, got %d", rec.Code)
	}
}

func TestNewRouter_SalesScenario(t *testing.T) {
	c := &client{t: t, handler: NewRouter(newRouterConfig(t)), tenant: "acme"}

	cash := c.createAccount("1000", "Cash", "ASSET", "1000")
	c.createAccount("3000", "Capital", "EQUITY", "1000")
	sales := c.createAccount("4000", "Sales", "INCOME", "")

	rec := c.do(http.MethodPost, "/api/v1/accounts", dto.CreateAccountRequest{Code: "1000", Name: "Dup", Type: "ASSET", Currency: "USD"}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a duplicate code, got %d", rec.Code)
	}

	// An unbalanced draft is accepted but cannot be posted.
	var draft dto.EntryResponse
	rec = c.do(http.MethodPost, "/api/v1/journal-entries", dto.EntryRequest{
		Date: "2024-03-01",
		Lines: []dto.LineRequest{
			{AccountID: cash, Debit: "300.00"},
			{AccountID: sales, Credit: "299.99"},
		},
	}, &draft)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create draft: %d %s", rec.Code, rec.Body.String())
	}

	rec = c.do(http.MethodPost, "/api/v1/journal-entries/"+draft.ID+"/post", nil, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for an unbalanced post, got %d", rec.Code)
	}
	var unbalanced dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &unbalanced); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if unbalanced.Delta == nil || !unbalanced.Delta.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("expected delta 0.01, got %v", unbalanced.Delta)
	}

	// Fix the draft and post it.
	rec = c.do(http.MethodPut, "/api/v1/journal-entries/"+draft.ID, dto.EntryRequest{
		Date: "2024-03-01",
		Lines: []dto.LineRequest{
			{AccountID: cash, Debit: "300.00"},
			{AccountID: sales, Credit: "300.00"},
		},
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("update draft: %d %s", rec.Code, rec.Body.String())
	}

	var posted dto.EntryResponse
	rec = c.do(http.MethodPost, "/api/v1/journal-entries/"+draft.ID+"/post", nil, &posted)
	if rec.Code != http.StatusOK || posted.Status != "POSTED" {
		t.Fatalf("post: %d %s", rec.Code, rec.Body.String())
	}

	var balance dto.BalanceResponse
	c.do(http.MethodGet, "/api/v1/accounts/"+cash+"/balance", nil, &balance)
	if !balance.Balance.Equal(decimal.NewFromInt(1300)) {
		t.Fatalf("expected cash 1300, got %s", balance.Balance)
	}

	var tb dto.TrialBalanceResponse
	c.do(http.MethodGet, "/api/v1/reports/trial-balance", nil, &tb)
	if !tb.Balanced || !tb.TotalDebit.Equal(decimal.NewFromInt(1300)) || !tb.TotalCredit.Equal(decimal.NewFromInt(1300)) {
		t.Fatalf("unexpected trial balance %+v", tb)
	}

	// Reverse and check the ledger nets out.
	var compensating dto.EntryResponse
	rec = c.do(http.MethodPost, "/api/v1/journal-entries/"+draft.ID+"/reverse", dto.ReverseEntryRequest{Reason: "wrong customer"}, &compensating)
	if rec.Code != http.StatusCreated || compensating.ReversalOf != draft.ID {
		t.Fatalf("reverse: %d %s", rec.Code, rec.Body.String())
	}

	rec = c.do(http.MethodPost, "/api/v1/journal-entries/"+draft.ID+"/reverse", dto.ReverseEntryRequest{Reason: "again"}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a second reversal, got %d", rec.Code)
	}

	var ledger dto.LedgerResponse
	c.do(http.MethodGet, "/api/v1/ledger/"+cash, nil, &ledger)
	if len(ledger.Entries) != 2 || !ledger.ClosingBalance.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected ledger %+v", ledger)
	}

	rec = c.do(http.MethodGet, "/api/v1/reports/balance-check", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected balanced books, got %d", rec.Code)
	}
	rec = c.do(http.MethodGet, "/api/v1/ledger/consistency", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected consistent ledger, got %d", rec.Code)
	}
}

func TestNewRouter_TenantIsolation(t *testing.T) {
	handler := NewRouter(newRouterConfig(t))
	acme := &client{t: t, handler: handler, tenant: "acme"}
	globex := &client{t: t, handler: handler, tenant: "globex"}

	cash := acme.createAccount("1000", "Cash", "ASSET", "")

	if rec := globex.do(http.MethodGet, "/api/v1/accounts/"+cash, nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 across tenants, got %d", rec.Code)
	}
	if rec := globex.do(http.MethodGet, "/api/v1/ledger/"+cash, nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another tenant's ledger, got %d", rec.Code)
	}
}

func TestNewRouter_IdempotentCreate(t *testing.T) {
	c := &client{t: t, handler: NewRouter(newRouterConfig(t)), tenant: "acme"}
	cash := c.createAccount("1000", "Cash", "ASSET", "")
	sales := c.createAccount("4000", "Sales", "INCOME", "")

	body, _ := json.Marshal(dto.EntryRequest{
		Date:  "2024-03-01",
		Lines: []dto.LineRequest{{AccountID: cash, Debit: "5"}, {AccountID: sales, Credit: "5"}},
	})
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/journal-entries", bytes.NewReader(body))
		req.Header.Set(apimiddleware.DefaultTenantHeader, "acme")
		req.Header.Set(apimiddleware.IdempotencyKeyHeader, "draft-1")
		rec := httptest.NewRecorder()
		c.handler.ServeHTTP(rec, req)
		return rec
	}

	first, second := send(), send()
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected 201 twice, got %d and %d", first.Code, second.Code)
	}
	if second.Header().Get(apimiddleware.IdempotencyReplayHeader) != "true" {
		t.Fatalf("expected the second response to be replayed")
	}

	var entries []dto.EntryResponse
	c.do(http.MethodGet, "/api/v1/journal-entries", nil, &entries)
	if len(entries) != 1 {
		t.Fatalf("expected a single draft, got %d", len(entries))
	}
}

func TestNewRouter_AuditTrail(t *testing.T) {
	c := &client{t: t, handler: NewRouter(newRouterConfig(t)), tenant: "acme"}
	cash := c.createAccount("1000", "Cash", "ASSET", "")
	sales := c.createAccount("4000", "Sales", "INCOME", "")

	var entry dto.EntryResponse
	rec := c.do(http.MethodPost, "/api/v1/journal-entries", dto.EntryRequest{
		Date:  "2024-03-01",
		Lines: []dto.LineRequest{{AccountID: cash, Debit: "40"}, {AccountID: sales, Credit: "40"}},
	}, &entry)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create draft: %d %s", rec.Code, rec.Body.String())
	}
	if rec := c.do(http.MethodPost, "/api/v1/journal-entries/"+entry.ID+"/post", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("post: %d %s", rec.Code, rec.Body.String())
	}
	if rec := c.do(http.MethodPost, "/api/v1/journal-entries/"+entry.ID+"/reverse", dto.ReverseEntryRequest{Reason: "duplicate"}, nil); rec.Code != http.StatusCreated {
		t.Fatalf("reverse: %d %s", rec.Code, rec.Body.String())
	}

	var trail []dto.AuditLogResponse
	rec = c.do(http.MethodGet, "/api/v1/journal-entries/"+entry.ID+"/audit", nil, &trail)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit: %d %s", rec.Code, rec.Body.String())
	}
	var actions []string
	for _, l := range trail {
		actions = append(actions, l.Action)
		if l.ResourceID != entry.ID {
			t.Errorf("unexpected resource %s in the entry trail", l.ResourceID)
		}
	}
	want := []string{"journal.reverse", "journal.post", "journal.create"}
	if strings.Join(actions, ",") != strings.Join(want, ",") {
		t.Fatalf("actions = %v, want %v", actions, want)
	}
	if trail[0].Before["Status"] != "POSTED" || trail[0].After["Status"] != "REVERSED" {
		t.Errorf("expected the reversal to record the status change, got %v -> %v", trail[0].Before["Status"], trail[0].After["Status"])
	}

	var accountTrail []dto.AuditLogResponse
	c.do(http.MethodGet, "/api/v1/accounts/"+cash+"/audit", nil, &accountTrail)
	if len(accountTrail) != 1 || accountTrail[0].Action != "account.create" {
		t.Fatalf("unexpected account trail %+v", accountTrail)
	}

	var page []dto.AuditLogResponse
	c.do(http.MethodGet, "/api/v1/audit-logs?resourceType=journal_entry&limit=2", nil, &page)
	if len(page) != 2 {
		t.Fatalf("expected a page of 2 journal records, got %d", len(page))
	}

	if rec := c.do(http.MethodGet, "/api/v1/journal-entries/missing/audit", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown entry, got %d", rec.Code)
	}

	other := &client{t: t, handler: c.handler, tenant: "globex"}
	if rec := other.do(http.MethodGet, "/api/v1/journal-entries/"+entry.ID+"/audit", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected another tenant to get 404, got %d", rec.Code)
	}
}

func TestNewRouter_AuthAndRoles(t *testing.T) {
	manager := auth.NewJWTManager("secret", time.Hour)
	router := NewRouter(newRouterConfig(t, func(cfg *RouterConfig) {
		cfg.JWTManager = manager
	}))

	token := func(role domain.Role, tenant string) string {
		tok, err := manager.Generate(&domain.Principal{ID: "user-" + string(role), TenantID: tenant, Role: role})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		return tok
	}

	anonymous := &client{t: t, handler: router, tenant: "acme"}
	if rec := anonymous.do(http.MethodGet, "/api/v1/accounts", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}

	admin := &client{t: t, handler: router, token: token(domain.RoleAdmin, "acme")}
	cash := admin.createAccount("1000", "Cash", "ASSET", "")

	viewer := &client{t: t, handler: router, token: token(domain.RoleViewer, "acme")}
	if rec := viewer.do(http.MethodGet, "/api/v1/accounts/"+cash, nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("viewer should read accounts, got %d", rec.Code)
	}
	rec := viewer.do(http.MethodPost, "/api/v1/journal-entries", dto.EntryRequest{
		Date: "2024-03-01", Lines: []dto.LineRequest{{AccountID: cash, Debit: "1"}},
	}, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("viewer must not draft entries, got %d", rec.Code)
	}

	accountant := &client{t: t, handler: router, token: token(domain.RoleAccountant, "acme")}
	if rec := accountant.do(http.MethodPost, "/api/v1/accounts/"+cash+"/deactivate", nil, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("accountant must not change the chart, got %d", rec.Code)
	}

	// The token's tenant wins; naming another tenant in the header is refused.
	spoof := &client{t: t, handler: router, tenant: "globex", token: token(domain.RoleAdmin, "acme")}
	if rec := spoof.do(http.MethodGet, "/api/v1/accounts", nil, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a tenant mismatch, got %d", rec.Code)
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	rl := apimiddleware.NewRateLimiter(0.0001, 1, nil)
	c := &client{t: t, tenant: "acme", handler: NewRouter(newRouterConfig(t, func(cfg *RouterConfig) {
		cfg.RateLimiter = rl
	}))}

	if rec := c.do(http.MethodGet, "/api/v1/accounts", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec.Code)
	}
	if rec := c.do(http.MethodGet, "/api/v1/accounts", nil, nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec.Code)
	}
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	c := &client{t: t, handler: NewRouter(newRouterConfig(t)), tenant: "acme"}
	c.createAccount("1000", "Cash", "ASSET", "")

	rec := c.do(http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"gledger_accounts_created_total 1", "gledger_http_requests_total"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s in metrics output", name)
		}
	}
}

func TestNewRouter_CORS(t *testing.T) {
	router := NewRouter(newRouterConfig(t, func(cfg *RouterConfig) {
		cfg.CORSAllowedOrigins = []string{"https://books.example.com"}
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/accounts", nil)
	req.Header.Set("Origin", "https://books.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://books.example.com" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}
