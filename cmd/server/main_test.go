package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/gledger/internal/adapter/http/dto"
	"github.com/iho/gledger/internal/adapter/repository/memory"
	redisRepo "github.com/iho/gledger/internal/adapter/repository/redis"
	"github.com/iho/gledger/internal/infrastructure/config"
	"github.com/iho/gledger/internal/infrastructure/eventpublisher"
)

func testConfig() *config.Config {
	return &config.Config{
		StorageDriver:               config.StorageMemory,
		CacheTTL:                    time.Minute,
		CacheSize:                   64,
		HTTPPort:                    "0",
		HTTPReadTimeout:             time.Second,
		HTTPWriteTimeout:            2 * time.Second,
		HTTPIdleTimeout:             3 * time.Second,
		HTTPShutdownTimeout:         time.Second,
		IdempotencyTTL:              time.Minute,
		TenantHeader:                "X-Tenant-ID",
		OutboxInterval:              time.Hour,
		OutboxBatchSize:             10,
		TrialBalanceIncludeInactive: true,
	}
}

func TestOpenStorageMemory(t *testing.T) {
	st, err := openStorage(context.Background(), testConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer st.close()

	assert.IsType(t, &memory.TxManager{}, st.txManager)
	assert.Nil(t, st.retrier)
	assert.Empty(t, st.checks)
	assert.NotEmpty(t, st.namespace)
}

func TestOpenStorageUnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.StorageDriver = "sqlite"

	_, err := openStorage(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}

func TestOpenSidecarWithoutRedis(t *testing.T) {
	sc, err := openSidecar(context.Background(), testConfig(), "", zerolog.Nop())
	require.NoError(t, err)
	defer sc.close()

	assert.IsType(t, &memory.Cache{}, sc.cache)
	assert.IsType(t, &memory.IdempotencyStore{}, sc.idempotency)
	assert.IsType(t, &eventpublisher.LogPublisher{}, sc.publisher)
	assert.Empty(t, sc.checks)
}

func TestOpenSidecarWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	sc, err := openSidecar(context.Background(), cfg, "", zerolog.Nop())
	require.NoError(t, err)
	defer sc.close()

	assert.IsType(t, &redisRepo.Cache{}, sc.cache)
	assert.IsType(t, &redisRepo.IdempotencyStore{}, sc.idempotency)
	assert.IsType(t, &eventpublisher.RedisPublisher{}, sc.publisher)
	require.Len(t, sc.checks, 1)
	assert.NoError(t, sc.checks[0].Ping(context.Background()))

	mr.Close()
	assert.Error(t, sc.checks[0].Ping(context.Background()))
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()

	st, err := openStorage(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(st.close)

	sc, err := openSidecar(context.Background(), cfg, st.namespace, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(sc.close)

	return newApp(cfg, zerolog.Nop(), st, sc, prometheus.NewRegistry())
}

func TestNewAppServesLedger(t *testing.T) {
	a := newTestApp(t, testConfig())
	assert.Nil(t, a.rateLimiter)

	send := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "acme")
		rec := httptest.NewRecorder()
		a.handler.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = send(http.MethodPost, "/api/v1/accounts", `{"code":"1000","name":"Cash","type":"ASSET","currency":"USD","openingBalance":"250.00"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = send(http.MethodGet, "/api/v1/accounts/"+created.ID+"/balance", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"250`)

	rec = send(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gledger_accounts_created_total")
}

type testClient struct {
	t       *testing.T
	handler http.Handler
}

func (c testClient) send(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "acme")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func (c testClient) createAccount(code, typ string, headers ...string) string {
	c.t.Helper()
	rec := c.send(http.MethodPost, "/api/v1/accounts",
		`{"code":"`+code+`","name":"Account `+code+`","type":"`+typ+`","currency":"USD"}`, headers...)
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())

	var out dto.AccountResponse
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.ID
}

func (c testClient) trialBalance() dto.TrialBalanceResponse {
	c.t.Helper()
	rec := c.send(http.MethodGet, "/api/v1/reports/trial-balance", "")
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())

	var tb dto.TrialBalanceResponse
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &tb))
	return tb
}

// A restarted in-memory process reaches the same ledger versions as its predecessor, so
// it must not read the predecessor's projections or idempotent replies from Redis.
func TestMemoryRestartWithSharedRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	first := testClient{t: t, handler: newTestApp(t, cfg).handler}
	cash := first.createAccount("1000", "ASSET", "Idempotency-Key", "setup-1")
	sales := first.createAccount("4000", "INCOME")

	rec := first.send(http.MethodPost, "/api/v1/journal-entries",
		`{"date":"2024-03-01","lines":[{"accountId":"`+cash+`","debit":"999.00"},{"accountId":"`+sales+`","credit":"999.00"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var draft dto.EntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &draft))
	rec = first.send(http.MethodPost, "/api/v1/journal-entries/"+draft.ID+"/post", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	tb := first.trialBalance()
	require.Len(t, tb.Rows, 2)
	assert.True(t, tb.TotalDebit.Equal(decimal.NewFromInt(999)))

	// Three account creations bring the new store to the same version as the old one.
	second := testClient{t: t, handler: newTestApp(t, cfg).handler}
	replayed := second.createAccount("1000", "ASSET", "Idempotency-Key", "setup-1")
	assert.NotEqual(t, cash, replayed)
	second.createAccount("2000", "LIABILITY")
	second.createAccount("4000", "INCOME")

	tb = second.trialBalance()
	assert.Len(t, tb.Rows, 3)
	assert.True(t, tb.TotalDebit.IsZero(), "total debit %s", tb.TotalDebit)
	assert.True(t, tb.Balanced)
}

func TestNewAppWithAuthAndRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.AuthEnabled = true
	cfg.JWTSecret = "secret"
	cfg.JWTExpiration = time.Hour
	cfg.RateLimitRPS = 5
	cfg.RateLimitBurst = 5

	a := newTestApp(t, cfg)
	require.NotNil(t, a.rateLimiter)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", bytes.NewReader(nil))
	req.Header.Set("X-Tenant-ID", "acme")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewServerTimeouts(t *testing.T) {
	cfg := testConfig()
	cfg.HTTPPort = "9090"

	srv := newServer(cfg, http.NotFoundHandler())
	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, time.Second, srv.ReadTimeout)
	assert.Equal(t, 2*time.Second, srv.WriteTimeout)
	assert.Equal(t, 3*time.Second, srv.IdleTimeout)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, zerolog.Nop()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
