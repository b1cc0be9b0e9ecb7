package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/gledger/internal/adapter/http/handler"
	"github.com/iho/gledger/internal/adapter/http/middleware"
	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/infrastructure/auth"
	"github.com/iho/gledger/internal/infrastructure/metrics"
	"github.com/iho/gledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler *handler.AccountHandler
	JournalHandler *handler.JournalHandler
	LedgerHandler  *handler.LedgerHandler
	ReportHandler  *handler.ReportHandler
	HealthHandler  *handler.HealthHandler
	// AuditHandler is optional; nil leaves the audit routes unmounted.
	AuditHandler *handler.AuditHandler

	Logger         *zerolog.Logger
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler

	// JWTManager enables bearer auth and role checks. Nil disables auth.
	JWTManager   *auth.JWTManager
	TenantHeader string

	RateLimiter        *middleware.RateLimiter
	IdempotencyStore   usecase.IdempotencyStore
	IdempotencyTTL     time.Duration
	CORSAllowedOrigins []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	if cfg.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(*cfg.Logger).Wrap)
	}
	r.Use(middleware.Recovery)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.IdempotencyKeyHeader, tenantHeader(cfg)},
			ExposedHeaders: []string{middleware.IdempotencyReplayHeader, "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTManager != nil {
			r.Use(middleware.AuthMiddleware(cfg.JWTManager))
		}
		r.Use(middleware.Tenant(tenantHeader(cfg)))
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Limit)
		}
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap)
		}

		read := requireRole(cfg, domain.RoleViewer)
		post := requireRole(cfg, domain.RoleAccountant)
		manage := requireRole(cfg, domain.RoleAdmin)

		// Chart of accounts
		r.Route("/accounts", func(r chi.Router) {
			r.With(manage).Post("/", cfg.AccountHandler.Create)
			r.With(read).Get("/", cfg.AccountHandler.List)
			r.With(read).Get("/{id}", cfg.AccountHandler.Get)
			r.With(manage).Patch("/{id}", cfg.AccountHandler.Update)
			r.With(manage).Post("/{id}/deactivate", cfg.AccountHandler.Deactivate)
			r.With(read).Get("/{id}/balance", cfg.AccountHandler.Balance)
			if cfg.AuditHandler != nil {
				r.With(post).Get("/{id}/audit", cfg.AuditHandler.Account)
			}
		})

		// Journal
		r.Route("/journal-entries", func(r chi.Router) {
			r.With(post).Post("/", cfg.JournalHandler.Create)
			r.With(read).Get("/", cfg.JournalHandler.List)
			r.With(read).Get("/{id}", cfg.JournalHandler.Get)
			r.With(post).Put("/{id}", cfg.JournalHandler.Update)
			r.With(post).Post("/{id}/post", cfg.JournalHandler.Post)
			r.With(post).Post("/{id}/reverse", cfg.JournalHandler.Reverse)
			if cfg.AuditHandler != nil {
				r.With(post).Get("/{id}/audit", cfg.AuditHandler.Entry)
			}
		})

		if cfg.AuditHandler != nil {
			r.With(manage).Get("/audit-logs", cfg.AuditHandler.List)
		}

		// Ledger
		r.Route("/ledger", func(r chi.Router) {
			r.With(read).Get("/consistency", cfg.LedgerHandler.Consistency)
			r.With(read).Get("/{accountId}", cfg.LedgerHandler.Get)
		})

		// Reports
		r.Route("/reports", func(r chi.Router) {
			r.Use(read)
			r.Get("/trial-balance", cfg.ReportHandler.TrialBalance)
			r.Get("/balance-check", cfg.ReportHandler.BalanceCheck)
			r.Get("/account-types", cfg.ReportHandler.AccountTypes)
			r.Get("/profit-and-loss", cfg.ReportHandler.ProfitAndLoss)
			r.Get("/balance-sheet", cfg.ReportHandler.BalanceSheet)
		})
	})

	return r
}

func tenantHeader(cfg RouterConfig) string {
	if cfg.TenantHeader == "" {
		return middleware.DefaultTenantHeader
	}
	return cfg.TenantHeader
}

// requireRole is a no-op when auth is disabled.
func requireRole(cfg RouterConfig, role domain.Role) func(http.Handler) http.Handler {
	if cfg.JWTManager == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RequireRole(role)
}
