package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/gledger/internal/adapter/http/dto"
	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/usecase"
)

// AccountService defines the behavior needed by AccountHandler.
type AccountService interface {
	CreateAccount(ctx context.Context, input usecase.CreateAccountInput) (*domain.Account, error)
	GetAccount(ctx context.Context, tenantID, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context, input usecase.ListAccountsInput) ([]*domain.Account, error)
	UpdateAccount(ctx context.Context, input usecase.UpdateAccountInput) (*domain.Account, error)
	Deactivate(ctx context.Context, tenantID, id string) (*domain.Account, error)
}

// BalanceService answers point-in-time balance queries.
type BalanceService interface {
	GetBalance(ctx context.Context, tenantID, accountID string, asOf *time.Time) (decimal.Decimal, error)
}

// AccountHandler handles chart of accounts requests.
type AccountHandler struct {
	accountUC AccountService
	balances  BalanceService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountUC AccountService, balances BalanceService) *AccountHandler {
	return &AccountHandler{accountUC: accountUC, balances: balances}
}

// Create adds an account to the chart.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	input, err := req.ToUseCaseInput(tenantOf(r))
	if err != nil {
		writeDomainError(w, r, "invalid account", err)
		return
	}

	account, err := h.accountUC.CreateAccount(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, "failed to create account", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AccountFromDomain(account))
}

// Get retrieves an account by ID.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountUC.GetAccount(r.Context(), tenantOf(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to get account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// List lists accounts filtered by type, status and parent.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	accounts, err := h.accountUC.ListAccounts(r.Context(), usecase.ListAccountsInput{
		TenantID: tenantOf(r),
		Type:     domain.AccountType(q.Get("type")),
		Status:   domain.AccountStatus(q.Get("status")),
		ParentID: q.Get("parentId"),
	})
	if err != nil {
		writeDomainError(w, r, "failed to list accounts", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountsFromDomain(accounts))
}

// Update applies a partial update to an account.
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	input, err := req.ToUseCaseInput(tenantOf(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "invalid account", err)
		return
	}

	account, err := h.accountUC.UpdateAccount(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, "failed to update account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// Deactivate stops new postings to an account. History is kept.
func (h *AccountHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountUC.Deactivate(r.Context(), tenantOf(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to deactivate account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// Balance returns the account balance, optionally as of a date.
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDateQuery(r, "asOf")
	if err != nil {
		writeDomainError(w, r, "invalid query", err)
		return
	}

	id := chi.URLParam(r, "id")
	balance, err := h.balances.GetBalance(r.Context(), tenantOf(r), id, asOf)
	if err != nil {
		writeDomainError(w, r, "failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewBalanceResponse(id, asOf, balance))
}
