package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/gledger/internal/adapter/http/dto"
	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/usecase"
)

// LedgerService defines the behavior needed by LedgerHandler.
type LedgerService interface {
	GetLedger(ctx context.Context, q usecase.LedgerQuery) (*domain.Ledger, error)
	CheckConsistency(ctx context.Context, tenantID string) (bool, error)
}

// LedgerHandler handles account ledger requests.
type LedgerHandler struct {
	ledgerUC LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC}
}

// Get returns the chronological ledger of an account.
func (h *LedgerHandler) Get(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeDomainError(w, r, "invalid query", err)
		return
	}

	ledger, err := h.ledgerUC.GetLedger(r.Context(), usecase.LedgerQuery{
		TenantID:  tenantOf(r),
		AccountID: chi.URLParam(r, "accountId"),
		From:      from,
		To:        to,
	})
	if err != nil {
		writeDomainError(w, r, "failed to get ledger", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LedgerFromDomain(ledger))
}

// Consistency reports whether all stored postings balance. 409 when they do not.
func (h *LedgerHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	ok, err := h.ledgerUC.CheckConsistency(r.Context(), tenantOf(r))
	if err != nil {
		writeDomainError(w, r, "failed to check ledger", err)
		return
	}

	status := http.StatusOK
	if !ok {
		status = http.StatusConflict
	}
	writeJSON(w, status, dto.ConsistencyResponse{Consistent: ok})
}
