package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/iho/gledger/internal/adapter/http/dto"
	"github.com/iho/gledger/internal/domain"
)

// ReportService defines the behavior needed by ReportHandler.
type ReportService interface {
	TrialBalance(ctx context.Context, tenantID string, asOf *time.Time) (*domain.TrialBalance, error)
	IsBalanced(ctx context.Context, tenantID string, asOf *time.Time) (*domain.BalanceCheck, error)
	AccountTypeSummary(ctx context.Context, tenantID string, asOf *time.Time) ([]domain.AccountTypeSummary, error)
	ProfitAndLoss(ctx context.Context, tenantID string, from, to *time.Time) (*domain.ProfitAndLoss, error)
	BalanceSheet(ctx context.Context, tenantID string, asOf *time.Time) (*domain.BalanceSheet, error)
}

// ReportHandler handles financial report requests.
type ReportHandler struct {
	reportUC ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportUC ReportService) *ReportHandler {
	return &ReportHandler{reportUC: reportUC}
}

// TrialBalance returns leaf balances with totals as of a date.
func (h *ReportHandler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDateQuery(r, "asOf")
	if err != nil {
		writeDomainError(w, r, "invalid query", err)
		return
	}

	tb, err := h.reportUC.TrialBalance(r.Context(), tenantOf(r), asOf)
	if err != nil {
		writeDomainError(w, r, "failed to build trial balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TrialBalanceFromDomain(tb))
}

// BalanceCheck answers 200 when debits equal credits and 409 otherwise.
func (h *ReportHandler) BalanceCheck(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDateQuery(r, "asOf")
	if err != nil {
		writeDomainError(w, r, "invalid query", err)
		return
	}

	check, err := h.reportUC.IsBalanced(r.Context(), tenantOf(r), asOf)
	if err != nil {
		writeDomainError(w, r, "failed to check balance", err)
		return
	}

	status := http.StatusOK
	if !check.Balanced {
		status = http.StatusConflict
	}
	writeJSON(w, status, dto.BalanceCheckFromDomain(check))
}

// AccountTypes totals the trial balance per account type.
func (h *ReportHandler) AccountTypes(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDateQuery(r, "asOf")
	if err != nil {
		writeDomainError(w, r, "invalid query", err)
		return
	}

	summaries, err := h.reportUC.AccountTypeSummary(r.Context(), tenantOf(r), asOf)
	if err != nil {
		writeDomainError(w, r, "failed to summarize account types", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountTypeSummariesFromDomain(summaries))
}

// ProfitAndLoss returns income and expense movements over a period.
func (h *ReportHandler) ProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeDomainError(w, r, "invalid query", err)
		return
	}

	pl, err := h.reportUC.ProfitAndLoss(r.Context(), tenantOf(r), from, to)
	if err != nil {
		writeDomainError(w, r, "failed to build profit and loss", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ProfitAndLossFromDomain(pl))
}

// BalanceSheet returns asset, liability and equity balances as of a date.
func (h *ReportHandler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDateQuery(r, "asOf")
	if err != nil {
		writeDomainError(w, r, "invalid query", err)
		return
	}

	bs, err := h.reportUC.BalanceSheet(r.Context(), tenantOf(r), asOf)
	if err != nil {
		writeDomainError(w, r, "failed to build balance sheet", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceSheetFromDomain(bs))
}
