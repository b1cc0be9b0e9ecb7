package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/gledger/internal/adapter/http/dto"
	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/usecase"
)

// AuditService defines the behavior needed by AuditHandler.
type AuditService interface {
	EntryHistory(ctx context.Context, tenantID, id string) ([]*domain.AuditLog, error)
	AccountHistory(ctx context.Context, tenantID, id string) ([]*domain.AuditLog, error)
	ListAuditLogs(ctx context.Context, input usecase.ListAuditLogsInput) ([]*domain.AuditLog, error)
}

// AuditHandler serves the audit trail.
type AuditHandler struct {
	auditUC AuditService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(auditUC AuditService) *AuditHandler {
	return &AuditHandler{auditUC: auditUC}
}

// Entry returns the audit trail of a journal entry.
func (h *AuditHandler) Entry(w http.ResponseWriter, r *http.Request) {
	logs, err := h.auditUC.EntryHistory(r.Context(), tenantOf(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to get entry audit trail", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AuditLogsFromDomain(logs))
}

// Account returns the audit trail of an account.
func (h *AuditHandler) Account(w http.ResponseWriter, r *http.Request) {
	logs, err := h.auditUC.AccountHistory(r.Context(), tenantOf(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to get account audit trail", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AuditLogsFromDomain(logs))
}

// List returns the tenant's audit trail, newest first. to is inclusive of the whole day.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeDomainError(w, r, "invalid query", err)
		return
	}
	if to != nil {
		end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		to = &end
	}

	q := r.URL.Query()
	logs, err := h.auditUC.ListAuditLogs(r.Context(), usecase.ListAuditLogsInput{
		TenantID:     tenantOf(r),
		UserID:       q.Get("userId"),
		Action:       q.Get("action"),
		ResourceType: q.Get("resourceType"),
		From:         from,
		To:           to,
		Limit:        parseIntQuery(r, "limit", 50),
		Offset:       parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, r, "failed to list audit logs", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AuditLogsFromDomain(logs))
}
