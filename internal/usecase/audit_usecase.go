package usecase

import (
	"context"
	"time"

	"github.com/iho/gledger/internal/domain"
)

// AuditUseCase reads the audit trail recorded with every account and journal mutation.
type AuditUseCase struct {
	auditRepo   AuditRepository
	accountRepo AccountRepository
	journalRepo JournalRepository
}

// NewAuditUseCase creates a new AuditUseCase.
func NewAuditUseCase(auditRepo AuditRepository, accountRepo AccountRepository, journalRepo JournalRepository) *AuditUseCase {
	return &AuditUseCase{
		auditRepo:   auditRepo,
		accountRepo: accountRepo,
		journalRepo: journalRepo,
	}
}

// EntryHistory returns the audit trail of a journal entry, newest first.
func (uc *AuditUseCase) EntryHistory(ctx context.Context, tenantID, id string) ([]*domain.AuditLog, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if _, err := uc.journalRepo.GetByID(ctx, tenantID, id); err != nil {
		return nil, persistErr("get journal entry", err)
	}
	return uc.history(ctx, tenantID, domain.AggregateTypeJournal, id)
}

// AccountHistory returns the audit trail of an account, newest first.
func (uc *AuditUseCase) AccountHistory(ctx context.Context, tenantID, id string) ([]*domain.AuditLog, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if _, err := uc.accountRepo.GetByID(ctx, tenantID, id); err != nil {
		return nil, persistErr("get account", err)
	}
	return uc.history(ctx, tenantID, domain.AggregateTypeAccount, id)
}

func (uc *AuditUseCase) history(ctx context.Context, tenantID, resourceType, id string) ([]*domain.AuditLog, error) {
	logs, err := uc.auditRepo.GetByResourceID(ctx, tenantID, resourceType, id)
	if err != nil {
		return nil, persistErr("get audit trail", err)
	}
	if logs == nil {
		logs = []*domain.AuditLog{}
	}
	return logs, nil
}

// ListAuditLogsInput filters the tenant's audit trail.
type ListAuditLogsInput struct {
	TenantID     string
	UserID       string
	Action       string
	ResourceType string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// ListAuditLogs returns the tenant's audit trail, newest first.
func (uc *AuditUseCase) ListAuditLogs(ctx context.Context, input ListAuditLogsInput) ([]*domain.AuditLog, error) {
	if err := requireTenant(input.TenantID); err != nil {
		return nil, err
	}
	if input.From != nil && input.To != nil && input.From.After(*input.To) {
		return nil, domain.NewValidationError("from", "from must not be after to")
	}
	limit, offset, err := domain.ValidatePagination(input.Limit, input.Offset)
	if err != nil {
		return nil, err
	}

	logs, err := uc.auditRepo.List(ctx, domain.AuditFilter{
		TenantID:     input.TenantID,
		UserID:       input.UserID,
		Action:       input.Action,
		ResourceType: input.ResourceType,
		StartDate:    input.From,
		EndDate:      input.To,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return nil, persistErr("list audit logs", err)
	}
	if logs == nil {
		logs = []*domain.AuditLog{}
	}
	return logs, nil
}
