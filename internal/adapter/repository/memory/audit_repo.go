package memory

import (
	"context"

	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/usecase"
)

// AuditRepository implements usecase.AuditRepository.
type AuditRepository struct {
	store *Store
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(store *Store) *AuditRepository {
	return &AuditRepository{store: store}
}

// CreateTx stores an audit log on commit.
func (r *AuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return err
	}
	stored := *log
	return t.add(func(s *Store) {
		s.audit = append(s.audit, &stored)
	})
}

// List returns audit logs matching the filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	limit, offset, _ := domain.ValidatePagination(filter.Limit, filter.Offset)

	var out []*domain.AuditLog
	for i := len(r.store.audit) - 1; i >= 0; i-- {
		l := r.store.audit[i]
		if !auditMatches(l, filter) {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		c := *l
		out = append(out, &c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetByResourceID returns the audit trail of one resource.
func (r *AuditRepository) GetByResourceID(ctx context.Context, tenantID, resourceType, resourceID string) ([]*domain.AuditLog, error) {
	return r.List(ctx, domain.AuditFilter{
		TenantID:     tenantID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Limit:        1000,
	})
}

func auditMatches(l *domain.AuditLog, f domain.AuditFilter) bool {
	switch {
	case f.TenantID != "" && l.TenantID != f.TenantID:
		return false
	case f.UserID != "" && l.UserID != f.UserID:
		return false
	case f.Action != "" && l.Action != f.Action:
		return false
	case f.ResourceType != "" && l.ResourceType != f.ResourceType:
		return false
	case f.ResourceID != "" && l.ResourceID != f.ResourceID:
		return false
	case f.StartDate != nil && l.CreatedAt.Before(*f.StartDate):
		return false
	case f.EndDate != nil && l.CreatedAt.After(*f.EndDate):
		return false
	}
	return true
}
