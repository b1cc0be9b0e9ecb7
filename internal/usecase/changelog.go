package usecase

import (
	"context"
	"time"

	"github.com/iho/gledger/internal/domain"
)

// change describes one ledger mutation for the outbox and the audit trail.
type change struct {
	tenantID      string
	aggregateType string
	aggregateID   string
	eventType     string
	payload       map[string]any
	action        domain.AuditAction
	before        any
	after         any
}

// changeLog writes the outbox event and audit row of a mutation inside its transaction.
type changeLog struct {
	outboxRepo OutboxRepository
	auditRepo  AuditRepository
	idGen      IDGenerator
}

func (c changeLog) record(ctx context.Context, tx Transaction, ch change) error {
	now := time.Now().UTC()

	if c.outboxRepo != nil {
		event := &domain.OutboxEvent{
			ID:            c.idGen.Generate(),
			TenantID:      ch.tenantID,
			AggregateID:   ch.aggregateID,
			AggregateType: ch.aggregateType,
			EventType:     ch.eventType,
			Payload:       ch.payload,
			CreatedAt:     now,
			Published:     false,
		}
		if err := c.outboxRepo.Create(ctx, tx, event); err != nil {
			return persistErr("write outbox event", err)
		}
	}

	if c.auditRepo != nil {
		meta := domain.RequestMetaFromContext(ctx)
		auditLog := &domain.AuditLog{
			ID:           c.idGen.Generate(),
			TenantID:     ch.tenantID,
			UserID:       domain.ActorFromContext(ctx),
			Action:       string(ch.action),
			ResourceType: ch.aggregateType,
			ResourceID:   ch.aggregateID,
			IPAddress:    meta.IPAddress,
			UserAgent:    meta.UserAgent,
			RequestID:    meta.RequestID,
			BeforeState:  domain.MarshalState(ch.before),
			AfterState:   domain.MarshalState(ch.after),
			Status:       string(domain.AuditStatusSuccess),
			CreatedAt:    now,
		}
		if err := c.auditRepo.CreateTx(ctx, tx, auditLog); err != nil {
			return persistErr("write audit log", err)
		}
	}

	return nil
}
