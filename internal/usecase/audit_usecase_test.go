package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/gledger/internal/adapter/repository/memory"
	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/usecase"
)

func newAuditUseCase(f *fixture) *usecase.AuditUseCase {
	return usecase.NewAuditUseCase(f.audit, memory.NewAccountRepository(f.store), memory.NewJournalRepository(f.store))
}

func TestAuditUseCase_History(t *testing.T) {
	f := newFixture(t)
	audit := newAuditUseCase(f)
	ctx := context.Background()

	cash := f.account(t, "acme", "1000", domain.AccountTypeAsset)
	sales := f.account(t, "acme", "4000", domain.AccountTypeIncome)
	posted := f.post(t, "acme", day(0), debit(cash.ID, "10"), credit(sales.ID, "10"))

	trail, err := audit.EntryHistory(ctx, "acme", posted.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, string(domain.AuditActionJournalPost), trail[0].Action)
	assert.Equal(t, string(domain.AuditActionJournalCreate), trail[1].Action)

	accountTrail, err := audit.AccountHistory(ctx, "acme", cash.ID)
	require.NoError(t, err)
	require.Len(t, accountTrail, 1)
	assert.Equal(t, string(domain.AuditActionAccountCreate), accountTrail[0].Action)

	_, err = audit.EntryHistory(ctx, "globex", posted.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = audit.AccountHistory(ctx, "acme", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = audit.EntryHistory(ctx, "", posted.ID)
	assert.ErrorIs(t, err, domain.ErrTenantMissing)
}

func TestAuditUseCase_ListAuditLogs(t *testing.T) {
	f := newFixture(t)
	audit := newAuditUseCase(f)
	ctx := context.Background()

	cash := f.account(t, "acme", "1000", domain.AccountTypeAsset)
	sales := f.account(t, "acme", "4000", domain.AccountTypeIncome)
	f.account(t, "globex", "1000", domain.AccountTypeAsset)
	f.post(t, "acme", day(0), debit(cash.ID, "10"), credit(sales.ID, "10"))

	all, err := audit.ListAuditLogs(ctx, usecase.ListAuditLogsInput{TenantID: "acme"})
	require.NoError(t, err)
	assert.Len(t, all, 4)
	for _, l := range all {
		assert.Equal(t, "acme", l.TenantID)
	}

	creates, err := audit.ListAuditLogs(ctx, usecase.ListAuditLogsInput{TenantID: "acme", Action: string(domain.AuditActionAccountCreate)})
	require.NoError(t, err)
	assert.Len(t, creates, 2)

	page, err := audit.ListAuditLogs(ctx, usecase.ListAuditLogsInput{TenantID: "acme", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].ID, page[0].ID)

	from, to := day(2), day(1)
	_, err = audit.ListAuditLogs(ctx, usecase.ListAuditLogsInput{TenantID: "acme", From: &from, To: &to})
	assert.ErrorIs(t, err, domain.ErrValidation)

	none, err := audit.ListAuditLogs(ctx, usecase.ListAuditLogsInput{TenantID: "initech"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
