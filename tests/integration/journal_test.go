package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/usecase"
	"github.com/iho/gledger/tests/testutil"
)

func TestPostAndReverseEntry(t *testing.T) {
	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	gl := testDB.NewLedger()
	tenant := testutil.NewTenant()

	cash := gl.CreateTestAccount(t, tenant, "1000", domain.AccountTypeAsset, "1000")
	sales := gl.CreateTestAccount(t, tenant, "4000", domain.AccountTypeIncome, "")

	draft, err := gl.Journal.CreateDraft(ctx, usecase.CreateEntryInput{
		TenantID:    tenant,
		Date:        testutil.Day(4),
		Reference:   "INV-1",
		Description: "Cash sale",
		Lines: []usecase.LineInput{
			testutil.Debit(cash.ID, "300.00"),
			testutil.Credit(sales.ID, "300.00"),
		},
	})
	if err != nil {
		t.Fatalf("failed to create draft: %v", err)
	}
	if draft.Status != domain.EntryStatusDraft {
		t.Errorf("expected DRAFT, got %s", draft.Status)
	}
	if draft.EntryNo != "JE-000001" {
		t.Errorf("expected JE-000001, got %s", draft.EntryNo)
	}

	posted, err := gl.Journal.Post(ctx, tenant, draft.ID)
	if err != nil {
		t.Fatalf("failed to post entry: %v", err)
	}
	if posted.Status != domain.EntryStatusPosted || posted.PostedAt == nil {
		t.Fatalf("expected posted entry with postedAt, got %s", posted.Status)
	}

	balance, err := gl.Ledger.GetBalance(ctx, tenant, cash.ID, nil)
	if err != nil {
		t.Fatalf("failed to get balance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(1300)) {
		t.Errorf("expected cash balance 1300, got %s", balance)
	}

	reversal, err := gl.Journal.Reverse(ctx, usecase.ReverseEntryInput{TenantID: tenant, ID: posted.ID, Reason: "wrong customer"})
	if err != nil {
		t.Fatalf("failed to reverse entry: %v", err)
	}
	if reversal.ReversalOf != posted.ID {
		t.Errorf("expected reversal of %s, got %s", posted.ID, reversal.ReversalOf)
	}
	if !reversal.Date.Equal(posted.Date) {
		t.Errorf("expected reversal dated %s, got %s", posted.Date, reversal.Date)
	}

	original, err := gl.Journal.GetEntry(ctx, tenant, posted.ID)
	if err != nil {
		t.Fatalf("failed to reload original: %v", err)
	}
	if original.Status != domain.EntryStatusReversed || original.ReversedBy != reversal.ID {
		t.Errorf("expected original REVERSED by %s, got %s by %q", reversal.ID, original.Status, original.ReversedBy)
	}

	balance, err = gl.Ledger.GetBalance(ctx, tenant, cash.ID, nil)
	if err != nil {
		t.Fatalf("failed to get balance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected cash balance back at 1000, got %s", balance)
	}

	ledger, err := gl.Ledger.GetLedger(ctx, usecase.LedgerQuery{TenantID: tenant, AccountID: cash.ID})
	if err != nil {
		t.Fatalf("failed to get ledger: %v", err)
	}
	if len(ledger.Entries) != 2 {
		t.Fatalf("expected both entries in the ledger, got %d", len(ledger.Entries))
	}
	if !ledger.Entries[0].RunningBalance.Equal(decimal.NewFromInt(1300)) {
		t.Errorf("expected running balance 1300 after the sale, got %s", ledger.Entries[0].RunningBalance)
	}

	_, err = gl.Journal.Reverse(ctx, usecase.ReverseEntryInput{TenantID: tenant, ID: posted.ID, Reason: "again"})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected invalid state on second reversal, got %v", err)
	}
}

func TestPostRejectsUnbalancedDraft(t *testing.T) {
	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	gl := testDB.NewLedger()
	tenant := testutil.NewTenant()

	cash := gl.CreateTestAccount(t, tenant, "1000", domain.AccountTypeAsset, "")
	sales := gl.CreateTestAccount(t, tenant, "4000", domain.AccountTypeIncome, "")

	draft, err := gl.Journal.CreateDraft(ctx, usecase.CreateEntryInput{
		TenantID: tenant,
		Date:     testutil.Day(0),
		Lines: []usecase.LineInput{
			testutil.Debit(cash.ID, "100.00"),
			testutil.Credit(sales.ID, "99.99"),
		},
	})
	if err != nil {
		t.Fatalf("unbalanced drafts must be storable: %v", err)
	}

	_, err = gl.Journal.Post(ctx, tenant, draft.ID)
	var unbalanced *domain.UnbalancedEntryError
	if !errors.As(err, &unbalanced) {
		t.Fatalf("expected UnbalancedEntryError, got %v", err)
	}
	if !unbalanced.Delta.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("expected delta 0.01, got %s", unbalanced.Delta)
	}

	stored, err := gl.Journal.GetEntry(ctx, tenant, draft.ID)
	if err != nil {
		t.Fatalf("failed to reload draft: %v", err)
	}
	if stored.Status != domain.EntryStatusDraft {
		t.Errorf("a rejected post must leave the draft untouched, got %s", stored.Status)
	}

	fixed, err := gl.Journal.UpdateDraft(ctx, usecase.UpdateDraftInput{
		TenantID: tenant,
		ID:       draft.ID,
		Date:     testutil.Day(0),
		Lines: []usecase.LineInput{
			testutil.Debit(cash.ID, "100.00"),
			testutil.Credit(sales.ID, "100.00"),
		},
	})
	if err != nil {
		t.Fatalf("failed to update draft: %v", err)
	}
	if _, err := gl.Journal.Post(ctx, tenant, fixed.ID); err != nil {
		t.Fatalf("failed to post fixed draft: %v", err)
	}
}

func TestLineValidationAgainstRegistry(t *testing.T) {
	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	gl := testDB.NewLedger()
	tenant := testutil.NewTenant()

	header, err := gl.Accounts.CreateAccount(ctx, usecase.CreateAccountInput{
		TenantID: tenant, Code: "1000", Name: "Current assets", Type: domain.AccountTypeAsset, IsHeader: true, Currency: "USD",
	})
	if err != nil {
		t.Fatalf("failed to create header: %v", err)
	}
	sales := gl.CreateTestAccount(t, tenant, "4000", domain.AccountTypeIncome, "")
	old := gl.CreateTestAccount(t, tenant, "1090", domain.AccountTypeAsset, "")
	if _, err := gl.Accounts.Deactivate(ctx, tenant, old.ID); err != nil {
		t.Fatalf("failed to deactivate: %v", err)
	}

	_, err = gl.Journal.CreateDraft(ctx, usecase.CreateEntryInput{
		TenantID: tenant,
		Date:     testutil.Day(0),
		Lines: []usecase.LineInput{
			testutil.Debit(header.ID, "10"),
			testutil.Debit(old.ID, "10"),
			testutil.Debit(testutil.GenerateID(), "10"),
			testutil.Credit(sales.ID, "30"),
		},
	})

	var lineErrs *domain.EntryValidationError
	if !errors.As(err, &lineErrs) {
		t.Fatalf("expected EntryValidationError, got %v", err)
	}
	if len(lineErrs.Lines) != 3 {
		t.Fatalf("expected 3 offending lines, got %d", len(lineErrs.Lines))
	}
	wants := []error{domain.ErrHeaderPosting, domain.ErrInactiveAccount, domain.ErrUnknownAccount}
	for i, want := range wants {
		if !errors.Is(lineErrs.Lines[i].Err, want) {
			t.Errorf("line %d: expected %v, got %v", lineErrs.Lines[i].Index, want, lineErrs.Lines[i].Err)
		}
	}
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	gl := testDB.NewLedger()
	acme, globex := testutil.NewTenant(), testutil.NewTenant()

	cash := gl.CreateTestAccount(t, acme, "1000", domain.AccountTypeAsset, "50")
	other := gl.CreateTestAccount(t, globex, "1000", domain.AccountTypeAsset, "70")
	if cash.ID == other.ID {
		t.Fatal("expected distinct accounts for the same code in two tenants")
	}

	if _, err := gl.Accounts.GetAccount(ctx, globex, cash.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found across tenants, got %v", err)
	}

	if _, err := gl.Ledger.GetBalance(ctx, globex, cash.ID, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found balance across tenants, got %v", err)
	}

	accounts, err := gl.Accounts.ListAccounts(ctx, usecase.ListAccountsInput{TenantID: acme, Type: domain.AccountTypeAsset})
	if err != nil {
		t.Fatalf("failed to list accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].ID != cash.ID {
		t.Errorf("expected only acme's account, got %d accounts", len(accounts))
	}
}

func TestDuplicateCodeRejected(t *testing.T) {
	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	gl := testDB.NewLedger()
	tenant := testutil.NewTenant()

	gl.CreateTestAccount(t, tenant, "1000", domain.AccountTypeAsset, "")

	_, err := gl.Accounts.CreateAccount(ctx, usecase.CreateAccountInput{
		TenantID: tenant, Code: "1000", Name: "Again", Type: domain.AccountTypeAsset, Currency: "USD",
	})
	if !errors.Is(err, domain.ErrDuplicateCode) {
		t.Errorf("expected duplicate code error, got %v", err)
	}
}
