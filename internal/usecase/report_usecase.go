package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/infrastructure/metrics"
)

// ReportUseCase aggregates ledger balances into trial balances and financial statements.
type ReportUseCase struct {
	ledger          *LedgerUseCase
	locks           *LedgerLocks
	metrics         *metrics.Metrics
	includeInactive bool
}

// NewReportUseCase creates a new ReportUseCase. includeInactive controls whether inactive
// leaf accounts appear on trial balances.
func NewReportUseCase(ledger *LedgerUseCase, locks *LedgerLocks, metrics *metrics.Metrics, includeInactive bool) *ReportUseCase {
	if locks == nil {
		locks = ledger.locks
	}
	return &ReportUseCase{
		ledger:          ledger,
		locks:           locks,
		metrics:         metrics,
		includeInactive: includeInactive,
	}
}

// TrialBalance lists every leaf account with its balance in the natural column.
func (uc *ReportUseCase) TrialBalance(ctx context.Context, tenantID string, asOf *time.Time) (*domain.TrialBalance, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	asOf = normalizeDatePtr(asOf)

	unlock := uc.locks.RLock(tenantID)
	defer unlock()

	return uc.trialBalance(ctx, tenantID, asOf)
}

// IsBalanced reports whether total debits equal total credits as of a date.
func (uc *ReportUseCase) IsBalanced(ctx context.Context, tenantID string, asOf *time.Time) (*domain.BalanceCheck, error) {
	tb, err := uc.TrialBalance(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}
	return &domain.BalanceCheck{
		AsOf:        tb.AsOf,
		Balanced:    tb.Balanced,
		TotalDebit:  tb.TotalDebit,
		TotalCredit: tb.TotalCredit,
		Delta:       tb.Delta,
	}, nil
}

// AccountTypeSummary totals the trial balance per account type.
func (uc *ReportUseCase) AccountTypeSummary(ctx context.Context, tenantID string, asOf *time.Time) ([]domain.AccountTypeSummary, error) {
	tb, err := uc.TrialBalance(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}
	return domain.SummarizeByType(tb.Rows), nil
}

// ProfitAndLoss reports income and expense movements between from and to, inclusive.
// A nil from covers everything up to to.
func (uc *ReportUseCase) ProfitAndLoss(ctx context.Context, tenantID string, from, to *time.Time) (*domain.ProfitAndLoss, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	from, to = normalizeDatePtr(from), normalizeDatePtr(to)
	if from != nil && to != nil && from.After(*to) {
		return nil, domain.NewValidationError("from", "from must not be after to")
	}

	unlock := uc.locks.RLock(tenantID)
	defer unlock()

	closing, err := uc.ledger.snapshot(ctx, tenantID, to)
	if err != nil {
		return nil, err
	}

	var opening map[string]decimal.Decimal
	if from != nil {
		dayBefore := from.AddDate(0, 0, -1)
		snap, err := uc.ledger.snapshot(ctx, tenantID, &dayBefore)
		if err != nil {
			return nil, err
		}
		opening = snap.Balances
	}

	report := &domain.ProfitAndLoss{
		From:          from,
		To:            to,
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
	}
	for _, a := range closing.Accounts {
		if a.IsHeader || (a.Type != domain.AccountTypeIncome && a.Type != domain.AccountTypeExpense) {
			continue
		}
		amount := closing.Balances[a.ID]
		if opening != nil {
			amount = amount.Sub(opening[a.ID])
		}
		line := reportLine(a, amount)
		if a.Type == domain.AccountTypeIncome {
			report.Income = append(report.Income, line)
			report.TotalIncome = report.TotalIncome.Add(amount)
		} else {
			report.Expenses = append(report.Expenses, line)
			report.TotalExpenses = report.TotalExpenses.Add(amount)
		}
	}
	report.NetIncome = report.TotalIncome.Sub(report.TotalExpenses)

	return report, nil
}

// BalanceSheet reports assets, liabilities and equity as of a date. Income and expense
// balances not yet closed to equity show as current earnings.
func (uc *ReportUseCase) BalanceSheet(ctx context.Context, tenantID string, asOf *time.Time) (*domain.BalanceSheet, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	asOf = normalizeDatePtr(asOf)

	unlock := uc.locks.RLock(tenantID)
	defer unlock()

	snap, err := uc.ledger.snapshot(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}

	sheet := &domain.BalanceSheet{
		AsOf:             asOf,
		TotalAssets:      decimal.Zero,
		TotalLiabilities: decimal.Zero,
		TotalEquity:      decimal.Zero,
		CurrentEarnings:  decimal.Zero,
	}
	for _, a := range snap.Accounts {
		if a.IsHeader {
			continue
		}
		balance := snap.Balances[a.ID]
		switch a.Type {
		case domain.AccountTypeAsset:
			sheet.Assets = append(sheet.Assets, reportLine(a, balance))
			sheet.TotalAssets = sheet.TotalAssets.Add(balance)
		case domain.AccountTypeLiability:
			sheet.Liabilities = append(sheet.Liabilities, reportLine(a, balance))
			sheet.TotalLiabilities = sheet.TotalLiabilities.Add(balance)
		case domain.AccountTypeEquity:
			sheet.Equity = append(sheet.Equity, reportLine(a, balance))
			sheet.TotalEquity = sheet.TotalEquity.Add(balance)
		case domain.AccountTypeIncome:
			sheet.CurrentEarnings = sheet.CurrentEarnings.Add(balance)
		case domain.AccountTypeExpense:
			sheet.CurrentEarnings = sheet.CurrentEarnings.Sub(balance)
		}
	}
	sheet.Balanced = sheet.TotalAssets.Equal(sheet.TotalLiabilities.Add(sheet.TotalEquity).Add(sheet.CurrentEarnings))

	return sheet, nil
}

// trialBalance expects the caller to hold the tenant read lock.
func (uc *ReportUseCase) trialBalance(ctx context.Context, tenantID string, asOf *time.Time) (*domain.TrialBalance, error) {
	snap, err := uc.ledger.snapshot(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.TrialBalanceRow, 0, len(snap.Accounts))
	for _, a := range snap.Accounts {
		if a.IsHeader {
			continue
		}
		if !uc.includeInactive && !a.IsActive() {
			continue
		}
		rows = append(rows, domain.NewTrialBalanceRow(a, snap.Balances[a.ID]))
	}

	tb := domain.NewTrialBalance(asOf, rows)
	if !tb.Balanced && uc.metrics != nil {
		uc.metrics.ImbalancedReports.Inc()
	}
	return tb, nil
}

func reportLine(a *domain.Account, amount decimal.Decimal) domain.ReportLine {
	return domain.ReportLine{
		AccountID:   a.ID,
		AccountCode: a.Code,
		AccountName: a.Name,
		Amount:      amount,
	}
}
