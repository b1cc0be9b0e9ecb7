package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrialBalanceRow is one leaf account of a trial balance. The balance sits in the
// account's natural column; a contra balance shows there as a negative amount.
type TrialBalanceRow struct {
	AccountID     string
	AccountCode   string
	AccountName   string
	AccountType   AccountType
	Currency      string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	ContraBalance bool
}

// NewTrialBalanceRow places a natural-side balance in the account's column.
func NewTrialBalanceRow(a *Account, balance decimal.Decimal) TrialBalanceRow {
	row := TrialBalanceRow{
		AccountID:     a.ID,
		AccountCode:   a.Code,
		AccountName:   a.Name,
		AccountType:   a.Type,
		Currency:      a.Currency,
		Debit:         decimal.Zero,
		Credit:        decimal.Zero,
		ContraBalance: balance.IsNegative(),
	}
	if a.Type.NormalSide() == SideDebit {
		row.Debit = balance
	} else {
		row.Credit = balance
	}
	return row
}

// TrialBalance lists leaf balances with column totals.
type TrialBalance struct {
	AsOf        *time.Time
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Delta       decimal.Decimal
	Balanced    bool
}

// NewTrialBalance totals the rows. Delta is total debit minus total credit.
func NewTrialBalance(asOf *time.Time, rows []TrialBalanceRow) *TrialBalance {
	tb := &TrialBalance{
		AsOf:        asOf,
		Rows:        rows,
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	for _, r := range rows {
		tb.TotalDebit = tb.TotalDebit.Add(r.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(r.Credit)
	}
	tb.Delta = tb.TotalDebit.Sub(tb.TotalCredit)
	tb.Balanced = tb.Delta.IsZero()
	return tb
}

// BalanceCheck is the short form of a trial balance.
type BalanceCheck struct {
	AsOf        *time.Time
	Balanced    bool
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Delta       decimal.Decimal
}

// AccountTypeSummary totals trial balance rows of one account type.
type AccountTypeSummary struct {
	Type         AccountType
	AccountCount int
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	Balance      decimal.Decimal
}

// SummarizeByType aggregates trial balance rows per account type, in reporting order.
func SummarizeByType(rows []TrialBalanceRow) []AccountTypeSummary {
	idx := make(map[AccountType]int, len(AccountTypes))
	out := make([]AccountTypeSummary, len(AccountTypes))
	for i, t := range AccountTypes {
		idx[t] = i
		out[i] = AccountTypeSummary{Type: t, Debit: decimal.Zero, Credit: decimal.Zero, Balance: decimal.Zero}
	}
	for _, r := range rows {
		s := &out[idx[r.AccountType]]
		s.AccountCount++
		s.Debit = s.Debit.Add(r.Debit)
		s.Credit = s.Credit.Add(r.Credit)
		s.Balance = s.Balance.Add(r.Debit).Add(r.Credit)
	}
	return out
}

// ReportLine is an account amount on a financial statement.
type ReportLine struct {
	AccountID   string
	AccountCode string
	AccountName string
	Amount      decimal.Decimal
}

// ProfitAndLoss reports income and expense movements over a period.
type ProfitAndLoss struct {
	From          *time.Time
	To            *time.Time
	Income        []ReportLine
	Expenses      []ReportLine
	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal
	NetIncome     decimal.Decimal
}

// BalanceSheet reports asset, liability and equity balances as of a date.
// CurrentEarnings is income minus expenses not yet closed to equity.
type BalanceSheet struct {
	AsOf             *time.Time
	Assets           []ReportLine
	Liabilities      []ReportLine
	Equity           []ReportLine
	TotalAssets      decimal.Decimal
	TotalLiabilities decimal.Decimal
	TotalEquity      decimal.Decimal
	CurrentEarnings  decimal.Decimal
	Balanced         bool
}
