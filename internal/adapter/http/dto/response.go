package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gledger/internal/domain"
)

func formatDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	NormalSide     string          `json:"normalSide"`
	ParentID       string          `json:"parentId,omitempty"`
	IsHeader       bool            `json:"isHeader"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	Status         string          `json:"status"`
	Currency       string          `json:"currency"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:             a.ID,
		Code:           a.Code,
		Name:           a.Name,
		Type:           string(a.Type),
		NormalSide:     string(a.Type.NormalSide()),
		ParentID:       a.ParentID,
		IsHeader:       a.IsHeader,
		OpeningBalance: a.OpeningBalance,
		Status:         string(a.Status),
		Currency:       a.Currency,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// BalanceResponse is the balance of one account.
type BalanceResponse struct {
	AccountID string          `json:"accountId"`
	AsOf      string          `json:"asOf,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
}

// NewBalanceResponse builds a balance response.
func NewBalanceResponse(accountID string, asOf *time.Time, balance decimal.Decimal) *BalanceResponse {
	return &BalanceResponse{AccountID: accountID, AsOf: formatDatePtr(asOf), Balance: balance}
}

// LineResponse represents a journal line in API responses.
type LineResponse struct {
	ID          string          `json:"id"`
	LineNo      int             `json:"lineNo"`
	AccountID   string          `json:"accountId"`
	Description string          `json:"description,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// EntryResponse represents a journal entry in API responses.
type EntryResponse struct {
	ID             string          `json:"id"`
	EntryNo        string          `json:"entryNo"`
	Date           string          `json:"date"`
	Reference      string          `json:"reference,omitempty"`
	Description    string          `json:"description,omitempty"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status"`
	Lines          []LineResponse  `json:"lines"`
	TotalDebit     decimal.Decimal `json:"totalDebit"`
	TotalCredit    decimal.Decimal `json:"totalCredit"`
	CreatedBy      string          `json:"createdBy,omitempty"`
	ReversalOf     string          `json:"reversalOf,omitempty"`
	ReversedBy     string          `json:"reversedBy,omitempty"`
	ReversalReason string          `json:"reversalReason,omitempty"`
	PostedAt       *time.Time      `json:"postedAt,omitempty"`
	ReversedAt     *time.Time      `json:"reversedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// EntryFromDomain converts domain journal entry to response.
func EntryFromDomain(e *domain.JournalEntry) *EntryResponse {
	lines := make([]LineResponse, len(e.Lines))
	for i, l := range e.Lines {
		lines[i] = LineResponse{
			ID:          l.ID,
			LineNo:      l.LineNo,
			AccountID:   l.AccountID,
			Description: l.Description,
			Debit:       l.Debit,
			Credit:      l.Credit,
		}
	}
	debit, credit := e.Totals()
	return &EntryResponse{
		ID:             e.ID,
		EntryNo:        e.EntryNo,
		Date:           formatDate(e.Date),
		Reference:      e.Reference,
		Description:    e.Description,
		Currency:       e.Currency,
		Status:         string(e.Status),
		Lines:          lines,
		TotalDebit:     debit,
		TotalCredit:    credit,
		CreatedBy:      e.CreatedBy,
		ReversalOf:     e.ReversalOf,
		ReversedBy:     e.ReversedBy,
		ReversalReason: e.ReversalReason,
		PostedAt:       e.PostedAt,
		ReversedAt:     e.ReversedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

// EntriesFromDomain converts domain journal entries to responses.
func EntriesFromDomain(entries []*domain.JournalEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// LedgerEntryResponse is one row of an account ledger.
type LedgerEntryResponse struct {
	ID             string          `json:"id"`
	EntryID        string          `json:"entryId"`
	EntryNo        string          `json:"entryNo"`
	AccountID      string          `json:"accountId"`
	Date           string          `json:"date"`
	Description    string          `json:"description,omitempty"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	RunningBalance decimal.Decimal `json:"runningBalance"`
}

// LedgerResponse represents an account ledger in API responses.
type LedgerResponse struct {
	AccountID      string                `json:"accountId"`
	Currency       string                `json:"currency,omitempty"`
	From           string                `json:"from,omitempty"`
	To             string                `json:"to,omitempty"`
	OpeningBalance decimal.Decimal       `json:"openingBalance"`
	ClosingBalance decimal.Decimal       `json:"closingBalance"`
	Entries        []LedgerEntryResponse `json:"entries"`
}

// LedgerFromDomain converts a domain ledger to response.
func LedgerFromDomain(l *domain.Ledger) *LedgerResponse {
	entries := make([]LedgerEntryResponse, len(l.Entries))
	for i, e := range l.Entries {
		entries[i] = LedgerEntryResponse{
			ID:             e.ID,
			EntryID:        e.EntryID,
			EntryNo:        e.EntryNo,
			AccountID:      e.AccountID,
			Date:           formatDate(e.Date),
			Description:    e.Description,
			Debit:          e.Debit,
			Credit:         e.Credit,
			RunningBalance: e.RunningBalance,
		}
	}
	return &LedgerResponse{
		AccountID:      l.AccountID,
		Currency:       l.Currency,
		From:           formatDatePtr(l.From),
		To:             formatDatePtr(l.To),
		OpeningBalance: l.OpeningBalance,
		ClosingBalance: l.ClosingBalance,
		Entries:        entries,
	}
}

// ConsistencyResponse reports whether stored postings balance overall.
type ConsistencyResponse struct {
	Consistent bool `json:"consistent"`
}

// TrialBalanceRowResponse is one account of a trial balance.
type TrialBalanceRowResponse struct {
	AccountID     string          `json:"accountId"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	Currency      string          `json:"currency,omitempty"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	ContraBalance bool            `json:"contraBalance,omitempty"`
}

// TrialBalanceResponse represents a trial balance in API responses.
type TrialBalanceResponse struct {
	AsOf        string                    `json:"asOf,omitempty"`
	Rows        []TrialBalanceRowResponse `json:"rows"`
	TotalDebit  decimal.Decimal           `json:"totalDebit"`
	TotalCredit decimal.Decimal           `json:"totalCredit"`
	Balanced    bool                      `json:"balanced"`
	Delta       decimal.Decimal           `json:"delta"`
}

// TrialBalanceFromDomain converts a domain trial balance to response.
func TrialBalanceFromDomain(tb *domain.TrialBalance) *TrialBalanceResponse {
	rows := make([]TrialBalanceRowResponse, len(tb.Rows))
	for i, r := range tb.Rows {
		rows[i] = TrialBalanceRowResponse{
			AccountID:     r.AccountID,
			Code:          r.AccountCode,
			Name:          r.AccountName,
			Type:          string(r.AccountType),
			Currency:      r.Currency,
			Debit:         r.Debit,
			Credit:        r.Credit,
			ContraBalance: r.ContraBalance,
		}
	}
	return &TrialBalanceResponse{
		AsOf:        formatDatePtr(tb.AsOf),
		Rows:        rows,
		TotalDebit:  tb.TotalDebit,
		TotalCredit: tb.TotalCredit,
		Balanced:    tb.Balanced,
		Delta:       tb.Delta,
	}
}

// BalanceCheckResponse is the short form of a trial balance.
type BalanceCheckResponse struct {
	AsOf        string          `json:"asOf,omitempty"`
	Balanced    bool            `json:"balanced"`
	TotalDebit  decimal.Decimal `json:"totalDebit"`
	TotalCredit decimal.Decimal `json:"totalCredit"`
	Delta       decimal.Decimal `json:"delta"`
}

// BalanceCheckFromDomain converts a balance check to response.
func BalanceCheckFromDomain(c *domain.BalanceCheck) *BalanceCheckResponse {
	return &BalanceCheckResponse{
		AsOf:        formatDatePtr(c.AsOf),
		Balanced:    c.Balanced,
		TotalDebit:  c.TotalDebit,
		TotalCredit: c.TotalCredit,
		Delta:       c.Delta,
	}
}

// AccountTypeSummaryResponse totals the accounts of one type.
type AccountTypeSummaryResponse struct {
	Type         string          `json:"type"`
	AccountCount int             `json:"accountCount"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	Balance      decimal.Decimal `json:"balance"`
}

// AccountTypeSummariesFromDomain converts per-type summaries to responses.
func AccountTypeSummariesFromDomain(summaries []domain.AccountTypeSummary) []AccountTypeSummaryResponse {
	result := make([]AccountTypeSummaryResponse, len(summaries))
	for i, s := range summaries {
		result[i] = AccountTypeSummaryResponse{
			Type:         string(s.Type),
			AccountCount: s.AccountCount,
			Debit:        s.Debit,
			Credit:       s.Credit,
			Balance:      s.Balance,
		}
	}
	return result
}

// ReportLineResponse is one account amount on a statement.
type ReportLineResponse struct {
	AccountID string          `json:"accountId"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
}

func reportLines(lines []domain.ReportLine) []ReportLineResponse {
	result := make([]ReportLineResponse, len(lines))
	for i, l := range lines {
		result[i] = ReportLineResponse{
			AccountID: l.AccountID,
			Code:      l.AccountCode,
			Name:      l.AccountName,
			Amount:    l.Amount,
		}
	}
	return result
}

// ProfitAndLossResponse represents an income statement.
type ProfitAndLossResponse struct {
	From          string               `json:"from,omitempty"`
	To            string               `json:"to,omitempty"`
	Income        []ReportLineResponse `json:"income"`
	Expenses      []ReportLineResponse `json:"expenses"`
	TotalIncome   decimal.Decimal      `json:"totalIncome"`
	TotalExpenses decimal.Decimal      `json:"totalExpenses"`
	NetIncome     decimal.Decimal      `json:"netIncome"`
}

// ProfitAndLossFromDomain converts an income statement to response.
func ProfitAndLossFromDomain(p *domain.ProfitAndLoss) *ProfitAndLossResponse {
	return &ProfitAndLossResponse{
		From:          formatDatePtr(p.From),
		To:            formatDatePtr(p.To),
		Income:        reportLines(p.Income),
		Expenses:      reportLines(p.Expenses),
		TotalIncome:   p.TotalIncome,
		TotalExpenses: p.TotalExpenses,
		NetIncome:     p.NetIncome,
	}
}

// BalanceSheetResponse represents a balance sheet.
type BalanceSheetResponse struct {
	AsOf             string               `json:"asOf,omitempty"`
	Assets           []ReportLineResponse `json:"assets"`
	Liabilities      []ReportLineResponse `json:"liabilities"`
	Equity           []ReportLineResponse `json:"equity"`
	TotalAssets      decimal.Decimal      `json:"totalAssets"`
	TotalLiabilities decimal.Decimal      `json:"totalLiabilities"`
	TotalEquity      decimal.Decimal      `json:"totalEquity"`
	CurrentEarnings  decimal.Decimal      `json:"currentEarnings"`
	Balanced         bool                 `json:"balanced"`
}

// BalanceSheetFromDomain converts a balance sheet to response.
func BalanceSheetFromDomain(b *domain.BalanceSheet) *BalanceSheetResponse {
	return &BalanceSheetResponse{
		AsOf:             formatDatePtr(b.AsOf),
		Assets:           reportLines(b.Assets),
		Liabilities:      reportLines(b.Liabilities),
		Equity:           reportLines(b.Equity),
		TotalAssets:      b.TotalAssets,
		TotalLiabilities: b.TotalLiabilities,
		TotalEquity:      b.TotalEquity,
		CurrentEarnings:  b.CurrentEarnings,
		Balanced:         b.Balanced,
	}
}

// ErrorDetail points at one offending input.
type ErrorDetail struct {
	Line      *int   `json:"line,omitempty"`
	AccountID string `json:"accountId,omitempty"`
	Field     string `json:"field,omitempty"`
	Reason    string `json:"reason"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error       string           `json:"error"`
	Message     string           `json:"message,omitempty"`
	Details     []ErrorDetail    `json:"details,omitempty"`
	TotalDebit  *decimal.Decimal `json:"totalDebit,omitempty"`
	TotalCredit *decimal.Decimal `json:"totalCredit,omitempty"`
	Delta       *decimal.Decimal `json:"delta,omitempty"`
}

// AuditLogResponse is one audit trail record.
type AuditLogResponse struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	RequestID    string         `json:"requestId,omitempty"`
	Before       map[string]any `json:"before,omitempty"`
	After        map[string]any `json:"after,omitempty"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// AuditLogsFromDomain converts audit logs to responses.
func AuditLogsFromDomain(logs []*domain.AuditLog) []*AuditLogResponse {
	result := make([]*AuditLogResponse, len(logs))
	for i, l := range logs {
		result[i] = &AuditLogResponse{
			ID:           l.ID,
			UserID:       l.UserID,
			Action:       l.Action,
			ResourceType: l.ResourceType,
			ResourceID:   l.ResourceID,
			IPAddress:    l.IPAddress,
			UserAgent:    l.UserAgent,
			RequestID:    l.RequestID,
			Before:       l.BeforeState,
			After:        l.AfterState,
			Status:       l.Status,
			ErrorMessage: l.ErrorMessage,
			CreatedAt:    l.CreatedAt,
		}
	}
	return result
}
