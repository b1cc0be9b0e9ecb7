package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Posting is a journal line of a posted or reversed entry, flattened for projection.
type Posting struct {
	EntryID     string
	EntryNo     string
	EntrySeq    int64
	Date        time.Time
	Status      EntryStatus
	LineID      string
	LineNo      int
	AccountID   string
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// PostingFilter narrows the postings fed to a projection.
type PostingFilter struct {
	AccountIDs []string
	To         *time.Time
}

// SortPostings orders postings by date, entry sequence and line number.
func SortPostings(postings []Posting) {
	sort.SliceStable(postings, func(i, j int) bool {
		a, b := postings[i], postings[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.EntrySeq != b.EntrySeq {
			return a.EntrySeq < b.EntrySeq
		}
		return a.LineNo < b.LineNo
	})
}

// LedgerEntry is one row of an account ledger.
type LedgerEntry struct {
	ID             string
	EntryID        string
	EntryNo        string
	AccountID      string
	Date           time.Time
	Description    string
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	RunningBalance decimal.Decimal
}

// Ledger is the chronological view of an account over a date range.
type Ledger struct {
	AccountID      string
	Currency       string
	From           *time.Time
	To             *time.Time
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	Entries        []LedgerEntry
}

// ProjectLedger folds sorted postings into a ledger. Postings dated before from roll into
// the opening balance. The caller has already dropped postings after the range end.
func ProjectLedger(accountID string, accountType AccountType, opening decimal.Decimal, postings []Posting, from, to *time.Time) *Ledger {
	ledger := &Ledger{
		AccountID: accountID,
		From:      from,
		To:        to,
		Entries:   make([]LedgerEntry, 0, len(postings)),
	}

	running := opening
	for _, p := range postings {
		delta := accountType.SignedDelta(p.Debit, p.Credit)
		if from != nil && p.Date.Before(*from) {
			running = running.Add(delta)
			continue
		}
		if len(ledger.Entries) == 0 {
			ledger.OpeningBalance = running
		}
		running = running.Add(delta)
		ledger.Entries = append(ledger.Entries, LedgerEntry{
			ID:             p.LineID,
			EntryID:        p.EntryID,
			EntryNo:        p.EntryNo,
			AccountID:      p.AccountID,
			Date:           p.Date,
			Description:    p.Description,
			Debit:          p.Debit,
			Credit:         p.Credit,
			RunningBalance: running,
		})
	}
	if len(ledger.Entries) == 0 {
		ledger.OpeningBalance = running
	}
	ledger.ClosingBalance = running

	return ledger
}

// BalanceSnapshot holds every account balance of a tenant as of a date.
type BalanceSnapshot struct {
	TenantID string
	AsOf     *time.Time
	Version  int64
	Accounts []*Account
	Balances map[string]decimal.Decimal
}

// LeafBalances folds postings into per-leaf balances starting from opening balances.
func LeafBalances(chart *Chart, postings []Posting) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal)
	for _, a := range chart.Accounts() {
		if !a.IsHeader {
			balances[a.ID] = a.OpeningBalance
		}
	}
	for _, p := range postings {
		a, ok := chart.Account(p.AccountID)
		if !ok {
			continue
		}
		balances[a.ID] = balances[a.ID].Add(a.Type.SignedDelta(p.Debit, p.Credit))
	}
	return balances
}
