package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus is the lifecycle status of a journal entry.
type EntryStatus string

const (
	EntryStatusDraft    EntryStatus = "DRAFT"
	EntryStatusPosted   EntryStatus = "POSTED"
	EntryStatusReversed EntryStatus = "REVERSED"
)

// IsValid checks the status value.
func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryStatusDraft, EntryStatusPosted, EntryStatusReversed:
		return true
	}
	return false
}

// AffectsBalances reports whether lines in this status are part of the ledger.
// A reversed entry stays in the ledger next to its compensating entry.
func (s EntryStatus) AffectsBalances() bool {
	return s == EntryStatusPosted || s == EntryStatusReversed
}

// DateLayout is the wire format of accounting dates.
const DateLayout = "2006-01-02"

// NormalizeDate truncates t to a UTC calendar day.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD accounting date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, NewValidationError("date", fmt.Sprintf("%q is not a YYYY-MM-DD date", s))
	}
	return t, nil
}

// FormatEntryNo renders the human readable entry number.
func FormatEntryNo(seq int64) string {
	return fmt.Sprintf("JE-%06d", seq)
}

// JournalLine is one debit or credit of a journal entry.
type JournalLine struct {
	ID          string
	LineNo      int
	AccountID   string
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// JournalEntry is a dated, balanced set of lines once posted.
type JournalEntry struct {
	ID             string
	TenantID       string
	EntryNo        string
	Seq            int64
	Date           time.Time
	Reference      string
	Description    string
	Currency       string
	Status         EntryStatus
	Lines          []JournalLine
	CreatedBy      string
	ReversalOf     string
	ReversedBy     string
	ReversalReason string
	PostedAt       *time.Time
	ReversedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Totals sums the debit and credit sides.
func (e *JournalEntry) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// CheckBalanced returns an UnbalancedEntryError unless debits equal credits exactly.
func (e *JournalEntry) CheckBalanced() error {
	debit, credit := e.Totals()
	if !debit.Equal(credit) {
		return &UnbalancedEntryError{
			TotalDebit:  debit,
			TotalCredit: credit,
			Delta:       debit.Sub(credit),
		}
	}
	return nil
}

// IsCompensating reports whether the entry was created by a reversal.
func (e *JournalEntry) IsCompensating() bool {
	return e.ReversalOf != ""
}

// AccountIDs returns the distinct account ids referenced by the lines.
func (e *JournalEntry) AccountIDs() []string {
	return LineAccountIDs(e.Lines)
}

// SwappedLines returns the lines with debit and credit exchanged, with fresh ids.
func (e *JournalEntry) SwappedLines(newID func() string) []JournalLine {
	lines := make([]JournalLine, len(e.Lines))
	for i, l := range e.Lines {
		lines[i] = JournalLine{
			ID:          newID(),
			LineNo:      l.LineNo,
			AccountID:   l.AccountID,
			Description: l.Description,
			Debit:       l.Credit,
			Credit:      l.Debit,
		}
	}
	return lines
}

// Clone returns a deep copy safe to mutate.
func (e *JournalEntry) Clone() *JournalEntry {
	c := *e
	c.Lines = append([]JournalLine(nil), e.Lines...)
	if e.PostedAt != nil {
		t := *e.PostedAt
		c.PostedAt = &t
	}
	if e.ReversedAt != nil {
		t := *e.ReversedAt
		c.ReversedAt = &t
	}
	return &c
}

// ValidateHeader checks entry-level fields that do not depend on accounts.
func (e *JournalEntry) ValidateHeader() error {
	if e.Date.IsZero() {
		return NewValidationError("date", "date is required")
	}
	if len(e.Reference) > MaxReferenceLength {
		return NewValidationError("reference", fmt.Sprintf("reference exceeds %d characters", MaxReferenceLength))
	}
	if len(e.Description) > MaxDescriptionLength {
		return NewValidationError("description", fmt.Sprintf("description exceeds %d characters", MaxDescriptionLength))
	}
	if len(e.Lines) < 2 {
		return NewValidationError("lines", "a journal entry needs at least two lines")
	}
	if len(e.Lines) > MaxJournalLines {
		return NewValidationError("lines", fmt.Sprintf("a journal entry may have at most %d lines", MaxJournalLines))
	}
	return ValidateCurrency(e.Currency)
}

// ValidateLines checks every line against its amount rules and the referenced account,
// returning all offending lines at once.
func ValidateLines(lines []JournalLine, currency string, accounts map[string]*Account) error {
	var bad []*LineError
	for i, l := range lines {
		if strings.TrimSpace(l.AccountID) == "" {
			bad = append(bad, &LineError{Index: i, Err: ErrUnknownAccount})
			continue
		}
		acct, ok := accounts[l.AccountID]
		if !ok {
			bad = append(bad, &LineError{Index: i, AccountID: l.AccountID, Err: ErrUnknownAccount})
			continue
		}
		if err := ValidateLineAmounts(l.Debit, l.Credit, currency); err != nil {
			bad = append(bad, &LineError{Index: i, AccountID: l.AccountID, Err: err})
			continue
		}
		if err := acct.CheckPostable(currency); err != nil {
			bad = append(bad, &LineError{Index: i, AccountID: l.AccountID, Err: err})
		}
	}
	if len(bad) > 0 {
		return &EntryValidationError{Lines: bad}
	}
	return nil
}

// LineAccountIDs returns the distinct account ids of lines in first-seen order.
func LineAccountIDs(lines []JournalLine) []string {
	seen := make(map[string]bool, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.AccountID == "" || seen[l.AccountID] {
			continue
		}
		seen[l.AccountID] = true
		ids = append(ids, l.AccountID)
	}
	return ids
}

// EntryFilter narrows a journal listing. Zero values match everything.
type EntryFilter struct {
	Status    EntryStatus
	From      *time.Time
	To        *time.Time
	AccountID string
	Limit     int
	Offset    int
}

// Matches reports whether the entry passes the filter, ignoring pagination.
func (f EntryFilter) Matches(e *JournalEntry) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.From != nil && e.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Date.After(*f.To) {
		return false
	}
	if f.AccountID != "" {
		for _, l := range e.Lines {
			if l.AccountID == f.AccountID {
				return true
			}
		}
		return false
	}
	return true
}
