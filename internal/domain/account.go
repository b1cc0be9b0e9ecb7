package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType is the accounting classification of an account.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// AccountTypes lists every account type in reporting order.
var AccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeIncome,
	AccountTypeExpense,
}

// IsValid checks if the type is one of the five account types.
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// Side is the debit or credit side of a balance.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// NormalSide returns the side on which the account type's balance grows.
func (t AccountType) NormalSide() Side {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return SideDebit
	}
	return SideCredit
}

// SignedDelta converts a debit/credit pair to the change of a natural-side balance.
func (t AccountType) SignedDelta(debit, credit decimal.Decimal) decimal.Decimal {
	if t.NormalSide() == SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// AccountStatus is the lifecycle status of an account.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusInactive AccountStatus = "INACTIVE"
)

// IsValid checks the status value.
func (s AccountStatus) IsValid() bool {
	return s == AccountStatusActive || s == AccountStatusInactive
}

// Account is a node in a tenant's chart of accounts.
// Its balance is never stored; it is derived from the opening balance and posted lines.
type Account struct {
	ID             string
	TenantID       string
	Code           string
	Name           string
	Type           AccountType
	ParentID       string
	IsHeader       bool
	OpeningBalance decimal.Decimal
	Status         AccountStatus
	Currency       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsActive reports whether new postings may reference the account.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// Validate checks the field-level rules of an account.
func (a *Account) Validate() error {
	if err := ValidateAccountCode(a.Code); err != nil {
		return err
	}
	if err := ValidateAccountName(a.Name); err != nil {
		return err
	}
	if !a.Type.IsValid() {
		return NewValidationError("type", "type must be one of ASSET, LIABILITY, EQUITY, INCOME, EXPENSE")
	}
	if !a.Status.IsValid() {
		return NewValidationError("status", "status must be ACTIVE or INACTIVE")
	}
	if err := ValidateCurrency(a.Currency); err != nil {
		return err
	}
	if a.ParentID != "" && a.ParentID == a.ID {
		return NewValidationError("parentId", "account cannot be its own parent")
	}
	if a.IsHeader && !a.OpeningBalance.IsZero() {
		return NewValidationError("openingBalance", "header accounts cannot carry an opening balance")
	}
	if err := ValidateAmountPrecision(a.OpeningBalance, a.Currency); err != nil {
		return &ValidationError{Field: "openingBalance", Err: err}
	}
	return nil
}

// OpeningBalanceEquityCode is the code of the equity account that carries the other side
// of every opening balance in currency.
func OpeningBalanceEquityCode(currency string) string {
	return "OBE-" + currency
}

// NewOpeningBalanceEquityAccount builds the offset account of currency. Its opening
// balance is maintained by the registry.
func NewOpeningBalanceEquityAccount(id, tenantID, currency string, now time.Time) *Account {
	return &Account{
		ID:             id,
		TenantID:       tenantID,
		Code:           OpeningBalanceEquityCode(currency),
		Name:           "Opening Balance Equity (" + currency + ")",
		Type:           AccountTypeEquity,
		OpeningBalance: decimal.Zero,
		Status:         AccountStatusActive,
		Currency:       currency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsOpeningBalanceEquity reports whether a is the offset account of its currency.
func (a *Account) IsOpeningBalanceEquity() bool {
	return a.Code == OpeningBalanceEquityCode(a.Currency)
}

// OpeningNetDebit returns the opening balance as debit minus credit.
func (a *Account) OpeningNetDebit() decimal.Decimal {
	if a.IsHeader {
		return decimal.Zero
	}
	if a.Type.NormalSide() == SideDebit {
		return a.OpeningBalance
	}
	return a.OpeningBalance.Neg()
}

// CheckPostable validates that a journal line in the given currency may reference the account.
func (a *Account) CheckPostable(currency string) error {
	if a.IsHeader {
		return ErrHeaderPosting
	}
	if !a.IsActive() {
		return ErrInactiveAccount
	}
	if a.Currency != currency {
		return ErrCurrencyMismatch
	}
	return nil
}

// Clone returns a copy safe to mutate.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}

// AccountFilter narrows an account listing. Zero values match everything.
type AccountFilter struct {
	Type     AccountType
	Status   AccountStatus
	ParentID string
	IDs      []string
}

// Matches reports whether the account passes the filter.
func (f AccountFilter) Matches(a *Account) bool {
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.ParentID != "" && a.ParentID != f.ParentID {
		return false
	}
	if len(f.IDs) > 0 {
		for _, id := range f.IDs {
			if id == a.ID {
				return true
			}
		}
		return false
	}
	return true
}
