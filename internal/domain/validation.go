package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxAccountNameLength = 255
	MinAccountNameLength = 1
	MaxReferenceLength   = 128
	MaxDescriptionLength = 1024
	MaxTenantIDLength    = 64
	MaxJournalLines      = 500
	MaxAmount            = "1000000000000000" // 10^15
)

// Minor unit digits per ISO 4217 currency.
var currencyMinorUnits = map[string]int32{
	"USD": 2, "EUR": 2, "GBP": 2, "JPY": 0,
	"CNY": 2, "AUD": 2, "CAD": 2, "CHF": 2,
	"SEK": 2, "NZD": 2, "KRW": 0, "SGD": 2,
	"NOK": 2, "MXN": 2, "INR": 2, "BRL": 2,
	"ZAR": 2, "RUB": 2, "TRY": 2, "HKD": 2,
	"BHD": 3, "KWD": 3, "PLN": 2, "UAH": 2,
}

var (
	accountCodeRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.\-]{0,31}$`)
	tenantIDRegex    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]*$`)
)

// ValidateAccountName validates account name
func ValidateAccountName(name string) error {
	name = strings.TrimSpace(name)

	if len(name) < MinAccountNameLength {
		return NewValidationError("name", "name cannot be empty")
	}

	if len(name) > MaxAccountNameLength {
		return NewValidationError("name", fmt.Sprintf("name exceeds %d characters", MaxAccountNameLength))
	}

	return nil
}

// ValidateAccountCode checks the code is short, sortable and free of spaces.
func ValidateAccountCode(code string) error {
	if !accountCodeRegex.MatchString(code) {
		return NewValidationError("code", "code must be 1-32 letters, digits, dots or dashes")
	}
	return nil
}

// ValidateCurrency validates currency code
func ValidateCurrency(currency string) error {
	if _, ok := currencyMinorUnits[currency]; !ok {
		return NewValidationError("currency", fmt.Sprintf("%q is not a supported ISO 4217 currency code", currency))
	}
	return nil
}

// MinorUnits returns the number of decimal places the currency allows.
func MinorUnits(currency string) (int32, bool) {
	units, ok := currencyMinorUnits[currency]
	return units, ok
}

// ValidateAmountPrecision rejects amounts finer than the currency's minor unit.
func ValidateAmountPrecision(amount decimal.Decimal, currency string) error {
	units, ok := currencyMinorUnits[currency]
	if !ok {
		return ValidateCurrency(currency)
	}
	if !amount.Truncate(units).Equal(amount) {
		return fmt.Errorf("%w: %s allows %d", ErrAmountPrecision, currency, units)
	}
	return nil
}

// ValidateLineAmounts checks the one-sided, non-negative rule of a journal line.
func ValidateLineAmounts(debit, credit decimal.Decimal, currency string) error {
	if debit.IsNegative() || credit.IsNegative() {
		return ErrNegativeAmount
	}
	if !debit.IsZero() && !credit.IsZero() {
		return ErrBothSides
	}
	if debit.IsZero() && credit.IsZero() {
		return ErrZeroLine
	}

	maxAmount, _ := decimal.NewFromString(MaxAmount)
	amount := debit.Add(credit)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrValidation, MaxAmount)
	}

	return ValidateAmountPrecision(amount, currency)
}

// ValidateTenantID validates a tenant identifier.
func ValidateTenantID(tenantID string) error {
	if tenantID == "" {
		return ErrTenantMissing
	}
	if len(tenantID) > MaxTenantIDLength || !tenantIDRegex.MatchString(tenantID) {
		return NewValidationError("tenant", "tenant id must be alphanumeric with dashes or underscores")
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
