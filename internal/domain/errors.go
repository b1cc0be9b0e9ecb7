package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidState  = errors.New("invalid state transition")
	ErrPersistence   = errors.New("persistence failure")
	ErrDuplicateCode = errors.New("account code already exists")
	ErrTenantMissing = errors.New("tenant is required")

	// Journal errors
	ErrUnbalancedEntry  = errors.New("journal entry is not balanced")
	ErrUnknownAccount   = errors.New("unknown account")
	ErrInactiveAccount  = errors.New("account is inactive")
	ErrHeaderPosting    = errors.New("header accounts cannot carry journal lines")
	ErrCurrencyMismatch = errors.New("account currency does not match entry currency")

	// Line amount errors
	ErrNegativeAmount  = errors.New("amounts must not be negative")
	ErrBothSides       = errors.New("line must not carry both a debit and a credit")
	ErrZeroLine        = errors.New("line must carry a non-zero debit or credit")
	ErrAmountPrecision = errors.New("amount has more decimal places than the currency allows")
)

// ValidationError reports a malformed field.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, msg)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

// NewValidationError is a shorthand for a field-level validation failure.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// LineError describes a single offending journal line.
type LineError struct {
	Index     int
	AccountID string
	Err       error
}

func (e *LineError) Error() string {
	if e.AccountID == "" {
		return fmt.Sprintf("line %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("line %d (account %s): %v", e.Index, e.AccountID, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// EntryValidationError collects every offending line of a journal entry.
type EntryValidationError struct {
	Lines []*LineError
}

func (e *EntryValidationError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		parts = append(parts, l.Error())
	}
	return "invalid journal lines: " + strings.Join(parts, "; ")
}

func (e *EntryValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Lines)+1)
	errs = append(errs, ErrValidation)
	for _, l := range e.Lines {
		errs = append(errs, l)
	}
	return errs
}

// UnbalancedEntryError is returned when debits and credits differ at post time.
type UnbalancedEntryError struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Delta       decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("journal entry is not balanced: debit %s, credit %s, delta %s",
		e.TotalDebit.String(), e.TotalCredit.String(), e.Delta.String())
}

func (e *UnbalancedEntryError) Unwrap() error { return ErrUnbalancedEntry }

// NotFoundError is returned for missing resources, including lookups across tenants.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidStateError is returned for a disallowed lifecycle transition.
type InvalidStateError struct {
	EntryID string
	Status  EntryStatus
	Action  string
	Reason  string
}

func (e *InvalidStateError) Error() string {
	msg := fmt.Sprintf("cannot %s journal entry %s in status %s", e.Action, e.EntryID, e.Status)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// ConflictError is returned when a change would break existing data.
type ConflictError struct {
	Resource string
	ID       string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Resource, e.ID, e.Reason)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// PersistenceError wraps a storage failure. State is unchanged when it is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// IsClassified reports whether err already carries one of the ledger error kinds.
func IsClassified(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrNotFound, ErrConflict, ErrInvalidState, ErrPersistence,
		ErrUnbalancedEntry, ErrUnknownAccount, ErrInactiveAccount, ErrHeaderPosting,
		ErrDuplicateCode, ErrTenantMissing,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
