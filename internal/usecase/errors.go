package usecase

import (
	"errors"

	"github.com/iho/gledger/internal/domain"
)

// ErrInconsistentLedger is returned when the ledger is not balanced.
var ErrInconsistentLedger = errors.New("ledger is inconsistent: debits do not equal credits")

// persistErr wraps storage failures, leaving ledger errors untouched.
func persistErr(op string, err error) error {
	if err == nil || domain.IsClassified(err) {
		return err
	}
	return &domain.PersistenceError{Op: op, Err: err}
}

func requireTenant(tenantID string) error {
	return domain.ValidateTenantID(tenantID)
}
