package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// DefaultProjectionCacheTTL bounds how long a ledger projection stays cached.
	// Entries are keyed by ledger version, so the TTL only limits memory use.
	DefaultProjectionCacheTTL = 10 * time.Minute

	// maxAccountsPerTenant caps chart listings used by projections.
	maxAccountsPerTenant = 100000
)
