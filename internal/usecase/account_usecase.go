package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/infrastructure/metrics"
)

// AccountUseCase is the account registry: it owns the tenant's chart of accounts.
type AccountUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	journalRepo JournalRepository
	ledgerRepo  LedgerRepository
	changes     changeLog
	idGen       IDGenerator
	locks       *LedgerLocks
	metrics     *metrics.Metrics
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	journalRepo JournalRepository,
	ledgerRepo LedgerRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	locks *LedgerLocks,
	metrics *metrics.Metrics,
) *AccountUseCase {
	if locks == nil {
		locks = NewLedgerLocks()
	}
	return &AccountUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		journalRepo: journalRepo,
		ledgerRepo:  ledgerRepo,
		changes:     changeLog{outboxRepo: outboxRepo, auditRepo: auditRepo, idGen: idGen},
		idGen:       idGen,
		locks:       locks,
		metrics:     metrics,
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	TenantID       string
	Code           string
	Name           string
	Type           domain.AccountType
	ParentID       string
	IsHeader       bool
	OpeningBalance decimal.Decimal
	Currency       string
}

// CreateAccount adds an account to the tenant's chart.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if err := requireTenant(input.TenantID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:             uc.idGen.Generate(),
		TenantID:       input.TenantID,
		Code:           strings.TrimSpace(input.Code),
		Name:           strings.TrimSpace(input.Name),
		Type:           input.Type,
		ParentID:       strings.TrimSpace(input.ParentID),
		IsHeader:       input.IsHeader,
		OpeningBalance: input.OpeningBalance,
		Status:         domain.AccountStatusActive,
		Currency:       strings.ToUpper(strings.TrimSpace(input.Currency)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	if err := checkReservedCode(account); err != nil {
		return nil, err
	}

	unlock := uc.locks.Lock(input.TenantID)
	defer unlock()

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, persistErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := uc.ledgerRepo.LockTenant(txCtx, tx, input.TenantID); err != nil {
		return nil, persistErr("lock tenant", err)
	}

	if err := uc.checkCodeAvailable(txCtx, account); err != nil {
		return nil, err
	}
	if err := uc.checkParent(txCtx, account); err != nil {
		return nil, err
	}

	if err := uc.accountRepo.Create(txCtx, tx, account); err != nil {
		return nil, persistErr("create account", err)
	}
	if err := uc.rebalanceOpenings(txCtx, tx, nil, account); err != nil {
		return nil, err
	}
	if _, err := uc.ledgerRepo.BumpVersion(txCtx, tx, input.TenantID); err != nil {
		return nil, persistErr("bump ledger version", err)
	}

	if err := uc.changes.record(txCtx, tx, change{
		tenantID:      account.TenantID,
		aggregateType: domain.AggregateTypeAccount,
		aggregateID:   account.ID,
		eventType:     domain.EventTypeAccountCreated,
		payload:       domain.AccountEventPayload(account),
		action:        domain.AuditActionAccountCreate,
		after:         account,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, persistErr("commit account", err)
	}

	if uc.metrics != nil {
		uc.metrics.AccountsCreated.Inc()
		uc.metrics.AccountOperations.WithLabelValues("create").Inc()
		uc.metrics.AuditLogsCreated.WithLabelValues(string(domain.AuditActionAccountCreate), string(domain.AuditStatusSuccess)).Inc()
	}

	return account, nil
}

// GetAccount retrieves an account by ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, tenantID, id string) (*domain.Account, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	account, err := uc.accountRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, persistErr("get account", err)
	}
	return account, nil
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	TenantID string
	Type     domain.AccountType
	Status   domain.AccountStatus
	ParentID string
}

// ListAccounts lists the tenant's accounts ordered by code.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	if err := requireTenant(input.TenantID); err != nil {
		return nil, err
	}
	if input.Type != "" && !input.Type.IsValid() {
		return nil, domain.NewValidationError("type", fmt.Sprintf("unknown account type %q", input.Type))
	}
	if input.Status != "" && !input.Status.IsValid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown account status %q", input.Status))
	}

	accounts, err := uc.accountRepo.List(ctx, input.TenantID, domain.AccountFilter{
		Type:     input.Type,
		Status:   input.Status,
		ParentID: input.ParentID,
	})
	if err != nil {
		return nil, persistErr("list accounts", err)
	}
	return accounts, nil
}

// UpdateAccountInput is a partial update; nil fields are left unchanged.
type UpdateAccountInput struct {
	TenantID       string
	ID             string
	Code           *string
	Name           *string
	ParentID       *string
	IsHeader       *bool
	Type           *domain.AccountType
	OpeningBalance *decimal.Decimal
	Currency       *string
}

// UpdateAccount applies a patch to an account. Type, currency, header flag and opening
// balance are frozen once the account has postings.
func (uc *AccountUseCase) UpdateAccount(ctx context.Context, input UpdateAccountInput) (*domain.Account, error) {
	if err := requireTenant(input.TenantID); err != nil {
		return nil, err
	}

	unlock := uc.locks.Lock(input.TenantID)
	defer unlock()

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, persistErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := uc.ledgerRepo.LockTenant(txCtx, tx, input.TenantID); err != nil {
		return nil, persistErr("lock tenant", err)
	}

	current, err := uc.accountRepo.GetByID(txCtx, input.TenantID, input.ID)
	if err != nil {
		return nil, persistErr("get account", err)
	}

	updated := applyAccountPatch(current, input)
	updated.UpdatedAt = time.Now().UTC()
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	if err := uc.checkStructuralChange(txCtx, current, updated); err != nil {
		return nil, err
	}
	offset := current.IsOpeningBalanceEquity()
	if offset {
		if err := checkOffsetPatch(current, updated); err != nil {
			return nil, err
		}
	} else if err := checkReservedCode(updated); err != nil {
		return nil, err
	}
	if updated.Code != current.Code {
		if err := uc.checkCodeAvailable(txCtx, updated); err != nil {
			return nil, err
		}
	}
	if updated.ParentID != current.ParentID || updated.Type != current.Type || updated.Currency != current.Currency {
		if err := uc.checkParent(txCtx, updated); err != nil {
			return nil, err
		}
		if err := uc.checkNoCycle(txCtx, updated); err != nil {
			return nil, err
		}
	}

	if err := uc.accountRepo.Update(txCtx, tx, updated); err != nil {
		return nil, persistErr("update account", err)
	}
	if !offset {
		if err := uc.rebalanceOpenings(txCtx, tx, current, updated); err != nil {
			return nil, err
		}
	}
	if _, err := uc.ledgerRepo.BumpVersion(txCtx, tx, input.TenantID); err != nil {
		return nil, persistErr("bump ledger version", err)
	}

	if err := uc.changes.record(txCtx, tx, change{
		tenantID:      updated.TenantID,
		aggregateType: domain.AggregateTypeAccount,
		aggregateID:   updated.ID,
		eventType:     domain.EventTypeAccountUpdated,
		payload:       domain.AccountEventPayload(updated),
		action:        domain.AuditActionAccountUpdate,
		before:        current,
		after:         updated,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, persistErr("commit account", err)
	}

	if uc.metrics != nil {
		uc.metrics.AccountOperations.WithLabelValues("update").Inc()
		uc.metrics.AuditLogsCreated.WithLabelValues(string(domain.AuditActionAccountUpdate), string(domain.AuditStatusSuccess)).Inc()
	}

	return updated, nil
}

// Deactivate marks an account inactive. Accounts are never deleted.
func (uc *AccountUseCase) Deactivate(ctx context.Context, tenantID, id string) (*domain.Account, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	unlock := uc.locks.Lock(tenantID)
	defer unlock()

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, persistErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := uc.ledgerRepo.LockTenant(txCtx, tx, tenantID); err != nil {
		return nil, persistErr("lock tenant", err)
	}

	current, err := uc.accountRepo.GetByID(txCtx, tenantID, id)
	if err != nil {
		return nil, persistErr("get account", err)
	}
	if !current.IsActive() {
		return current, nil
	}

	updated := current.Clone()
	updated.Status = domain.AccountStatusInactive
	updated.UpdatedAt = time.Now().UTC()

	if err := uc.accountRepo.Update(txCtx, tx, updated); err != nil {
		return nil, persistErr("deactivate account", err)
	}
	if _, err := uc.ledgerRepo.BumpVersion(txCtx, tx, tenantID); err != nil {
		return nil, persistErr("bump ledger version", err)
	}

	if err := uc.changes.record(txCtx, tx, change{
		tenantID:      tenantID,
		aggregateType: domain.AggregateTypeAccount,
		aggregateID:   updated.ID,
		eventType:     domain.EventTypeAccountDeactivated,
		payload:       domain.AccountEventPayload(updated),
		action:        domain.AuditActionAccountDeactivate,
		before:        current,
		after:         updated,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, persistErr("commit account", err)
	}

	if uc.metrics != nil {
		uc.metrics.AccountOperations.WithLabelValues("deactivate").Inc()
		uc.metrics.AuditLogsCreated.WithLabelValues(string(domain.AuditActionAccountDeactivate), string(domain.AuditStatusSuccess)).Inc()
	}

	return updated, nil
}

func applyAccountPatch(current *domain.Account, input UpdateAccountInput) *domain.Account {
	updated := current.Clone()
	if input.Code != nil {
		updated.Code = strings.TrimSpace(*input.Code)
	}
	if input.Name != nil {
		updated.Name = strings.TrimSpace(*input.Name)
	}
	if input.ParentID != nil {
		updated.ParentID = strings.TrimSpace(*input.ParentID)
	}
	if input.IsHeader != nil {
		updated.IsHeader = *input.IsHeader
	}
	if input.Type != nil {
		updated.Type = *input.Type
	}
	if input.OpeningBalance != nil {
		updated.OpeningBalance = *input.OpeningBalance
	}
	if input.Currency != nil {
		updated.Currency = strings.ToUpper(strings.TrimSpace(*input.Currency))
	}
	return updated
}

func (uc *AccountUseCase) checkStructuralChange(ctx context.Context, current, updated *domain.Account) error {
	typeChanged := updated.Type != current.Type || updated.Currency != current.Currency
	structural := typeChanged ||
		updated.IsHeader != current.IsHeader ||
		!updated.OpeningBalance.Equal(current.OpeningBalance)

	if structural && !current.IsHeader {
		hasPostings, err := uc.journalRepo.HasPostings(ctx, current.TenantID, current.ID)
		if err != nil {
			return persistErr("check postings", err)
		}
		if hasPostings {
			return &domain.ConflictError{
				Resource: "account",
				ID:       current.ID,
				Reason:   "account has posted lines; type, currency, header flag and opening balance cannot change",
			}
		}
	}

	if current.IsHeader && (typeChanged || !updated.IsHeader) {
		children, err := uc.accountRepo.List(ctx, current.TenantID, domain.AccountFilter{ParentID: current.ID})
		if err != nil {
			return persistErr("list child accounts", err)
		}
		if len(children) > 0 {
			reason := "child accounts must share the header's type and currency"
			if !updated.IsHeader {
				reason = "header account still has child accounts"
			}
			return &domain.ConflictError{Resource: "account", ID: current.ID, Reason: reason}
		}
	}

	return nil
}

func (uc *AccountUseCase) checkCodeAvailable(ctx context.Context, account *domain.Account) error {
	existing, err := uc.accountRepo.GetByCode(ctx, account.TenantID, account.Code)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return persistErr("check account code", err)
	case existing.ID != account.ID:
		return &domain.ValidationError{
			Field:  "code",
			Reason: fmt.Sprintf("code %q is already used", account.Code),
			Err:    domain.ErrDuplicateCode,
		}
	}
	return nil
}

func (uc *AccountUseCase) checkParent(ctx context.Context, account *domain.Account) error {
	if account.ParentID == "" {
		return nil
	}

	parent, err := uc.accountRepo.GetByID(ctx, account.TenantID, account.ParentID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewValidationError("parentId", "parent account does not exist")
	}
	if err != nil {
		return persistErr("get parent account", err)
	}

	switch {
	case !parent.IsHeader:
		return domain.NewValidationError("parentId", "parent must be a header account")
	case parent.Type != account.Type:
		return domain.NewValidationError("parentId", "parent must have the same account type")
	case parent.Currency != account.Currency:
		return domain.NewValidationError("parentId", "parent must have the same currency")
	}
	return nil
}

func (uc *AccountUseCase) checkNoCycle(ctx context.Context, account *domain.Account) error {
	if account.ParentID == "" {
		return nil
	}
	accounts, err := uc.accountRepo.List(ctx, account.TenantID, domain.AccountFilter{})
	if err != nil {
		return persistErr("list accounts", err)
	}
	if domain.NewChart(accounts).IsAncestor(account.ID, account.ParentID) {
		return domain.NewValidationError("parentId", "parent would create a cycle")
	}
	return nil
}

// checkReservedCode keeps OBE-* codes for the opening balance equity accounts.
func checkReservedCode(account *domain.Account) error {
	if !strings.HasPrefix(account.Code, domain.OpeningBalanceEquityCode("")) {
		return nil
	}
	if account.IsOpeningBalanceEquity() && account.Type == domain.AccountTypeEquity &&
		!account.IsHeader && account.OpeningBalance.IsZero() {
		return nil
	}
	return domain.NewValidationError("code",
		fmt.Sprintf("code %q is reserved for the opening balance equity account", account.Code))
}

func checkOffsetPatch(current, updated *domain.Account) error {
	if updated.Code != current.Code ||
		updated.Type != current.Type ||
		updated.Currency != current.Currency ||
		updated.IsHeader != current.IsHeader ||
		!updated.OpeningBalance.Equal(current.OpeningBalance) {
		return &domain.ConflictError{
			Resource: "account",
			ID:       current.ID,
			Reason:   "opening balance equity account is maintained by the registry; only name and parent may change",
		}
	}
	return nil
}

// rebalanceOpenings moves the opening balance equity account of each affected currency
// by the change in net opening debit, so the chart's openings always net to zero.
func (uc *AccountUseCase) rebalanceOpenings(ctx context.Context, tx Transaction, before, after *domain.Account) error {
	type shift struct {
		currency string
		netDebit decimal.Decimal
	}
	var shifts []shift
	if before != nil {
		shifts = append(shifts, shift{currency: before.Currency, netDebit: before.OpeningNetDebit().Neg()})
	}
	if len(shifts) == 1 && shifts[0].currency == after.Currency {
		shifts[0].netDebit = shifts[0].netDebit.Add(after.OpeningNetDebit())
	} else {
		shifts = append(shifts, shift{currency: after.Currency, netDebit: after.OpeningNetDebit()})
	}

	for _, sh := range shifts {
		if err := uc.shiftOpeningOffset(ctx, tx, after.TenantID, sh.currency, sh.netDebit); err != nil {
			return err
		}
	}
	return nil
}

func (uc *AccountUseCase) shiftOpeningOffset(ctx context.Context, tx Transaction, tenantID, currency string, netDebit decimal.Decimal) error {
	if netDebit.IsZero() {
		return nil
	}

	now := time.Now().UTC()
	var before *domain.Account
	offset, err := uc.accountRepo.GetByCode(ctx, tenantID, domain.OpeningBalanceEquityCode(currency))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		offset = domain.NewOpeningBalanceEquityAccount(uc.idGen.Generate(), tenantID, currency, now)
	case err != nil:
		return persistErr("get opening balance equity account", err)
	default:
		before = offset
		offset = offset.Clone()
		offset.UpdatedAt = now
	}
	// The offset is credit-natural: a net debit opening elsewhere raises it.
	offset.OpeningBalance = offset.OpeningBalance.Add(netDebit)

	c := change{
		tenantID:      tenantID,
		aggregateType: domain.AggregateTypeAccount,
		aggregateID:   offset.ID,
		payload:       domain.AccountEventPayload(offset),
		after:         offset,
	}
	if before == nil {
		if err := uc.accountRepo.Create(ctx, tx, offset); err != nil {
			return persistErr("create opening balance equity account", err)
		}
		c.eventType, c.action = domain.EventTypeAccountCreated, domain.AuditActionAccountCreate
	} else {
		if err := uc.accountRepo.Update(ctx, tx, offset); err != nil {
			return persistErr("update opening balance equity account", err)
		}
		c.eventType, c.action, c.before = domain.EventTypeAccountUpdated, domain.AuditActionAccountUpdate, before
	}
	return uc.changes.record(ctx, tx, c)
}
