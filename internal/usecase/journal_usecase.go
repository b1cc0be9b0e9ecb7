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

// JournalUseCase is the journal engine: it drafts, posts and reverses journal entries.
type JournalUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	journalRepo JournalRepository
	ledgerRepo  LedgerRepository
	changes     changeLog
	idGen       IDGenerator
	locks       *LedgerLocks
	metrics     *metrics.Metrics
	retrier     Retrier
}

// NewJournalUseCase creates a new JournalUseCase.
func NewJournalUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	journalRepo JournalRepository,
	ledgerRepo LedgerRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	locks *LedgerLocks,
	metrics *metrics.Metrics,
) *JournalUseCase {
	if locks == nil {
		locks = NewLedgerLocks()
	}
	return &JournalUseCase{
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

// WithRetrier retries posting and reversal on transient storage conflicts.
func (uc *JournalUseCase) WithRetrier(r Retrier) *JournalUseCase {
	uc.retrier = r
	return uc
}

func (uc *JournalUseCase) withRetry(ctx context.Context, op func() (*domain.JournalEntry, error)) (*domain.JournalEntry, error) {
	if uc.retrier == nil {
		return op()
	}
	var entry *domain.JournalEntry
	err := uc.retrier.Retry(ctx, func() error {
		var err error
		entry, err = op()
		return err
	})
	return entry, err
}

// LineInput is one requested journal line.
type LineInput struct {
	AccountID   string
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// CreateEntryInput represents input for drafting a journal entry.
// An empty currency is taken from the first line's account.
type CreateEntryInput struct {
	TenantID    string
	Date        time.Time
	Reference   string
	Description string
	Currency    string
	Lines       []LineInput
}

// CreateDraft validates every line and stores the entry as a draft. Drafts may be unbalanced.
func (uc *JournalUseCase) CreateDraft(ctx context.Context, input CreateEntryInput) (*domain.JournalEntry, error) {
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

	now := time.Now().UTC()
	entry := &domain.JournalEntry{
		ID:          uc.idGen.Generate(),
		TenantID:    input.TenantID,
		Date:        domain.NormalizeDate(input.Date),
		Reference:   strings.TrimSpace(input.Reference),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.EntryStatusDraft,
		CreatedBy:   domain.ActorFromContext(ctx),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if input.Date.IsZero() {
		entry.Date = time.Time{}
	}
	entry.Lines = uc.buildLines(input.Lines)

	if err := uc.validateEntry(txCtx, entry, input.Currency); err != nil {
		uc.countRejection(err)
		return nil, err
	}

	seq, err := uc.journalRepo.NextSequence(txCtx, tx, input.TenantID)
	if err != nil {
		return nil, persistErr("next entry number", err)
	}
	entry.Seq = seq
	entry.EntryNo = domain.FormatEntryNo(seq)

	if err := uc.journalRepo.Create(txCtx, tx, entry); err != nil {
		return nil, persistErr("create journal entry", err)
	}

	if err := uc.changes.record(txCtx, tx, change{
		tenantID:      entry.TenantID,
		aggregateType: domain.AggregateTypeJournal,
		aggregateID:   entry.ID,
		eventType:     domain.EventTypeJournalDrafted,
		payload:       domain.JournalEventPayload(entry),
		action:        domain.AuditActionJournalCreate,
		after:         entry,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, persistErr("commit journal entry", err)
	}

	if uc.metrics != nil {
		uc.metrics.EntriesDrafted.Inc()
		uc.metrics.AuditLogsCreated.WithLabelValues(string(domain.AuditActionJournalCreate), string(domain.AuditStatusSuccess)).Inc()
	}

	return entry, nil
}

// UpdateDraftInput replaces the content of a draft entry.
type UpdateDraftInput struct {
	TenantID    string
	ID          string
	Date        time.Time
	Reference   string
	Description string
	Currency    string
	Lines       []LineInput
}

// UpdateDraft replaces the lines and details of a draft. Posted and reversed entries are immutable.
func (uc *JournalUseCase) UpdateDraft(ctx context.Context, input UpdateDraftInput) (*domain.JournalEntry, error) {
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

	current, err := uc.journalRepo.GetByIDForUpdate(txCtx, tx, input.TenantID, input.ID)
	if err != nil {
		return nil, persistErr("get journal entry", err)
	}
	if current.Status != domain.EntryStatusDraft {
		return nil, &domain.InvalidStateError{EntryID: current.ID, Status: current.Status, Action: "update"}
	}

	updated := current.Clone()
	updated.Date = domain.NormalizeDate(input.Date)
	if input.Date.IsZero() {
		updated.Date = time.Time{}
	}
	updated.Reference = strings.TrimSpace(input.Reference)
	updated.Description = strings.TrimSpace(input.Description)
	updated.Lines = uc.buildLines(input.Lines)
	updated.UpdatedAt = time.Now().UTC()

	if err := uc.validateEntry(txCtx, updated, input.Currency); err != nil {
		uc.countRejection(err)
		return nil, err
	}

	if err := uc.journalRepo.ReplaceDraft(txCtx, tx, updated); err != nil {
		return nil, persistErr("update journal entry", err)
	}

	if err := uc.changes.record(txCtx, tx, change{
		tenantID:      updated.TenantID,
		aggregateType: domain.AggregateTypeJournal,
		aggregateID:   updated.ID,
		eventType:     domain.EventTypeJournalUpdated,
		payload:       domain.JournalEventPayload(updated),
		action:        domain.AuditActionJournalUpdate,
		before:        current,
		after:         updated,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, persistErr("commit journal entry", err)
	}

	if uc.metrics != nil {
		uc.metrics.AuditLogsCreated.WithLabelValues(string(domain.AuditActionJournalUpdate), string(domain.AuditStatusSuccess)).Inc()
	}

	return updated, nil
}

// Post re-validates a draft, requires it to balance exactly and makes it part of the ledger.
// Posting an already posted entry returns it unchanged.
func (uc *JournalUseCase) Post(ctx context.Context, tenantID, id string) (*domain.JournalEntry, error) {
	return uc.withRetry(ctx, func() (*domain.JournalEntry, error) {
		return uc.post(ctx, tenantID, id)
	})
}

func (uc *JournalUseCase) post(ctx context.Context, tenantID, id string) (*domain.JournalEntry, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	start := time.Now()

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

	current, err := uc.journalRepo.GetByIDForUpdate(txCtx, tx, tenantID, id)
	if err != nil {
		return nil, persistErr("get journal entry", err)
	}

	switch current.Status {
	case domain.EntryStatusPosted:
		return current, nil
	case domain.EntryStatusReversed:
		uc.countRejection(domain.ErrInvalidState)
		return nil, &domain.InvalidStateError{EntryID: current.ID, Status: current.Status, Action: "post"}
	}

	if err := uc.validateEntry(txCtx, current, current.Currency); err != nil {
		uc.countRejection(err)
		return nil, err
	}
	if err := current.CheckBalanced(); err != nil {
		uc.countRejection(err)
		return nil, err
	}

	now := time.Now().UTC()
	posted := current.Clone()
	posted.Status = domain.EntryStatusPosted
	posted.PostedAt = &now
	posted.UpdatedAt = now

	if err := uc.journalRepo.UpdateStatus(txCtx, tx, posted); err != nil {
		return nil, persistErr("post journal entry", err)
	}
	if _, err := uc.ledgerRepo.BumpVersion(txCtx, tx, tenantID); err != nil {
		return nil, persistErr("bump ledger version", err)
	}

	if err := uc.changes.record(txCtx, tx, change{
		tenantID:      tenantID,
		aggregateType: domain.AggregateTypeJournal,
		aggregateID:   posted.ID,
		eventType:     domain.EventTypeJournalPosted,
		payload:       domain.JournalEventPayload(posted),
		action:        domain.AuditActionJournalPost,
		before:        current,
		after:         posted,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, persistErr("commit journal entry", err)
	}

	if uc.metrics != nil {
		total, _ := posted.Totals()
		uc.metrics.EntriesPosted.Inc()
		uc.metrics.PostDuration.Observe(time.Since(start).Seconds())
		uc.metrics.PostedAmount.Observe(total.InexactFloat64())
		uc.metrics.AuditLogsCreated.WithLabelValues(string(domain.AuditActionJournalPost), string(domain.AuditStatusSuccess)).Inc()
	}

	return posted, nil
}

// ReverseEntryInput represents input for reversing a posted entry.
// A nil Date dates the compensating entry like the original.
type ReverseEntryInput struct {
	TenantID string
	ID       string
	Reason   string
	Date     *time.Time
}

// Reverse posts a compensating entry with debits and credits swapped and marks the
// original reversed. Both entries stay in the ledger and net to zero.
func (uc *JournalUseCase) Reverse(ctx context.Context, input ReverseEntryInput) (*domain.JournalEntry, error) {
	return uc.withRetry(ctx, func() (*domain.JournalEntry, error) {
		return uc.reverse(ctx, input)
	})
}

func (uc *JournalUseCase) reverse(ctx context.Context, input ReverseEntryInput) (*domain.JournalEntry, error) {
	if err := requireTenant(input.TenantID); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, domain.NewValidationError("reason", "a reversal reason is required")
	}
	if len(reason) > domain.MaxDescriptionLength {
		return nil, domain.NewValidationError("reason", fmt.Sprintf("reason exceeds %d characters", domain.MaxDescriptionLength))
	}
	start := time.Now()

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

	original, err := uc.journalRepo.GetByIDForUpdate(txCtx, tx, input.TenantID, input.ID)
	if err != nil {
		return nil, persistErr("get journal entry", err)
	}
	if original.Status != domain.EntryStatusPosted {
		uc.countRejection(domain.ErrInvalidState)
		return nil, &domain.InvalidStateError{EntryID: original.ID, Status: original.Status, Action: "reverse"}
	}
	if original.IsCompensating() {
		uc.countRejection(domain.ErrInvalidState)
		return nil, &domain.InvalidStateError{
			EntryID: original.ID,
			Status:  original.Status,
			Action:  "reverse",
			Reason:  "compensating entries cannot be reversed",
		}
	}

	now := time.Now().UTC()
	date := original.Date
	if input.Date != nil {
		date = domain.NormalizeDate(*input.Date)
	}

	compensating := &domain.JournalEntry{
		ID:             uc.idGen.Generate(),
		TenantID:       input.TenantID,
		Date:           date,
		Reference:      original.Reference,
		Description:    fmt.Sprintf("Reversal of %s: %s", original.EntryNo, reason),
		Currency:       original.Currency,
		Status:         domain.EntryStatusPosted,
		Lines:          original.SwappedLines(uc.idGen.Generate),
		CreatedBy:      domain.ActorFromContext(ctx),
		ReversalOf:     original.ID,
		ReversalReason: reason,
		PostedAt:       &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := uc.validateEntry(txCtx, compensating, compensating.Currency); err != nil {
		uc.countRejection(err)
		return nil, err
	}

	seq, err := uc.journalRepo.NextSequence(txCtx, tx, input.TenantID)
	if err != nil {
		return nil, persistErr("next entry number", err)
	}
	compensating.Seq = seq
	compensating.EntryNo = domain.FormatEntryNo(seq)

	reversed := original.Clone()
	reversed.Status = domain.EntryStatusReversed
	reversed.ReversedBy = compensating.ID
	reversed.ReversalReason = reason
	reversed.ReversedAt = &now
	reversed.UpdatedAt = now

	if err := uc.journalRepo.Create(txCtx, tx, compensating); err != nil {
		return nil, persistErr("create compensating entry", err)
	}
	if err := uc.journalRepo.UpdateStatus(txCtx, tx, reversed); err != nil {
		return nil, persistErr("mark entry reversed", err)
	}
	if _, err := uc.ledgerRepo.BumpVersion(txCtx, tx, input.TenantID); err != nil {
		return nil, persistErr("bump ledger version", err)
	}

	if err := uc.changes.record(txCtx, tx, change{
		tenantID:      input.TenantID,
		aggregateType: domain.AggregateTypeJournal,
		aggregateID:   original.ID,
		eventType:     domain.EventTypeJournalReversed,
		payload:       domain.JournalEventPayload(compensating),
		action:        domain.AuditActionJournalReverse,
		before:        original,
		after:         reversed,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, persistErr("commit reversal", err)
	}

	if uc.metrics != nil {
		uc.metrics.EntriesReversed.Inc()
		uc.metrics.PostDuration.Observe(time.Since(start).Seconds())
		uc.metrics.AuditLogsCreated.WithLabelValues(string(domain.AuditActionJournalReverse), string(domain.AuditStatusSuccess)).Inc()
	}

	return compensating, nil
}

// GetEntry retrieves a journal entry by ID.
func (uc *JournalUseCase) GetEntry(ctx context.Context, tenantID, id string) (*domain.JournalEntry, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	entry, err := uc.journalRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, persistErr("get journal entry", err)
	}
	return entry, nil
}

// ListEntriesInput represents input for listing journal entries.
type ListEntriesInput struct {
	TenantID  string
	Status    domain.EntryStatus
	From      *time.Time
	To        *time.Time
	AccountID string
	Limit     int
	Offset    int
}

// ListEntries lists journal entries ordered by entry number.
func (uc *JournalUseCase) ListEntries(ctx context.Context, input ListEntriesInput) ([]*domain.JournalEntry, error) {
	if err := requireTenant(input.TenantID); err != nil {
		return nil, err
	}
	if input.Status != "" && !input.Status.IsValid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown entry status %q", input.Status))
	}
	limit, offset, _ := domain.ValidatePagination(input.Limit, input.Offset)

	entries, err := uc.journalRepo.List(ctx, input.TenantID, domain.EntryFilter{
		Status:    input.Status,
		From:      input.From,
		To:        input.To,
		AccountID: input.AccountID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, persistErr("list journal entries", err)
	}
	return entries, nil
}

func (uc *JournalUseCase) buildLines(inputs []LineInput) []domain.JournalLine {
	lines := make([]domain.JournalLine, len(inputs))
	for i, in := range inputs {
		lines[i] = domain.JournalLine{
			ID:          uc.idGen.Generate(),
			LineNo:      i + 1,
			AccountID:   strings.TrimSpace(in.AccountID),
			Description: strings.TrimSpace(in.Description),
			Debit:       in.Debit,
			Credit:      in.Credit,
		}
	}
	return lines
}

// validateEntry resolves the entry currency and checks header fields and every line
// against the current state of the referenced accounts.
func (uc *JournalUseCase) validateEntry(ctx context.Context, entry *domain.JournalEntry, currency string) error {
	accounts, err := uc.loadAccounts(ctx, entry.TenantID, entry.Lines)
	if err != nil {
		return err
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		for _, l := range entry.Lines {
			if a, ok := accounts[l.AccountID]; ok {
				currency = a.Currency
				break
			}
		}
	}
	entry.Currency = currency

	if currency == "" {
		// No line resolved to an account; report the lines rather than the currency.
		if err := domain.ValidateLines(entry.Lines, currency, accounts); err != nil {
			return err
		}
	}
	if err := entry.ValidateHeader(); err != nil {
		return err
	}
	return domain.ValidateLines(entry.Lines, entry.Currency, accounts)
}

func (uc *JournalUseCase) loadAccounts(ctx context.Context, tenantID string, lines []domain.JournalLine) (map[string]*domain.Account, error) {
	ids := domain.LineAccountIDs(lines)
	if len(ids) == 0 {
		return map[string]*domain.Account{}, nil
	}
	accounts, err := uc.accountRepo.List(ctx, tenantID, domain.AccountFilter{IDs: ids})
	if err != nil {
		return nil, persistErr("load line accounts", err)
	}
	byID := make(map[string]*domain.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	return byID, nil
}

func (uc *JournalUseCase) countRejection(err error) {
	if uc.metrics == nil {
		return
	}
	reason := "validation"
	switch {
	case errors.Is(err, domain.ErrUnbalancedEntry):
		reason = "unbalanced"
	case errors.Is(err, domain.ErrInvalidState):
		reason = "invalid_state"
	case errors.Is(err, domain.ErrInactiveAccount):
		reason = "inactive_account"
	case errors.Is(err, domain.ErrUnknownAccount):
		reason = "unknown_account"
	case errors.Is(err, domain.ErrHeaderPosting):
		reason = "header_account"
	}
	uc.metrics.PostingErrors.WithLabelValues(reason).Inc()
}
