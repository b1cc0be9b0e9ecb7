package domain

import "time"

// Event types
const (
	EventTypeAccountCreated     = "account.created"
	EventTypeAccountUpdated     = "account.updated"
	EventTypeAccountDeactivated = "account.deactivated"
	EventTypeJournalDrafted     = "journal.drafted"
	EventTypeJournalUpdated     = "journal.updated"
	EventTypeJournalPosted      = "journal.posted"
	EventTypeJournalReversed    = "journal.reversed"
)

// Aggregate types
const (
	AggregateTypeAccount = "account"
	AggregateTypeJournal = "journal_entry"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	TenantID      string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// AccountEventPayload builds the payload of account events.
func AccountEventPayload(a *Account) map[string]any {
	return map[string]any{
		"account_id": a.ID,
		"tenant_id":  a.TenantID,
		"code":       a.Code,
		"name":       a.Name,
		"type":       string(a.Type),
		"status":     string(a.Status),
		"currency":   a.Currency,
		"is_header":  a.IsHeader,
	}
}

// JournalEventPayload builds the payload of journal events.
func JournalEventPayload(e *JournalEntry) map[string]any {
	debit, _ := e.Totals()
	payload := map[string]any{
		"entry_id":  e.ID,
		"tenant_id": e.TenantID,
		"entry_no":  e.EntryNo,
		"date":      e.Date.Format(DateLayout),
		"status":    string(e.Status),
		"currency":  e.Currency,
		"amount":    debit.String(),
		"lines":     len(e.Lines),
	}
	if e.ReversalOf != "" {
		payload["reversal_of"] = e.ReversalOf
		payload["reason"] = e.ReversalReason
	}
	return payload
}
