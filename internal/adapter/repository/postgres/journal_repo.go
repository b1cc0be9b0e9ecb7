package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/usecase"
)

const entryColumns = `e.id, e.tenant_id, e.seq, e.entry_no, e.entry_date, e.reference, e.description,
	e.currency, e.status, e.created_by, COALESCE(e.reversal_of, ''), COALESCE(e.reversed_by, ''),
	e.reversal_reason, e.posted_at, e.reversed_at, e.created_at, e.updated_at`

// JournalRepository implements usecase.JournalRepository.
type JournalRepository struct {
	db Querier
}

// NewJournalRepository creates a new JournalRepository.
func NewJournalRepository(db Querier) *JournalRepository {
	return &JournalRepository{db: db}
}

// Create inserts an entry and its lines.
func (r *JournalRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO journal_entries (
			id, tenant_id, seq, entry_no, entry_date, reference, description, currency, status,
			created_by, reversal_of, reversed_by, reversal_reason, posted_at, reversed_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		entry.ID,
		entry.TenantID,
		entry.Seq,
		entry.EntryNo,
		entry.Date,
		entry.Reference,
		entry.Description,
		entry.Currency,
		string(entry.Status),
		entry.CreatedBy,
		nullString(entry.ReversalOf),
		nullString(entry.ReversedBy),
		entry.ReversalReason,
		utc(entry.PostedAt),
		utc(entry.ReversedAt),
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return err
	}

	return insertLines(ctx, q, entry)
}

// ReplaceDraft rewrites the details and lines of a draft.
func (r *JournalRepository) ReplaceDraft(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE journal_entries SET
			entry_date = $3, reference = $4, description = $5, currency = $6, updated_at = $7
		WHERE tenant_id = $1 AND id = $2 AND status = 'DRAFT'`,
		entry.TenantID,
		entry.ID,
		entry.Date,
		entry.Reference,
		entry.Description,
		entry.Currency,
		entry.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Resource: "journal entry", ID: entry.ID}
	}

	if _, err := q.Exec(ctx,
		`DELETE FROM journal_lines WHERE tenant_id = $1 AND entry_id = $2`,
		entry.TenantID, entry.ID); err != nil {
		return err
	}

	return insertLines(ctx, q, entry)
}

// UpdateStatus persists the lifecycle fields of an entry.
func (r *JournalRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE journal_entries SET
			status = $3, reversed_by = $4, reversal_reason = $5,
			posted_at = $6, reversed_at = $7, updated_at = $8
		WHERE tenant_id = $1 AND id = $2`,
		entry.TenantID,
		entry.ID,
		string(entry.Status),
		nullString(entry.ReversedBy),
		entry.ReversalReason,
		utc(entry.PostedAt),
		utc(entry.ReversedAt),
		entry.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Resource: "journal entry", ID: entry.ID}
	}
	return nil
}

// GetByID retrieves an entry with its lines.
func (r *JournalRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.JournalEntry, error) {
	return getEntry(ctx, r.db, tenantID, id, "")
}

// GetByIDForUpdate retrieves an entry with its lines and locks the entry row.
func (r *JournalRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, tenantID, id string) (*domain.JournalEntry, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	return getEntry(ctx, q, tenantID, id, " FOR UPDATE")
}

// List returns entries matching the filter ordered by entry number.
func (r *JournalRepository) List(ctx context.Context, tenantID string, filter domain.EntryFilter) ([]*domain.JournalEntry, error) {
	w := &whereBuilder{}
	w.add("e.tenant_id = ?", tenantID)
	if filter.Status != "" {
		w.add("e.status = ?", string(filter.Status))
	}
	if filter.From != nil {
		w.add("e.entry_date >= ?", *filter.From)
	}
	if filter.To != nil {
		w.add("e.entry_date <= ?", *filter.To)
	}
	if filter.AccountID != "" {
		w.add(`EXISTS (SELECT 1 FROM journal_lines l
			WHERE l.tenant_id = e.tenant_id AND l.entry_id = e.id AND l.account_id = ?)`, filter.AccountID)
	}

	query := `SELECT ` + entryColumns + ` FROM journal_entries e` + w.sql() + ` ORDER BY e.seq`
	if filter.Limit > 0 {
		query += ` LIMIT ` + w.next(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + w.next(filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}

	var (
		entries []*domain.JournalEntry
		ids     []string
		byID    = make(map[string]*domain.JournalEntry)
	)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		entries = append(entries, entry)
		ids = append(ids, entry.ID)
		byID[entry.ID] = entry
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*domain.JournalEntry{}, nil
	}

	lineRows, err := r.db.Query(ctx, `
		SELECT entry_id, id, line_no, account_id, description, debit, credit
		FROM journal_lines
		WHERE tenant_id = $1 AND entry_id = ANY($2)
		ORDER BY entry_id, line_no`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var entryID string
		line, err := scanLine(lineRows, &entryID)
		if err != nil {
			return nil, err
		}
		if e, ok := byID[entryID]; ok {
			e.Lines = append(e.Lines, line)
		}
	}
	return entries, lineRows.Err()
}

// NextSequence reserves the tenant's next entry number.
func (r *JournalRepository) NextSequence(ctx context.Context, tx usecase.Transaction, tenantID string) (int64, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return 0, err
	}

	var seq int64
	err = q.QueryRow(ctx, `
		INSERT INTO ledger_state (tenant_id, entry_seq) VALUES ($1, 1)
		ON CONFLICT (tenant_id) DO UPDATE SET entry_seq = ledger_state.entry_seq + 1
		RETURNING entry_seq`, tenantID).Scan(&seq)
	return seq, err
}

// HasPostings reports whether a posted or reversed entry references the account.
func (r *JournalRepository) HasPostings(ctx context.Context, tenantID, accountID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM journal_lines l
			JOIN journal_entries e ON e.tenant_id = l.tenant_id AND e.id = l.entry_id
			WHERE l.tenant_id = $1 AND l.account_id = $2 AND e.status IN ('POSTED', 'REVERSED')
		)`, tenantID, accountID).Scan(&exists)
	return exists, err
}

func insertLines(ctx context.Context, q Querier, entry *domain.JournalEntry) error {
	for _, l := range entry.Lines {
		_, err := q.Exec(ctx, `
			INSERT INTO journal_lines (
				id, tenant_id, entry_id, line_no, account_id, description, debit, credit
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			l.ID,
			entry.TenantID,
			entry.ID,
			l.LineNo,
			l.AccountID,
			l.Description,
			decimalToNumeric(l.Debit),
			decimalToNumeric(l.Credit),
		)
		if err != nil {
			return fmt.Errorf("insert line %d: %w", l.LineNo, err)
		}
	}
	return nil
}

func getEntry(ctx context.Context, q Querier, tenantID, id, lock string) (*domain.JournalEntry, error) {
	row := q.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM journal_entries e WHERE e.tenant_id = $1 AND e.id = $2`+lock,
		tenantID, id)

	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "journal entry", ID: id}
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT entry_id, id, line_no, account_id, description, debit, credit
		FROM journal_lines
		WHERE tenant_id = $1 AND entry_id = $2
		ORDER BY line_no`, tenantID, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var entryID string
		line, err := scanLine(rows, &entryID)
		if err != nil {
			return nil, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func scanEntry(row pgx.Row) (*domain.JournalEntry, error) {
	var (
		e      domain.JournalEntry
		status string
	)
	err := row.Scan(
		&e.ID,
		&e.TenantID,
		&e.Seq,
		&e.EntryNo,
		&e.Date,
		&e.Reference,
		&e.Description,
		&e.Currency,
		&status,
		&e.CreatedBy,
		&e.ReversalOf,
		&e.ReversedBy,
		&e.ReversalReason,
		&e.PostedAt,
		&e.ReversedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = domain.EntryStatus(status)
	e.Date = domain.NormalizeDate(e.Date)
	return &e, nil
}

func scanLine(row pgx.Row, entryID *string) (domain.JournalLine, error) {
	var (
		l             domain.JournalLine
		debit, credit pgtype.Numeric
	)
	if err := row.Scan(entryID, &l.ID, &l.LineNo, &l.AccountID, &l.Description, &debit, &credit); err != nil {
		return l, err
	}
	var err error
	if l.Debit, err = numericToDecimal(debit); err != nil {
		return l, err
	}
	if l.Credit, err = numericToDecimal(credit); err != nil {
		return l, err
	}
	return l, nil
}
