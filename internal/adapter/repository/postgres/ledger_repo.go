package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/usecase"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	db Querier
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db Querier) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// ListPostings returns the lines of posted and reversed entries in ledger order.
func (r *LedgerRepository) ListPostings(ctx context.Context, tenantID string, filter domain.PostingFilter) ([]domain.Posting, error) {
	w := &whereBuilder{}
	w.add("l.tenant_id = ?", tenantID)
	w.add("e.status = ANY(?)", []string{string(domain.EntryStatusPosted), string(domain.EntryStatusReversed)})
	if filter.AccountIDs != nil {
		w.add("l.account_id = ANY(?)", filter.AccountIDs)
	}
	if filter.To != nil {
		w.add("e.entry_date <= ?", *filter.To)
	}

	rows, err := r.db.Query(ctx, `
		SELECT e.id, e.entry_no, e.seq, e.entry_date, e.status,
			l.id, l.line_no, l.account_id, COALESCE(NULLIF(l.description, ''), e.description),
			l.debit, l.credit
		FROM journal_lines l
		JOIN journal_entries e ON e.tenant_id = l.tenant_id AND e.id = l.entry_id`+w.sql()+`
		ORDER BY e.entry_date, e.seq, l.line_no`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var postings []domain.Posting
	for rows.Next() {
		var (
			p             domain.Posting
			status        string
			debit, credit pgtype.Numeric
		)
		err := rows.Scan(
			&p.EntryID,
			&p.EntryNo,
			&p.EntrySeq,
			&p.Date,
			&status,
			&p.LineID,
			&p.LineNo,
			&p.AccountID,
			&p.Description,
			&debit,
			&credit,
		)
		if err != nil {
			return nil, err
		}
		p.Status = domain.EntryStatus(status)
		p.Date = domain.NormalizeDate(p.Date)
		if p.Debit, err = numericToDecimal(debit); err != nil {
			return nil, err
		}
		if p.Credit, err = numericToDecimal(credit); err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

// CheckConsistency sums every posted debit and credit of the tenant.
func (r *LedgerRepository) CheckConsistency(ctx context.Context, tenantID string) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit pgtype.Numeric
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
		FROM journal_lines l
		JOIN journal_entries e ON e.tenant_id = l.tenant_id AND e.id = l.entry_id
		WHERE l.tenant_id = $1 AND e.status IN ('POSTED', 'REVERSED')`, tenantID).Scan(&debit, &credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	totalDebit, err := numericToDecimal(debit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	totalCredit, err := numericToDecimal(credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return totalDebit, totalCredit, nil
}

// LockTenant takes a transaction-scoped advisory lock that serializes the tenant's writers
// across processes.
func (r *LedgerRepository) LockTenant(ctx context.Context, tx usecase.Transaction, tenantID string) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, tenantID)
	return err
}

// Version returns the tenant's committed ledger version.
func (r *LedgerRepository) Version(ctx context.Context, tenantID string) (int64, error) {
	var version int64
	err := r.db.QueryRow(ctx, `SELECT version FROM ledger_state WHERE tenant_id = $1`, tenantID).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return version, err
}

// BumpVersion increments the ledger version inside the transaction.
func (r *LedgerRepository) BumpVersion(ctx context.Context, tx usecase.Transaction, tenantID string) (int64, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return 0, err
	}

	var version int64
	err = q.QueryRow(ctx, `
		INSERT INTO ledger_state (tenant_id, version) VALUES ($1, 1)
		ON CONFLICT (tenant_id) DO UPDATE SET version = ledger_state.version + 1
		RETURNING version`, tenantID).Scan(&version)
	return version, err
}
