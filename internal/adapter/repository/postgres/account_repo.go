package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/usecase"
)

const accountColumns = `id, tenant_id, code, name, type, COALESCE(parent_id, ''), is_header,
	opening_balance, status, currency, created_at, updated_at`

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	db Querier
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db Querier) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO accounts (
			id, tenant_id, code, name, type, parent_id, is_header,
			opening_balance, status, currency, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		account.ID,
		account.TenantID,
		account.Code,
		account.Name,
		string(account.Type),
		nullString(account.ParentID),
		account.IsHeader,
		decimalToNumeric(account.OpeningBalance),
		string(account.Status),
		account.Currency,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return &domain.ConflictError{Resource: "account", ID: account.Code, Reason: "account code already exists"}
	}
	return err
}

// Update overwrites the mutable fields of an account.
func (r *AccountRepository) Update(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE accounts SET
			code = $3, name = $4, type = $5, parent_id = $6, is_header = $7,
			opening_balance = $8, status = $9, currency = $10, updated_at = $11
		WHERE tenant_id = $1 AND id = $2`,
		account.TenantID,
		account.ID,
		account.Code,
		account.Name,
		string(account.Type),
		nullString(account.ParentID),
		account.IsHeader,
		decimalToNumeric(account.OpeningBalance),
		string(account.Status),
		account.Currency,
		account.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return &domain.ConflictError{Resource: "account", ID: account.Code, Reason: "account code already exists"}
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Resource: "account", ID: account.ID}
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "account", ID: id}
	}
	return account, err
}

// GetByCode retrieves an account by its code.
func (r *AccountRepository) GetByCode(ctx context.Context, tenantID, code string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE tenant_id = $1 AND code = $2`,
		tenantID, code)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "account", ID: code}
	}
	return account, err
}

// List returns the accounts matching the filter ordered by code.
func (r *AccountRepository) List(ctx context.Context, tenantID string, filter domain.AccountFilter) ([]*domain.Account, error) {
	w := &whereBuilder{}
	w.add("tenant_id = ?", tenantID)
	if filter.Type != "" {
		w.add("type = ?", string(filter.Type))
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	if filter.ParentID != "" {
		w.add("parent_id = ?", filter.ParentID)
	}
	if len(filter.IDs) > 0 {
		w.add("id = ANY(?)", filter.IDs)
	}

	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts`+w.sql()+` ORDER BY code`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a              domain.Account
		typ, status    string
		openingBalance pgtype.Numeric
	)
	err := row.Scan(
		&a.ID,
		&a.TenantID,
		&a.Code,
		&a.Name,
		&typ,
		&a.ParentID,
		&a.IsHeader,
		&openingBalance,
		&status,
		&a.Currency,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Type = domain.AccountType(typ)
	a.Status = domain.AccountStatus(status)
	if a.OpeningBalance, err = numericToDecimal(openingBalance); err != nil {
		return nil, err
	}
	return &a, nil
}
