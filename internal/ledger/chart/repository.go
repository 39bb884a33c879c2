package chart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/ledger"
)

// PGRepository is the pgx-backed chart repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const columns = `id, code, name, type, category, parent_id, is_parent, reporting_tag, currency, total_debit, total_credit, balance, is_active, created_at, updated_at`

func scan(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Category, &a.ParentID, &a.IsParent, &a.ReportingTag,
		&a.Currency, &a.TotalDebit, &a.TotalCredit, &a.Balance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *PGRepository) Create(ctx context.Context, account ledger.Account) (ledger.Account, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO accounts (code, name, type, category, parent_id, reporting_tag, currency, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at, updated_at`,
		account.Code, account.Name, account.Type, account.Category, account.ParentID, account.ReportingTag, account.Currency, account.IsActive)
	if err := row.Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt); err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.ConstraintName == "uq_accounts_code" {
			return ledger.Account{}, ledger.ErrDuplicateCode
		}
		return ledger.Account{}, err
	}
	return account, nil
}

func (r *PGRepository) Update(ctx context.Context, account ledger.Account) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE accounts SET name=$2, category=$3, parent_id=$4, is_parent=$5, reporting_tag=$6, currency=$7, is_active=$8, updated_at=NOW()
WHERE id=$1`, account.ID, account.Name, account.Category, account.ParentID, account.IsParent, account.ReportingTag, account.Currency, account.IsActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (r *PGRepository) GetByID(ctx context.Context, id int64) (ledger.Account, error) {
	a, err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM accounts WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Account{}, ledger.ErrAccountNotFound
		}
		return ledger.Account{}, err
	}
	return a, nil
}

func (r *PGRepository) GetByCode(ctx context.Context, code string) (ledger.Account, error) {
	a, err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM accounts WHERE code=$1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Account{}, ledger.ErrAccountNotFound
		}
		return ledger.Account{}, err
	}
	return a, nil
}

func (r *PGRepository) List(ctx context.Context) ([]ledger.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []ledger.Account
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *PGRepository) HasChildren(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE parent_id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *PGRepository) HasPostedLines(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM entry_lines l JOIN entries e ON e.id = l.entry_id
WHERE l.account_id=$1 AND e.status='POSTED')`, id).Scan(&exists)
	return exists, err
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}
